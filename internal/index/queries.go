package index

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/ruin/internal/apperr"
	"github.com/starford/ruin/internal/models"
)

// ListQueries returns every saved query sorted by name.
func (db *DB) ListQueries() ([]models.SavedQuery, error) {
	rows, err := db.conn.Query(`SELECT name, query FROM saved_queries ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("index: list queries: %w", err)
	}
	defer rows.Close()

	out := []models.SavedQuery{}
	for rows.Next() {
		var q models.SavedQuery
		if err := rows.Scan(&q.Name, &q.Query); err != nil {
			return nil, fmt.Errorf("index: scan query: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// GetQuery returns the saved query called name.
func (db *DB) GetQuery(name string) (*models.SavedQuery, error) {
	q := models.SavedQuery{Name: name}
	err := db.conn.QueryRow(`SELECT query FROM saved_queries WHERE name = ?`, name).Scan(&q.Query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: query %q: %w", name, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get query: %w", err)
	}
	return &q, nil
}

// SaveQuery stores query under name, replacing any previous definition.
func (db *DB) SaveQuery(name, query string) error {
	_, err := db.conn.Exec(`
		INSERT INTO saved_queries (name, query) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET query = excluded.query
	`, name, query)
	if err != nil {
		return fmt.Errorf("index: save query: %w", err)
	}
	return nil
}

// DeleteQuery removes the saved query called name.
func (db *DB) DeleteQuery(name string) error {
	res, err := db.conn.Exec(`DELETE FROM saved_queries WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("index: delete query: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("index: query %q: %w", name, apperr.ErrNotFound)
	}
	return nil
}
