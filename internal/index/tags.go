package index

import (
	"fmt"

	"github.com/starford/ruin/internal/models"
)

// Tags returns every tag in use with the number of notes carrying it,
// sorted by name. Counts are derived from note_tags, so they can never
// drift from the notes themselves.
func (db *DB) Tags() ([]models.Tag, error) {
	rows, err := db.conn.Query(`SELECT tag, count(*) FROM note_tags GROUP BY tag ORDER BY tag`)
	if err != nil {
		return nil, fmt.Errorf("index: tags: %w", err)
	}
	defer rows.Close()

	out := []models.Tag{}
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.Name, &t.Count); err != nil {
			return nil, fmt.Errorf("index: scan tag: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TagCount returns how many notes carry tag.
func (db *DB) TagCount(tag string) (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM note_tags WHERE tag = ?`, tag).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: tag count: %w", err)
	}
	return n, nil
}
