package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/ruin/internal/apperr"
)

// NoteRow represents a row in the notes table together with its tags.
type NoteRow struct {
	ID        string
	Path      string
	Title     string
	Checksum  string
	Body      string
	Tags      []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const noteColumns = `id, path, title, checksum, body, created_at, updated_at`

// UpsertNotes inserts or replaces notes and their tag rows in a single
// transaction. Either every row is written or none is.
func (db *DB) UpsertNotes(rows ...NoteRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, n := range rows {
		if err := upsertNote(tx, n); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit: %w", err)
	}
	return nil
}

func upsertNote(tx *sql.Tx, n NoteRow) error {
	// A different note previously indexed at this path has been replaced on disk.
	if _, err := tx.Exec(`DELETE FROM notes WHERE path = ? AND id <> ?`, n.Path, n.ID); err != nil {
		return fmt.Errorf("index: clear path %s: %w", n.Path, err)
	}

	_, err := tx.Exec(`
		INSERT INTO notes (id, path, title, checksum, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path       = excluded.path,
			title      = excluded.title,
			checksum   = excluded.checksum,
			body       = excluded.body,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, n.ID, n.Path, n.Title, n.Checksum, n.Body, n.CreatedAt.UTC(), n.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("index: upsert note %s: %w", n.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM note_tags WHERE note_id = ?`, n.ID); err != nil {
		return fmt.Errorf("index: clear tags: %w", err)
	}
	if len(n.Tags) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO note_tags (note_id, tag, position) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare tag insert: %w", err)
	}
	defer stmt.Close()
	for i, tag := range n.Tags {
		if _, err := stmt.Exec(n.ID, tag, i); err != nil {
			return fmt.Errorf("index: insert tag: %w", err)
		}
	}
	return nil
}

// DeleteByPath removes the note indexed at path and returns its id, or ""
// when nothing was indexed there.
func (db *DB) DeleteByPath(path string) (string, error) {
	var id string
	err := db.conn.QueryRow(`DELETE FROM notes WHERE path = ? RETURNING id`, path).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: delete by path: %w", err)
	}
	return id, nil
}

// GetNote returns the note with the given id.
func (db *DB) GetNote(id string) (*NoteRow, error) {
	rows, err := db.queryNotes(`WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("index: note %s: %w", id, apperr.ErrNotFound)
	}
	return &rows[0], nil
}

// NoteByPath returns the note indexed at path.
func (db *DB) NoteByPath(path string) (*NoteRow, error) {
	rows, err := db.queryNotes(`WHERE path = ?`, path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("index: path %s: %w", path, apperr.ErrNotFound)
	}
	return &rows[0], nil
}

// AllNotes returns every indexed note with its tags.
func (db *DB) AllNotes() ([]NoteRow, error) {
	return db.queryNotes(``)
}

// NotesWithTag returns every note carrying tag.
func (db *DB) NotesWithTag(tag string) ([]NoteRow, error) {
	return db.queryNotes(`WHERE id IN (SELECT note_id FROM note_tags WHERE tag = ?)`, tag)
}

// AllChecksums returns the stored checksum of every indexed path.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// queryNotes selects notes matching where and attaches their tags in
// position order.
func (db *DB) queryNotes(where string, args ...any) ([]NoteRow, error) {
	rows, err := db.conn.Query(`SELECT `+noteColumns+` FROM notes `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query notes: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	pos := make(map[string]int)
	for rows.Next() {
		var n NoteRow
		if err := rows.Scan(&n.ID, &n.Path, &n.Title, &n.Checksum, &n.Body, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("index: scan note: %w", err)
		}
		n.Tags = []string{}
		pos[n.ID] = len(out)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	tagWhere := ``
	if where != "" {
		tagWhere = `WHERE note_id IN (SELECT id FROM notes ` + where + `)`
	}
	tagRows, err := db.conn.Query(`SELECT note_id, tag FROM note_tags `+tagWhere+` ORDER BY note_id, position`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query tags: %w", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var id, tag string
		if err := tagRows.Scan(&id, &tag); err != nil {
			return nil, fmt.Errorf("index: scan tag: %w", err)
		}
		if i, ok := pos[id]; ok {
			out[i].Tags = append(out[i].Tags, tag)
		}
	}
	return out, tagRows.Err()
}
