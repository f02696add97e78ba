// Package models defines the domain types for ruin.
package models

import "time"

// Note is a single document in the vault.
type Note struct {
	ID        string    `json:"uuid"`
	Path      string    `json:"path"`
	Title     string    `json:"title,omitempty"`
	Tags      []string  `json:"tags"`
	Body      string    `json:"-"`
	Content   []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary is the record returned by search, today and saved query runs.
// Field names are part of the CLI contract and must not change.
type Summary struct {
	Path  string   `json:"path"`
	UUID  string   `json:"uuid"`
	Title string   `json:"title,omitempty"`
	Tags  []string `json:"tags"`
}

// Summarize converts notes into their wire summaries.
func Summarize(notes []Note) []Summary {
	out := make([]Summary, 0, len(notes))
	for _, n := range notes {
		tags := n.Tags
		if tags == nil {
			tags = []string{}
		}
		out = append(out, Summary{Path: n.Path, UUID: n.ID, Title: n.Title, Tags: tags})
	}
	return out
}

// Tag is a tag name with the number of notes carrying it.
type Tag struct {
	Name  string `json:"Name"`
	Count int    `json:"Count"`
}

// SavedQuery is a named query string, re-evaluated on every run.
type SavedQuery struct {
	Name  string `json:"name"`
	Query string `json:"query"`
}

// LogResult is returned after a note has been created.
type LogResult struct {
	Path string `json:"path"`
	UUID string `json:"uuid"`
}

// FileMeta is a lightweight representation of a vault file.
type FileMeta struct {
	Path     string    `json:"path"`
	Checksum string    `json:"checksum"`
	ModTime  time.Time `json:"mod_time"`
}
