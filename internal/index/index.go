package index

import "github.com/starford/ruin/internal/models"

// NoteIndex defines the interface for note indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type NoteIndex interface {
	UpsertNotes(rows ...NoteRow) error
	DeleteByPath(path string) (string, error)
	GetNote(id string) (*NoteRow, error)
	NoteByPath(path string) (*NoteRow, error)
	AllNotes() ([]NoteRow, error)
	NotesWithTag(tag string) ([]NoteRow, error)
	AllChecksums() (map[string]string, error)
	Tags() ([]models.Tag, error)
	TagCount(tag string) (int, error)
	ListQueries() ([]models.SavedQuery, error)
	GetQuery(name string) (*models.SavedQuery, error)
	SaveQuery(name, query string) error
	DeleteQuery(name string) error
	Close() error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)
