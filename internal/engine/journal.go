package engine

import (
	"log/slog"

	"github.com/starford/ruin/internal/apperr"
	"github.com/starford/ruin/internal/storage"
)

// journal records the original content of every file a multi-file
// mutation overwrites so the vault can be put back when a later step fails.
type journal struct {
	store   storage.Provider
	entries []journalEntry
}

type journalEntry struct {
	path     string
	original []byte
}

func newJournal(store storage.Provider) *journal {
	return &journal{store: store}
}

// write replaces path with data, remembering original.
func (j *journal) write(path string, original, data []byte) error {
	if err := j.store.Write(path, data); err != nil {
		return apperr.IO("rewrite "+path, err)
	}
	j.entries = append(j.entries, journalEntry{path: path, original: original})
	return nil
}

// restore writes back every recorded original, newest first.
func (j *journal) restore(logger *slog.Logger) {
	for i := len(j.entries) - 1; i >= 0; i-- {
		ent := j.entries[i]
		if err := j.store.Write(ent.path, ent.original); err != nil {
			logger.Error("journal: restore failed",
				slog.String("path", ent.path),
				slog.String("error", err.Error()))
		}
	}
	j.entries = nil
}
