package index

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/ruin/internal/apperr"
	"github.com/starford/ruin/internal/parser"
	"github.com/starford/ruin/internal/storage"
)

// ErrNeedsSync is returned by IndexPath when a file must be rewritten
// (missing or duplicate id) before it can be indexed. A full Sync does the
// rewrite; single-file indexing never touches files a writer may still hold.
var ErrNeedsSync = errors.New("index: file needs a full sync")

// SyncReport summarizes a reconciliation pass.
type SyncReport struct {
	Indexed int `json:"indexed"`
	Adopted int `json:"adopted"`
	Removed int `json:"removed"`
}

// Syncer brings the index in line with the vault on disk. Every mutation
// runs under mu, which the engine shares so that file watching and sync
// never interleave with tag rewrites.
type Syncer struct {
	db     NoteIndex
	store  storage.Provider
	logger *slog.Logger
	mu     sync.Locker
	now    func() time.Time
}

// NewSyncer returns a Syncer. A nil mu gets a private mutex.
func NewSyncer(db NoteIndex, store storage.Provider, logger *slog.Logger, mu sync.Locker) *Syncer {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{db: db, store: store, logger: logger, mu: mu, now: time.Now}
}

// WithClock sets the clock that bounds edit times taken from file mtimes.
func (s *Syncer) WithClock(now func() time.Time) *Syncer {
	s.now = now
	return s
}

// Sync walks the vault and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files without an id get one written into their frontmatter
//   - edited files get their mtime written to the updated field
//   - files removed from disk are deleted from the index
func (s *Syncer) Sync() (SyncReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rep SyncReport
	metas, err := s.store.List("")
	if err != nil {
		return rep, apperr.IO("sync: list vault", err)
	}
	checksums, err := s.db.AllChecksums()
	if err != nil {
		return rep, err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}
	}

	// Remove stale entries first so moved files can reclaim their ids.
	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if _, err := s.db.DeleteByPath(p); err != nil {
			s.logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		rep.Removed++
		s.logger.Debug("sync: removed stale", slog.String("path", p))
	}

	for _, m := range metas {
		prev, known := checksums[m.Path]
		if known && prev == m.Checksum {
			continue
		}
		data, err := s.store.Read(m.Path)
		if err != nil {
			s.logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		adopted, err := s.indexData(m.Path, data, m.ModTime, known, true)
		if err != nil {
			s.logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		rep.Indexed++
		if adopted {
			rep.Adopted++
		}
		s.logger.Debug("sync: indexed", slog.String("path", m.Path))
	}
	return rep, nil
}

// IndexPath re-indexes a single vault-relative file. It reports whether
// the index changed; unchanged checksums are skipped.
func (s *Syncer) IndexPath(rel string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Read(rel)
	if err != nil {
		return false, err
	}
	row, err := s.db.NoteByPath(rel)
	known := err == nil
	if known && row.Checksum == storage.Checksum(data) {
		return false, nil
	}
	modTime := time.Now()
	if abs, err := s.store.Abs(rel); err == nil {
		if info, err := os.Stat(abs); err == nil {
			modTime = info.ModTime()
		}
	}
	if _, err := s.indexData(rel, data, modTime, known, false); err != nil {
		return false, err
	}
	return true, nil
}

// RemovePath drops the index entry for a vault-relative path. It reports
// whether anything was indexed there.
func (s *Syncer) RemovePath(rel string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.db.DeleteByPath(rel)
	if err != nil {
		return false, err
	}
	return id != "", nil
}

// indexData parses data and upserts it. Files lacking an id, or carrying
// an id that another live file already owns, get a fresh id written back
// to disk before indexing, unless rewriteOK is false. An edited file (one
// already indexed at path with other content) takes its mtime as updated
// time; with rewriteOK that time is also written to its frontmatter. It
// reports whether the file was adopted. The caller holds s.mu.
func (s *Syncer) indexData(path string, data []byte, modTime time.Time, edited, rewriteOK bool) (bool, error) {
	doc, err := parser.Parse(data)
	if err != nil {
		return false, err
	}

	adopt := false
	fm := doc.Frontmatter
	if fm.ID == "" {
		fm.ID = uuid.NewString()
		adopt = true
	} else if s.ownedElsewhere(fm.ID, path) {
		s.logger.Info("sync: duplicate id, assigning new one",
			slog.String("path", path), slog.String("id", fm.ID))
		fm.ID = uuid.NewString()
		adopt = true
	}

	if adopt && !rewriteOK {
		return false, ErrNeedsSync
	}

	var updated time.Time
	if edited {
		if t, ok := s.editedAt(fm, modTime); ok {
			updated = t
			fm.Updated = parser.FormatTime(t)
		}
	}

	if adopt || (rewriteOK && !updated.IsZero()) {
		if _, ok := fm.CreatedAt(); adopt && !ok {
			fm.Created = parser.FormatTime(modTime)
		}
		if _, ok := fm.UpdatedAt(); !ok {
			fm.Updated = fm.Created
		}
		data, err = parser.Compose(fm, doc.Body)
		if err != nil {
			return false, err
		}
		if err := s.store.Write(path, data); err != nil {
			return false, apperr.IO("sync: write "+path, err)
		}
		if doc, err = parser.Parse(data); err != nil {
			return false, err
		}
	}

	row := RowFor(path, data, doc, modTime)
	if !updated.IsZero() {
		row.UpdatedAt = updated
	}
	if err := s.db.UpsertNotes(row); err != nil {
		return false, err
	}
	return adopt, nil
}

// editedAt returns the edit time for a changed file: its mtime, capped at
// the syncer's clock, when that is later than the recorded updated field.
func (s *Syncer) editedAt(fm parser.Frontmatter, modTime time.Time) (time.Time, bool) {
	t := modTime.Truncate(time.Second)
	if now := s.now().Truncate(time.Second); t.After(now) {
		t = now
	}
	if prev, ok := fm.UpdatedAt(); ok && !t.After(prev) {
		return time.Time{}, false
	}
	return t, true
}

// ownedElsewhere reports whether id is indexed at a different path whose
// file still exists.
func (s *Syncer) ownedElsewhere(id, path string) bool {
	existing, err := s.db.GetNote(id)
	if err != nil {
		return false
	}
	if existing.Path == path {
		return false
	}
	if _, err := s.store.Read(existing.Path); err != nil {
		return false
	}
	return true
}

// RowFor builds the index row for a parsed note file. Missing timestamps
// fall back to fallback.
func RowFor(path string, data []byte, doc *parser.Document, fallback time.Time) NoteRow {
	created, ok := doc.Frontmatter.CreatedAt()
	if !ok {
		created = fallback
	}
	updated, ok := doc.Frontmatter.UpdatedAt()
	if !ok {
		updated = created
	}
	return NoteRow{
		ID:        doc.Frontmatter.ID,
		Path:      path,
		Title:     doc.Title,
		Checksum:  storage.Checksum(data),
		Body:      doc.Body,
		Tags:      doc.Tags,
		CreatedAt: created,
		UpdatedAt: updated,
	}
}

// String implements fmt.Stringer.
func (r SyncReport) String() string {
	return fmt.Sprintf("indexed %d, adopted %d, removed %d", r.Indexed, r.Adopted, r.Removed)
}
