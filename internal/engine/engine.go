// Package engine coordinates the vault, the index and the query language.
// It is the single collaborator the CLI, REST and MCP surfaces depend on.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/ruin/internal/apperr"
	"github.com/starford/ruin/internal/index"
	"github.com/starford/ruin/internal/models"
	"github.com/starford/ruin/internal/parser"
	"github.com/starford/ruin/internal/query"
	"github.com/starford/ruin/internal/storage"
)

// Change events passed to an Observer.
const (
	EventNoteCreated  = "note.created"
	EventTagRenamed   = "tag.renamed"
	EventTagDeleted   = "tag.deleted"
	EventQuerySaved   = "query.saved"
	EventQueryDeleted = "query.deleted"
)

// NoteEngine is the note query engine as seen by its front-ends.
type NoteEngine interface {
	Create(ctx context.Context, content, title string) (*models.LogResult, error)
	Get(ctx context.Context, id string) (*models.Note, error)
	All(ctx context.Context) ([]models.Note, error)
	Today(ctx context.Context) ([]models.Note, error)
	Search(ctx context.Context, q string) ([]models.Note, error)

	Tags(ctx context.Context) ([]models.Tag, error)
	RenameTag(ctx context.Context, oldName, newName string) error
	DeleteTag(ctx context.Context, name string) error

	Queries(ctx context.Context) ([]models.SavedQuery, error)
	SaveQuery(ctx context.Context, name, q string) error
	RunQuery(ctx context.Context, name string) ([]models.Note, error)
	DeleteQuery(ctx context.Context, name string) error

	Sync(ctx context.Context) (index.SyncReport, error)
}

// Observer receives change notifications after a mutation commits.
// subject is a note path, tag name or query name depending on kind.
type Observer func(kind, subject string)

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for timestamps and relative dates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithObserver registers fn to be called after each mutation.
func WithObserver(fn Observer) Option {
	return func(e *Engine) {
		e.observer = fn
	}
}

// WithWeekStart sets the first day of the week for this-week/last-week.
func WithWeekStart(day time.Weekday) Option {
	return func(e *Engine) {
		e.eval.WeekStart = day
	}
}

// Engine implements NoteEngine over a storage provider and a note index.
// Mutations are serialized by mu; reads share it.
type Engine struct {
	mu       sync.RWMutex
	db       index.NoteIndex
	store    storage.Provider
	syncer   *index.Syncer
	logger   *slog.Logger
	now      func() time.Time
	eval     query.Evaluator
	observer Observer
}

var _ NoteEngine = (*Engine)(nil)

// New creates an Engine.
func New(db index.NoteIndex, store storage.Provider, opts ...Option) *Engine {
	e := &Engine{
		db:     db,
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		eval:   query.Evaluator{WeekStart: time.Monday},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.syncer = index.NewSyncer(db, store, e.logger, &e.mu).WithClock(e.now)
	return e
}

// Syncer returns the syncer sharing the engine's write lock, for use by
// the vault watcher.
func (e *Engine) Syncer() *index.Syncer {
	return e.syncer
}

// Create stores content as a new note. An explicit title is written to the
// frontmatter; tags come from the frontmatter of content and its inline
// #tags. The file and its index row are written together or not at all.
func (e *Engine) Create(_ context.Context, content, title string) (*models.LogResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Invalid("note content is empty")
	}

	now := e.now()
	id := uuid.NewString()
	doc, err := parser.Parse([]byte(content))
	if err != nil {
		return nil, err
	}

	fm := doc.Frontmatter
	fm.ID = id
	fm.Created = parser.FormatTime(now)
	fm.Updated = fm.Created
	fm.Tags = doc.Tags
	if t := strings.TrimSpace(title); t != "" {
		fm.Title = t
	}
	data, err := parser.Compose(fm, doc.Body)
	if err != nil {
		return nil, err
	}
	rel := notePath(now, id)

	e.mu.Lock()
	err = e.writeAndIndex(rel, data, now)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	abs := e.absPath(rel)
	e.logger.Info("note created", slog.String("id", id), slog.String("path", rel))
	e.notify(EventNoteCreated, abs)
	return &models.LogResult{Path: abs, UUID: id}, nil
}

// writeAndIndex writes a new note file and indexes it, removing the file
// again when indexing fails. The caller holds the write lock.
func (e *Engine) writeAndIndex(rel string, data []byte, now time.Time) error {
	if err := e.store.Write(rel, data); err != nil {
		return apperr.IO("write note", err)
	}
	doc, err := parser.Parse(data)
	if err == nil {
		err = e.db.UpsertNotes(index.RowFor(rel, data, doc, now))
	}
	if err != nil {
		if delErr := e.store.Delete(rel); delErr != nil {
			e.logger.Error("create: cleanup failed", slog.String("path", rel), slog.String("error", delErr.Error()))
		}
		return fmt.Errorf("engine: index new note: %w", err)
	}
	return nil
}

// Get returns the note with the given id, including its raw file content.
func (e *Engine) Get(_ context.Context, id string) (*models.Note, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	row, err := e.db.GetNote(id)
	if err != nil {
		return nil, err
	}
	data, err := e.store.Read(row.Path)
	if err != nil {
		return nil, apperr.IO("read note", err)
	}
	n := e.toNote(*row)
	n.Content = data
	return &n, nil
}

// All returns every note, newest first.
func (e *Engine) All(_ context.Context) ([]models.Note, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	notes, err := e.notes()
	if err != nil {
		return nil, err
	}
	query.Sort(notes)
	return notes, nil
}

// Today returns the notes created on the current day of the engine clock.
func (e *Engine) Today(ctx context.Context) ([]models.Note, error) {
	return e.Search(ctx, "created:today")
}

// Search parses q and evaluates it against the store.
func (e *Engine) Search(_ context.Context, q string) ([]models.Note, error) {
	tree, err := query.Parse(q)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.eval.Evaluate(tree, query.SourceFunc(e.notes), e.now())
}

// Sync reconciles the index with the vault on disk.
func (e *Engine) Sync(_ context.Context) (index.SyncReport, error) {
	return e.syncer.Sync()
}

// notes loads every indexed note. The caller holds a lock.
func (e *Engine) notes() ([]models.Note, error) {
	rows, err := e.db.AllNotes()
	if err != nil {
		return nil, err
	}
	out := make([]models.Note, 0, len(rows))
	for _, r := range rows {
		out = append(out, e.toNote(r))
	}
	return out, nil
}

func (e *Engine) toNote(r index.NoteRow) models.Note {
	loc := e.now().Location()
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return models.Note{
		ID:        r.ID,
		Path:      e.absPath(r.Path),
		Title:     r.Title,
		Tags:      tags,
		Body:      r.Body,
		CreatedAt: r.CreatedAt.In(loc),
		UpdatedAt: r.UpdatedAt.In(loc),
	}
}

func (e *Engine) absPath(rel string) string {
	abs, err := e.store.Abs(rel)
	if err != nil {
		return rel
	}
	return abs
}

func (e *Engine) notify(kind, subject string) {
	if e.observer != nil {
		e.observer(kind, subject)
	}
}

// notePath lays notes out as YYYY/MM/YYYY-MM-DD-<id prefix>.md.
func notePath(t time.Time, id string) string {
	prefix := id
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return filepath.ToSlash(filepath.Join(
		t.Format("2006"), t.Format("01"),
		fmt.Sprintf("%s-%s.md", t.Format("2006-01-02"), prefix),
	))
}
