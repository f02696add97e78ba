package engine

import (
	"context"
	"log/slog"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ruin/internal/apperr"
	"github.com/starford/ruin/internal/models"
	"github.com/starford/ruin/internal/query"
)

var queryNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Queries lists saved queries by name.
func (e *Engine) Queries(_ context.Context) ([]models.SavedQuery, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.db.ListQueries()
}

// SaveQuery stores q under name after checking that it parses. An existing
// query with the same name is replaced.
func (e *Engine) SaveQuery(_ context.Context, name, q string) error {
	if err := validation.Validate(name,
		validation.Required,
		validation.Length(1, 64),
		validation.Match(queryNameRe),
	); err != nil {
		return apperr.Invalid("query name %q: %v", name, err)
	}
	if _, err := query.Parse(q); err != nil {
		return err
	}

	e.mu.Lock()
	err := e.db.SaveQuery(name, q)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.logger.Info("query saved", slog.String("name", name))
	e.notify(EventQuerySaved, name)
	return nil
}

// RunQuery evaluates the saved query called name against the current
// store. The stored text is parsed afresh on every run.
func (e *Engine) RunQuery(_ context.Context, name string) ([]models.Note, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	sq, err := e.db.GetQuery(name)
	if err != nil {
		return nil, err
	}
	tree, err := query.Parse(sq.Query)
	if err != nil {
		return nil, err
	}
	return e.eval.Evaluate(tree, query.SourceFunc(e.notes), e.now())
}

// DeleteQuery removes the saved query called name.
func (e *Engine) DeleteQuery(_ context.Context, name string) error {
	e.mu.Lock()
	err := e.db.DeleteQuery(name)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.logger.Info("query deleted", slog.String("name", name))
	e.notify(EventQueryDeleted, name)
	return nil
}
