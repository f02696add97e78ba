package engine

import (
	"context"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ruin/internal/apperr"
	"github.com/starford/ruin/internal/index"
	"github.com/starford/ruin/internal/models"
	"github.com/starford/ruin/internal/parser"
)

// Tags returns every tag with its note count, sorted by name.
func (e *Engine) Tags(_ context.Context) ([]models.Tag, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.db.Tags()
}

// RenameTag renames oldName to newName in every note that carries it,
// merging into newName when that tag already exists.
func (e *Engine) RenameTag(ctx context.Context, oldName, newName string) error {
	from := parser.NormalizeTag(oldName)
	to := parser.NormalizeTag(newName)
	if err := validateTag(to); err != nil {
		return err
	}

	err := e.rewriteTag(ctx, from, func(tags []string) []string {
		return replaceTag(tags, from, to)
	}, func(string) string {
		return "#" + to
	})
	if err != nil {
		return err
	}
	e.logger.Info("tag renamed",
		slog.String("from", from),
		slog.String("to", to),
		slog.Int("notes", e.countTag(to)))
	e.notify(EventTagRenamed, to)
	return nil
}

// DeleteTag removes name from every note. Inline markers lose their #
// so the word stays in the text but no longer tags the note.
func (e *Engine) DeleteTag(ctx context.Context, name string) error {
	tag := parser.NormalizeTag(name)
	err := e.rewriteTag(ctx, tag, func(tags []string) []string {
		return replaceTag(tags, tag, "")
	}, func(written string) string {
		return written
	})
	if err != nil {
		return err
	}
	e.logger.Info("tag deleted", slog.String("tag", tag))
	e.notify(EventTagDeleted, tag)
	return nil
}

// countTag is used for logging only; lookup errors count as zero.
func (e *Engine) countTag(tag string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n, _ := e.db.TagCount(tag)
	return n
}

// rewriteTag applies front to the frontmatter tag list and inline to every
// inline marker of tag, in every note carrying it. Files are journaled and
// restored if any write or the index update fails.
func (e *Engine) rewriteTag(ctx context.Context, tag string, front func([]string) []string, inline func(string) string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rows, err := e.db.NotesWithTag(tag)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("engine: tag %q: %w", tag, apperr.ErrNotFound)
	}

	j := newJournal(e.store)
	updated := make([]index.NoteRow, 0, len(rows))
	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			j.restore(e.logger)
			return err
		}
		row, err := e.rewriteNote(j, r, tag, front, inline)
		if err != nil {
			j.restore(e.logger)
			return err
		}
		updated = append(updated, row)
	}

	if err := e.db.UpsertNotes(updated...); err != nil {
		j.restore(e.logger)
		return fmt.Errorf("engine: update index: %w", err)
	}
	return nil
}

func (e *Engine) rewriteNote(j *journal, r index.NoteRow, tag string, front func([]string) []string, inline func(string) string) (index.NoteRow, error) {
	original, err := e.store.Read(r.Path)
	if err != nil {
		return index.NoteRow{}, apperr.IO("read "+r.Path, err)
	}
	doc, err := parser.Parse(original)
	if err != nil {
		return index.NoteRow{}, err
	}

	fm := doc.Frontmatter
	if fm.ID == "" {
		fm.ID = r.ID
	}
	fm.Tags = front(fm.Tags)
	body := parser.RewriteInlineTag(doc.Body, tag, inline)

	data, err := parser.Compose(fm, body)
	if err != nil {
		return index.NoteRow{}, err
	}
	if err := j.write(r.Path, original, data); err != nil {
		return index.NoteRow{}, err
	}

	next, err := parser.Parse(data)
	if err != nil {
		return index.NoteRow{}, err
	}
	row := index.RowFor(r.Path, data, next, r.CreatedAt)
	row.ID = r.ID
	return row, nil
}

// replaceTag swaps from for to in tags, dropping it when to is empty and
// collapsing duplicates.
func replaceTag(tags []string, from, to string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n := parser.NormalizeTag(t)
		if n == from {
			n = to
		}
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func validateTag(name string) error {
	err := validation.Validate(name,
		validation.Required,
		validation.Match(parser.TagPattern()),
	)
	if err != nil {
		return apperr.Invalid("tag name %q: %v", name, err)
	}
	return nil
}
