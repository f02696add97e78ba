package query

import (
	"slices"
	"strings"
	"time"

	"github.com/starford/ruin/internal/apperr"
	"github.com/starford/ruin/internal/models"
)

// Source supplies the notes a query is evaluated against.
type Source interface {
	Notes() ([]models.Note, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() ([]models.Note, error)

// Notes implements Source.
func (f SourceFunc) Notes() ([]models.Note, error) {
	return f()
}

// Evaluator applies predicate trees to notes. The zero value starts weeks
// on Sunday; use Evaluate for the Monday default.
type Evaluator struct {
	WeekStart time.Weekday
}

type matcher func(n *models.Note) bool

// Evaluate applies tree to the notes of src with weeks starting on Monday.
func Evaluate(tree Node, src Source, now time.Time) ([]models.Note, error) {
	return Evaluator{WeekStart: time.Monday}.Evaluate(tree, src, now)
}

// Evaluate returns the notes of src matching tree, newest first. Relative
// dates are resolved against now, in now's location. An empty tree matches
// nothing.
func (ev Evaluator) Evaluate(tree Node, src Source, now time.Time) ([]models.Note, error) {
	out := []models.Note{}
	if tree == nil || isEmpty(tree) {
		return out, nil
	}
	match, err := ev.compile(tree, now)
	if err != nil {
		return nil, err
	}
	notes, err := src.Notes()
	if err != nil {
		return nil, err
	}
	for i := range notes {
		if match(&notes[i]) {
			out = append(out, notes[i])
		}
	}
	Sort(out)
	return out, nil
}

// Sort orders notes most recently created first, ties broken by id.
func Sort(notes []models.Note) {
	slices.SortStableFunc(notes, func(a, b models.Note) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func isEmpty(n Node) bool {
	and, ok := n.(And)
	return ok && len(and.Children) == 0
}

func (ev Evaluator) compile(n Node, now time.Time) (matcher, error) {
	switch v := n.(type) {
	case And:
		if len(v.Children) == 0 {
			return func(*models.Note) bool { return false }, nil
		}
		children := make([]matcher, 0, len(v.Children))
		for _, c := range v.Children {
			m, err := ev.compile(c, now)
			if err != nil {
				return nil, err
			}
			children = append(children, m)
		}
		return func(note *models.Note) bool {
			for _, m := range children {
				if !m(note) {
					return false
				}
			}
			return true
		}, nil

	case FreeText:
		term := strings.ToLower(v.Term)
		return func(note *models.Note) bool {
			return strings.Contains(strings.ToLower(note.Title), term) ||
				strings.Contains(strings.ToLower(note.Body), term)
		}, nil

	case Tag:
		return func(note *models.Note) bool {
			return slices.Contains(note.Tags, v.Name)
		}, nil

	case TitleContains:
		sub := strings.ToLower(v.Substring)
		return func(note *models.Note) bool {
			return strings.Contains(strings.ToLower(note.Title), sub)
		}, nil

	case DateFilter:
		return ev.compileDate(v, now)
	}
	return nil, apperr.Syntax("", "unsupported predicate %T", n)
}

func (ev Evaluator) compileDate(f DateFilter, now time.Time) (matcher, error) {
	loc := now.Location()
	bound := ev.resolve(f.Bound, now)

	created := func(note *models.Note) time.Time { return dayOf(note.CreatedAt, loc) }

	switch f.Kind {
	case On, Created:
		return func(note *models.Note) bool { return bound.contains(created(note)) }, nil
	case Updated:
		return func(note *models.Note) bool { return bound.contains(dayOf(note.UpdatedAt, loc)) }, nil
	case Before:
		return func(note *models.Note) bool { return created(note).Before(bound.from) }, nil
	case After:
		return func(note *models.Note) bool { return created(note).After(bound.to) }, nil
	case Between:
		end := ev.resolve(f.End, now)
		if bound.from.After(end.to) {
			return nil, apperr.Syntax(f.Clause, "start %s is after end %s", f.Bound, f.End)
		}
		window := span{bound.from, end.to}
		return func(note *models.Note) bool { return window.contains(created(note)) }, nil
	}
	return nil, apperr.Syntax(f.Clause, "unknown date filter %q", f.Kind)
}
