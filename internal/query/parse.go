package query

import (
	"strings"
	"time"

	"github.com/starford/ruin/internal/apperr"
	"github.com/starford/ruin/internal/parser"
)

// Separator joins clauses of a query.
const Separator = "&&"

var datePrefixes = []DateKind{On, Created, Updated, Before, After}

// Relative date tokens accepted wherever a date is expected.
var relativeTokens = map[string]struct{}{
	"today":      {},
	"yesterday":  {},
	"this-week":  {},
	"last-week":  {},
	"this-month": {},
	"last-month": {},
	"7d":         {},
	"30d":        {},
}

// Parse turns a query string into a predicate tree. A blank query yields an
// And without children. Malformed clauses are reported as
// *apperr.SyntaxError; nothing is silently dropped.
func Parse(raw string) (Node, error) {
	root := And{Children: []Node{}}
	if strings.TrimSpace(raw) == "" {
		return root, nil
	}
	for _, part := range strings.Split(raw, Separator) {
		clause := strings.TrimSpace(part)
		if clause == "" {
			return nil, apperr.Syntax(raw, "empty clause around %q", Separator)
		}
		n, err := parseClause(clause)
		if err != nil {
			return nil, err
		}
		root.Children = append(root.Children, n)
	}
	return root, nil
}

func parseClause(clause string) (Node, error) {
	switch {
	case strings.HasPrefix(clause, "#"):
		name := parser.NormalizeTag(clause)
		if name == "" {
			return nil, apperr.Syntax(clause, "missing tag name after #")
		}
		if !parser.ValidTag(name) {
			return nil, apperr.Syntax(clause, "invalid tag name %q", name)
		}
		return Tag{Name: name}, nil

	case strings.HasPrefix(clause, "title:"):
		sub := strings.TrimSpace(strings.TrimPrefix(clause, "title:"))
		if sub == "" {
			return nil, apperr.Syntax(clause, "missing text after title:")
		}
		return TitleContains{Substring: sub}, nil

	case strings.HasPrefix(clause, string(Between)+":"):
		return parseBetween(clause)
	}

	for _, kind := range datePrefixes {
		prefix := string(kind) + ":"
		if !strings.HasPrefix(clause, prefix) {
			continue
		}
		expr, err := parseDate(clause, strings.TrimPrefix(clause, prefix))
		if err != nil {
			return nil, err
		}
		return DateFilter{Kind: kind, Bound: expr, Clause: clause}, nil
	}

	return FreeText{Term: clause}, nil
}

func parseBetween(clause string) (Node, error) {
	rest := strings.TrimPrefix(clause, string(Between)+":")
	parts := strings.Split(rest, ",")
	if len(parts) != 2 {
		return nil, apperr.Syntax(clause, "between needs exactly two dates as start,end")
	}
	start, err := parseDate(clause, parts[0])
	if err != nil {
		return nil, err
	}
	end, err := parseDate(clause, parts[1])
	if err != nil {
		return nil, err
	}
	return DateFilter{Kind: Between, Bound: start, End: end, Clause: clause}, nil
}

func parseDate(clause, s string) (DateExpr, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DateExpr{}, apperr.Syntax(clause, "missing date")
	}
	if _, ok := relativeTokens[s]; ok {
		return DateExpr{Token: s}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return DateExpr{}, apperr.Syntax(clause, "invalid date %q (want YYYY-MM-DD or a relative token)", s)
	}
	return DateExpr{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}
