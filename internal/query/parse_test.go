package query

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/starford/ruin/internal/apperr"
)

func TestParse_Clauses(t *testing.T) {
	got, err := Parse("buy milk && #Project && title:Road Map && created:today && between:2024-01-01,30d")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := And{Children: []Node{
		FreeText{Term: "buy milk"},
		Tag{Name: "project"},
		TitleContains{Substring: "Road Map"},
		DateFilter{Kind: Created, Bound: DateExpr{Token: "today"}, Clause: "created:today"},
		DateFilter{
			Kind:   Between,
			Bound:  DateExpr{Year: 2024, Month: time.January, Day: 1},
			End:    DateExpr{Token: "30d"},
			Clause: "between:2024-01-01,30d",
		},
	}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tree = %#v\nwant   %#v", got, want)
	}
}

func TestParse_AllDateKinds(t *testing.T) {
	for _, kind := range []DateKind{On, Created, Updated, Before, After} {
		n, err := Parse(string(kind) + ":2024-03-05")
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		f := n.(And).Children[0].(DateFilter)
		if f.Kind != kind || f.Bound.String() != "2024-03-05" {
			t.Errorf("%s parsed as %+v", kind, f)
		}
	}
	for tok := range relativeTokens {
		if _, err := Parse("on:" + tok); err != nil {
			t.Errorf("token %q rejected: %v", tok, err)
		}
	}
}

func TestParse_Deterministic(t *testing.T) {
	const q = "#a && title:x && after:last-week && free"
	first, err := Parse(q)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, _ := Parse(q)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("parse %d differs: %#v vs %#v", i, first, again)
		}
	}
}

func TestParse_Blank(t *testing.T) {
	for _, q := range []string{"", "   ", "\t\n"} {
		n, err := Parse(q)
		if err != nil {
			t.Fatalf("Parse(%q): %v", q, err)
		}
		if !isEmpty(n) {
			t.Errorf("Parse(%q) = %#v, want empty And", q, n)
		}
	}
}

func TestParse_SyntaxErrors(t *testing.T) {
	cases := []struct {
		query  string
		clause string
	}{
		{"#", "#"},
		{"#has space", "#has space"},
		{"title:", "title:"},
		{"on:", "on:"},
		{"created:someday", "created:someday"},
		{"before:2024-13-01", "before:2024-13-01"},
		{"between:2024-01-01", "between:2024-01-01"},
		{"between:2024-01-01,2024-01-02,2024-01-03", "between:2024-01-01,2024-01-02,2024-01-03"},
		{"between:,today", "between:,today"},
		{"milk && ", "milk && "},
		{"a && && b", "a && && b"},
		// Clauses are joined by && only; whitespace does not separate them.
		{"#project title:roadmap && created:today", "#project title:roadmap"},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			_, err := Parse(tc.query)
			if !errors.Is(err, apperr.ErrSyntax) {
				t.Fatalf("err = %v, want syntax error", err)
			}
			var se *apperr.SyntaxError
			if !errors.As(err, &se) || se.Clause != tc.clause {
				t.Errorf("clause = %q, want %q", se.Clause, tc.clause)
			}
		})
	}
}

func TestParse_UnicodeTag(t *testing.T) {
	n, err := Parse("#Café && #日本語")
	if err != nil {
		t.Fatal(err)
	}
	want := And{Children: []Node{Tag{Name: "café"}, Tag{Name: "日本語"}}}
	if !reflect.DeepEqual(n, want) {
		t.Errorf("got %#v", n)
	}
}

func TestParse_UnknownPrefixIsFreeText(t *testing.T) {
	n, err := Parse("status:done")
	if err != nil {
		t.Fatal(err)
	}
	if got := n.(And).Children[0]; got != (FreeText{Term: "status:done"}) {
		t.Errorf("got %#v", got)
	}
}
