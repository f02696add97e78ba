// Package query parses and evaluates the note query language:
// conjunctions of free text, #tag, title:, and date clauses joined by &&.
package query

import (
	"fmt"
	"time"
)

// Node is an element of a parsed predicate tree.
type Node interface {
	isNode()
}

// And matches when every child matches. An And without children matches
// nothing.
type And struct {
	Children []Node
}

// FreeText is a case-insensitive substring match against title and body.
type FreeText struct {
	Term string
}

// Tag matches notes carrying the normalized tag name.
type Tag struct {
	Name string
}

// TitleContains is a case-insensitive substring match against the title.
type TitleContains struct {
	Substring string
}

// DateKind selects the timestamp and comparison of a DateFilter.
type DateKind string

const (
	On      DateKind = "on"
	Created DateKind = "created"
	Updated DateKind = "updated"
	Before  DateKind = "before"
	After   DateKind = "after"
	Between DateKind = "between"
)

// DateFilter compares a note timestamp against a date expression. End is
// only set for Between.
type DateFilter struct {
	Kind   DateKind
	Bound  DateExpr
	End    DateExpr
	Clause string
}

// DateExpr is either an absolute calendar day or a relative token that is
// resolved against the evaluation clock.
type DateExpr struct {
	Token string
	Year  int
	Month time.Month
	Day   int
}

// IsRelative reports whether the expression depends on the current time.
func (e DateExpr) IsRelative() bool {
	return e.Token != ""
}

func (e DateExpr) String() string {
	if e.Token != "" {
		return e.Token
	}
	return fmt.Sprintf("%04d-%02d-%02d", e.Year, e.Month, e.Day)
}

func (And) isNode()           {}
func (FreeText) isNode()      {}
func (Tag) isNode()           {}
func (TitleContains) isNode() {}
func (DateFilter) isNode()    {}
