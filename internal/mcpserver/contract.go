package mcpserver

// QuerySyntax is the reference for the ruin query language, served to LLM
// consumers before they search or save queries.
const QuerySyntax = `# ruin Query Syntax

A query is one or more clauses joined by ` + "`&&`" + `. Every clause must match
(there is no OR and no NOT). An empty query matches nothing.

## Clauses

| clause | matches |
|---|---|
| ` + "`#tag`" + ` | notes carrying the tag (case-insensitive) |
| ` + "`title:text`" + ` | notes whose title contains text |
| ` + "`on:DATE`" + ` / ` + "`created:DATE`" + ` | notes created on that day |
| ` + "`updated:DATE`" + ` | notes last updated on that day |
| ` + "`before:DATE`" + ` | notes created strictly before that day |
| ` + "`after:DATE`" + ` | notes created strictly after that day |
| ` + "`between:DATE,DATE`" + ` | notes created within the range, both ends included |
| anything else | free text, a case-insensitive substring of title or body |

## Dates

- ` + "`YYYY-MM-DD`" + `, e.g. ` + "`2024-01-31`" + `
- ` + "`today`" + `, ` + "`yesterday`" + `
- ` + "`this-week`" + `, ` + "`last-week`" + ` (weeks start on Monday unless configured)
- ` + "`this-month`" + `, ` + "`last-month`" + `
- ` + "`7d`" + `, ` + "`30d`" + ` (the last 7 or 30 days, today included)

Relative dates are resolved when the query runs, so a saved query such as
` + "`created:this-week`" + ` always means the current week.

## Errors

A malformed clause (empty clause between ` + "`&&`" + `, ` + "`title:`" + ` without text,
an invalid tag, an unknown date, a reversed ` + "`between`" + ` range) is reported as a
syntax error naming the clause. It never silently returns an empty result.

## Examples

- ` + "`#work && created:this-week`" + `
- ` + "`milk && #errands`" + `
- ` + "`title:standup && between:2024-01-01,2024-01-31`" + `
`
