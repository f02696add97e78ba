// Package parser extracts frontmatter, tags, and titles from Markdown notes
// and writes them back.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

const maxLineTitle = 80

var (
	// The name class is greedy, so a match never stops before a letter,
	// mark or digit.
	tagRe     = regexp.MustCompile(`(?:^|\s)#(\p{L}[\p{L}\p{M}\p{N}_/-]*)`)
	tagNameRe = regexp.MustCompile(`^\p{L}[\p{L}\p{M}\p{N}_/-]*$`)

	md = goldmark.New()
)

// timeLayouts are accepted for the created/updated frontmatter fields.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// TagList decodes either a YAML sequence or a comma/space separated scalar.
type TagList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *TagList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*l = strings.FieldsFunc(value.Value, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("parser: tags must be a list or a string")
	}
}

// Frontmatter is the YAML block at the top of a note. Keys not modelled
// here are kept in Extra and written back unchanged.
type Frontmatter struct {
	ID      string         `yaml:"id,omitempty"`
	Title   string         `yaml:"title,omitempty"`
	Created string         `yaml:"created,omitempty"`
	Updated string         `yaml:"updated,omitempty"`
	Tags    TagList        `yaml:"tags,omitempty"`
	Extra   map[string]any `yaml:",inline"`
}

// CreatedAt parses the created field.
func (fm Frontmatter) CreatedAt() (time.Time, bool) {
	return parseTime(fm.Created)
}

// UpdatedAt parses the updated field.
func (fm Frontmatter) UpdatedAt() (time.Time, bool) {
	return parseTime(fm.Updated)
}

// FormatTime renders t the way the created/updated fields are written.
func FormatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Document is a parsed note file.
type Document struct {
	Frontmatter    Frontmatter
	HasFrontmatter bool
	Body           string
	// Tags is the normalized union of frontmatter and inline tags.
	Tags  []string
	Title string
}

// Parse splits raw note bytes into frontmatter and body and derives tags
// and title. Malformed frontmatter is treated as body text.
func Parse(data []byte) (*Document, error) {
	fm, ok, body := splitFrontmatter(data)
	src := []byte(body)
	root := md.Parser().Parse(text.NewReader(src))
	return &Document{
		Frontmatter:    fm,
		HasFrontmatter: ok,
		Body:           body,
		Tags:           collectTags(fm.Tags, body, inlineTagMatches(src, root)),
		Title:          titleFrom(fm, body, src, root),
	}, nil
}

// Compose renders fm and body back into note bytes.
func Compose(fm Frontmatter, body string) ([]byte, error) {
	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(head)
	buf.WriteString("---\n")
	buf.WriteString(body)
	if body != "" && !strings.HasSuffix(body, "\n") {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- lines)
// from the Markdown body.
func splitFrontmatter(data []byte) (Frontmatter, bool, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return Frontmatter{}, false, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return Frontmatter{}, false, string(data)
	}

	block := rest[:idx]
	after := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(after), "\n\r")

	var fm Frontmatter
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return Frontmatter{}, false, string(data)
	}
	return fm, true, body
}

// NormalizeTag lower-cases a tag and strips a leading # marker.
func NormalizeTag(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "#"))
}

// ValidTag reports whether a normalized tag name is well formed.
func ValidTag(name string) bool {
	return tagNameRe.MatchString(name) && name == strings.ToLower(name)
}

// TagPattern is the pattern every normalized tag name matches.
func TagPattern() *regexp.Regexp {
	return tagNameRe
}

// InlineTags returns the normalized #tags found in body, in order. Code
// blocks and code spans carry no tags.
func InlineTags(body string) []string {
	src := []byte(body)
	return collectTags(nil, body, inlineTagMatches(src, md.Parser().Parse(text.NewReader(src))))
}

// inlineTagMatches returns the tagRe submatch indexes in src whose # lies
// outside code.
func inlineTagMatches(src []byte, root ast.Node) [][]int {
	matches := tagRe.FindAllSubmatchIndex(src, -1)
	if len(matches) == 0 {
		return nil
	}
	code := codeRanges(root)
	out := matches[:0]
	for _, m := range matches {
		hash := m[2] - 1
		if !inRanges(code, hash) {
			out = append(out, m)
		}
	}
	return out
}

// codeRanges lists the source byte ranges covered by code blocks, code
// spans and raw HTML blocks.
func codeRanges(root ast.Node) []text.Segment {
	var out []text.Segment
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				out = append(out, lines.At(i))
			}
			return ast.WalkSkipChildren, nil
		case *ast.CodeSpan:
			for c := v.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					out = append(out, t.Segment)
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return out
}

func inRanges(segs []text.Segment, pos int) bool {
	for _, s := range segs {
		if pos >= s.Start && pos < s.Stop {
			return true
		}
	}
	return false
}

func collectTags(front []string, body string, matches [][]int) []string {
	seen := make(map[string]struct{})
	out := []string{}
	add := func(raw string) {
		t := NormalizeTag(raw)
		if !ValidTag(t) {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, t := range front {
		add(t)
	}
	for _, m := range matches {
		add(body[m[2]:m[3]])
	}
	return out
}

// RewriteInlineTag replaces every inline #tag in body whose normalized name
// equals tag. fn receives the name as written (without #) and returns the
// replacement text for the whole marker.
func RewriteInlineTag(body, tag string, fn func(name string) string) string {
	src := []byte(body)
	matches := inlineTagMatches(src, md.Parser().Parse(text.NewReader(src)))
	if len(matches) == 0 {
		return body
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		name := body[m[2]:m[3]]
		if NormalizeTag(name) != tag {
			continue
		}
		hash := m[2] - 1
		b.WriteString(body[last:hash])
		b.WriteString(fn(name))
		last = m[3]
	}
	b.WriteString(body[last:])
	return b.String()
}

// deriveTitle returns the frontmatter title if present, otherwise the first
// H1 heading, otherwise the first non-empty line.
func deriveTitle(fm Frontmatter, body string) string {
	src := []byte(body)
	return titleFrom(fm, body, src, md.Parser().Parse(text.NewReader(src)))
}

func titleFrom(fm Frontmatter, body string, src []byte, root ast.Node) string {
	if t := strings.TrimSpace(fm.Title); t != "" {
		return t
	}
	var title string
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 {
			title = strings.TrimSpace(inlineText(h, src))
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if title != "" {
		return title
	}
	return firstLine(body)
}

func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(src))
			if v.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		default:
			b.WriteString(inlineText(c, src))
		}
	}
	return b.String()
}

func firstLine(body string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if trimmed := strings.TrimLeft(line, "#"); trimmed != line && strings.HasPrefix(trimmed, " ") {
			line = strings.TrimSpace(trimmed)
		}
		if utf8.RuneCountInString(line) > maxLineTitle {
			line = string([]rune(line)[:maxLineTitle])
		}
		return line
	}
	return ""
}
