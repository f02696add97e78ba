package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/starford/ruin/internal/models"
)

var (
	primaryColor = lipgloss.Color("109")
	accentColor  = lipgloss.Color("171")
	mutedColor   = lipgloss.Color("243")
	successColor = lipgloss.Color("65")
	dangerColor  = lipgloss.Color("167")
)

type styles struct {
	title   lipgloss.Style
	path    lipgloss.Style
	tag     lipgloss.Style
	count   lipgloss.Style
	success lipgloss.Style
	danger  lipgloss.Style
	muted   lipgloss.Style
}

// newStyles binds the palette to w, so colours are dropped when w is not a
// terminal.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(primaryColor),
		path:    r.NewStyle().Foreground(mutedColor),
		tag:     r.NewStyle().Foreground(accentColor),
		count:   r.NewStyle().Foreground(mutedColor),
		success: r.NewStyle().Bold(true).Foreground(successColor),
		danger:  r.NewStyle().Bold(true).Foreground(dangerColor),
		muted:   r.NewStyle().Foreground(mutedColor),
	}
}

type printer struct {
	w    io.Writer
	json bool
	st   styles
}

func newPrinter(cmd *cli.Command, asJSON bool) *printer {
	w := stdout(cmd)
	return &printer{w: w, json: asJSON, st: newStyles(w)}
}

func (p *printer) writeJSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) line(s string) {
	fmt.Fprintln(p.w, s)
}

func (p *printer) tags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = "#" + t
	}
	return p.st.tag.Render(strings.Join(parts, " "))
}

// notes prints search results: an array with --json, one block per note
// otherwise.
func (p *printer) notes(notes []models.Note) error {
	summaries := models.Summarize(notes)
	if p.json {
		return p.writeJSON(summaries)
	}
	if len(summaries) == 0 {
		p.line(p.st.muted.Render("No notes."))
		return nil
	}
	for _, s := range summaries {
		title := s.Title
		if title == "" {
			title = s.UUID
		}
		head := p.st.title.Render(title)
		if tags := p.tags(s.Tags); tags != "" {
			head += "  " + tags
		}
		p.line(head)
		p.line("  " + p.st.path.Render(s.Path))
	}
	return nil
}

func (p *printer) done(msg string) {
	p.line(p.st.success.Render("✓") + " " + msg)
}

// confirm asks a yes/no question on an interactive terminal. A
// non-interactive stdin refuses, since nobody can answer.
func (a *app) confirm(cmd *cli.Command, prompt string) error {
	in := stdin(cmd)
	if !a.isTerminal(in) {
		return errors.New("stdin is not a terminal (use --force to skip confirmation)")
	}
	fmt.Fprintf(stderr(cmd), "%s [y/N] ", prompt)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read response: %w", err)
	}
	answer = strings.TrimSpace(strings.ToLower(answer))
	if answer != "y" && answer != "yes" {
		return errors.New("aborted")
	}
	return nil
}

// renderMarkdown renders body for a terminal of the width of w.
func renderMarkdown(w io.Writer, body string) (string, error) {
	width := 80
	if f, ok := w.(*os.File); ok {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 0 {
			width = cols
		}
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
		glamour.WithPreservedNewLines(),
	)
	if err != nil {
		return "", err
	}
	return r.Render(body)
}
