package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/starford/ruin/internal/engine"
)

func (a *app) logCommand() *cli.Command {
	return &cli.Command{
		Name:      "log",
		Usage:     "Create a note from the arguments or stdin",
		ArgsUsage: "[content...]",
		Flags: []cli.Flag{
			jsonFlag(),
			&cli.BoolFlag{Name: "stdin", Usage: "Read the note content from stdin"},
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Explicit note title"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			inv, err := parseArgs(cmd)
			if err != nil {
				return err
			}
			content := inv.rest(0)
			if inv.has("stdin") {
				data, err := io.ReadAll(stdin(cmd))
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				content = string(data)
			}
			return a.withEngine(ctx, cmd, func(eng engine.NoteEngine) error {
				res, err := eng.Create(ctx, content, inv.value("title"))
				if err != nil {
					return err
				}
				p := newPrinter(cmd, inv.has("json"))
				if p.json {
					return p.writeJSON(res)
				}
				p.done("logged " + p.st.path.Render(res.Path))
				return nil
			})
		},
	}
}

func (a *app) searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search notes, e.g. ruin search '#work && created:this-week'",
		ArgsUsage: "QUERY",
		Flags:     []cli.Flag{jsonFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			inv, err := parseArgs(cmd)
			if err != nil {
				return err
			}
			return a.withEngine(ctx, cmd, func(eng engine.NoteEngine) error {
				notes, err := eng.Search(ctx, inv.rest(0))
				if err != nil {
					return err
				}
				return newPrinter(cmd, inv.has("json")).notes(notes)
			})
		},
	}
}

func (a *app) todayCommand() *cli.Command {
	return &cli.Command{
		Name:  "today",
		Usage: "List the notes created today",
		Flags: []cli.Flag{jsonFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			inv, err := parseArgs(cmd)
			if err != nil {
				return err
			}
			return a.withEngine(ctx, cmd, func(eng engine.NoteEngine) error {
				notes, err := eng.Today(ctx)
				if err != nil {
					return err
				}
				return newPrinter(cmd, inv.has("json")).notes(notes)
			})
		},
	}
}

type noteJSON struct {
	UUID      string    `json:"uuid"`
	Path      string    `json:"path"`
	Title     string    `json:"title,omitempty"`
	Tags      []string  `json:"tags"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *app) showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print a note by uuid",
		ArgsUsage: "UUID",
		Flags: []cli.Flag{
			jsonFlag(),
			&cli.BoolFlag{Name: "raw", Usage: "Print the file as stored, without rendering"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			inv, err := parseArgs(cmd)
			if err != nil {
				return err
			}
			if err := inv.want(1, "show UUID"); err != nil {
				return err
			}
			return a.withEngine(ctx, cmd, func(eng engine.NoteEngine) error {
				n, err := eng.Get(ctx, inv.arg(0))
				if err != nil {
					return err
				}
				p := newPrinter(cmd, inv.has("json"))
				if p.json {
					tags := n.Tags
					if tags == nil {
						tags = []string{}
					}
					return p.writeJSON(noteJSON{
						UUID:      n.ID,
						Path:      n.Path,
						Title:     n.Title,
						Tags:      tags,
						Content:   string(n.Content),
						CreatedAt: n.CreatedAt,
						UpdatedAt: n.UpdatedAt,
					})
				}
				if inv.has("raw") || !a.isTerminal(p.w) {
					_, err := p.w.Write(n.Content)
					return err
				}
				out, err := renderMarkdown(p.w, n.Body)
				if err != nil {
					_, err = p.w.Write(n.Content)
					return err
				}
				fmt.Fprint(p.w, out)
				if tags := p.tags(n.Tags); tags != "" {
					p.line("  " + tags)
				}
				return nil
			})
		},
	}
}
