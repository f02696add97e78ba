package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/starford/ruin/internal/engine"
)

func (a *app) tagsCommand() *cli.Command {
	list := &cli.Command{
		Name:  "list",
		Usage: "List tags with note counts",
		Flags: []cli.Flag{jsonFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			inv, err := parseArgs(cmd)
			if err != nil {
				return err
			}
			return a.withEngine(ctx, cmd, func(eng engine.NoteEngine) error {
				tags, err := eng.Tags(ctx)
				if err != nil {
					return err
				}
				p := newPrinter(cmd, inv.has("json"))
				if p.json {
					return p.writeJSON(tags)
				}
				if len(tags) == 0 {
					p.line(p.st.muted.Render("No tags."))
					return nil
				}
				for _, t := range tags {
					p.line(fmt.Sprintf("%s %s", p.st.tag.Render("#"+t.Name), p.st.count.Render(fmt.Sprint(t.Count))))
				}
				return nil
			})
		},
	}

	return &cli.Command{
		Name:   "tags",
		Usage:  "List, rename and delete tags",
		Action: list.Action,
		Flags:  []cli.Flag{jsonFlag()},
		Commands: []*cli.Command{
			list,
			{
				Name:      "rename",
				Usage:     "Rename a tag in every note (merges into an existing tag)",
				ArgsUsage: "OLD NEW",
				Flags:     []cli.Flag{forceFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					inv, err := parseArgs(cmd)
					if err != nil {
						return err
					}
					if err := inv.want(2, "tags rename OLD NEW"); err != nil {
						return err
					}
					from, to := inv.arg(0), inv.arg(1)
					if !inv.has("force") {
						if err := a.confirm(cmd, fmt.Sprintf("Rename #%s to #%s in every note?", from, to)); err != nil {
							return err
						}
					}
					return a.withEngine(ctx, cmd, func(eng engine.NoteEngine) error {
						if err := eng.RenameTag(ctx, from, to); err != nil {
							return err
						}
						newPrinter(cmd, false).done(fmt.Sprintf("renamed #%s to #%s", from, to))
						return nil
					})
				},
			},
			{
				Name:      "delete",
				Usage:     "Remove a tag from every note",
				ArgsUsage: "NAME",
				Flags:     []cli.Flag{forceFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					inv, err := parseArgs(cmd)
					if err != nil {
						return err
					}
					if err := inv.want(1, "tags delete NAME"); err != nil {
						return err
					}
					name := inv.arg(0)
					if !inv.has("force") {
						if err := a.confirm(cmd, fmt.Sprintf("Remove #%s from every note?", name)); err != nil {
							return err
						}
					}
					return a.withEngine(ctx, cmd, func(eng engine.NoteEngine) error {
						if err := eng.DeleteTag(ctx, name); err != nil {
							return err
						}
						newPrinter(cmd, false).done("deleted #" + name)
						return nil
					})
				},
			},
		},
	}
}
