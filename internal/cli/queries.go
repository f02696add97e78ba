package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/starford/ruin/internal/engine"
)

func (a *app) queryCommand() *cli.Command {
	return &cli.Command{
		Name:  "query",
		Usage: "Manage saved queries",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List saved queries",
				Flags: []cli.Flag{jsonFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					inv, err := parseArgs(cmd)
					if err != nil {
						return err
					}
					return a.withBackend(ctx, cmd, func(b Backend) error {
						list, err := b.Engine().Queries(ctx)
						if err != nil {
							return err
						}
						p := newPrinter(cmd, inv.has("json"))
						if p.json {
							return p.writeJSON(list)
						}
						if len(list) == 0 {
							p.line(p.st.muted.Render("No saved queries."))
							return nil
						}
						for _, q := range list {
							p.line(fmt.Sprintf("%s  %s", p.st.title.Render(q.Name), q.Query))
						}
						return nil
					})
				},
			},
			{
				Name:      "save",
				Usage:     "Save a query under a name",
				ArgsUsage: "NAME QUERY",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					inv, err := parseArgs(cmd)
					if err != nil {
						return err
					}
					if len(inv.args) < 2 {
						return fmt.Errorf("usage: ruin query save NAME QUERY")
					}
					name := inv.arg(0)
					return a.withBackend(ctx, cmd, func(b Backend) error {
						if err := b.Engine().SaveQuery(ctx, name, inv.rest(1)); err != nil {
							return err
						}
						newPrinter(cmd, false).done("saved query " + name)
						return nil
					})
				},
			},
			{
				Name:      "run",
				Usage:     "Run a saved query",
				ArgsUsage: "NAME",
				Flags:     []cli.Flag{jsonFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					inv, err := parseArgs(cmd)
					if err != nil {
						return err
					}
					if err := inv.want(1, "query run NAME"); err != nil {
						return err
					}
					return a.withEngine(ctx, cmd, func(eng engine.NoteEngine) error {
						notes, err := eng.RunQuery(ctx, inv.arg(0))
						if err != nil {
							return err
						}
						return newPrinter(cmd, inv.has("json")).notes(notes)
					})
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a saved query",
				ArgsUsage: "NAME",
				Flags:     []cli.Flag{forceFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					inv, err := parseArgs(cmd)
					if err != nil {
						return err
					}
					if err := inv.want(1, "query delete NAME"); err != nil {
						return err
					}
					name := inv.arg(0)
					if !inv.has("force") {
						if err := a.confirm(cmd, fmt.Sprintf("Delete saved query %s?", name)); err != nil {
							return err
						}
					}
					return a.withBackend(ctx, cmd, func(b Backend) error {
						if err := b.Engine().DeleteQuery(ctx, name); err != nil {
							return err
						}
						newPrinter(cmd, false).done("deleted query " + name)
						return nil
					})
				},
			},
		},
	}
}
