package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

func (a *app) syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Reconcile the index with the vault on disk",
		Flags: []cli.Flag{jsonFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			inv, err := parseArgs(cmd)
			if err != nil {
				return err
			}
			return a.withBackend(ctx, cmd, func(b Backend) error {
				rep, err := b.Engine().Sync(ctx)
				if err != nil {
					return err
				}
				p := newPrinter(cmd, inv.has("json"))
				if p.json {
					return p.writeJSON(rep)
				}
				p.done(rep.String())
				return nil
			})
		},
	}
}

func (a *app) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the REST API, the event stream and the vault watcher",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return a.withBackend(ctx, cmd, func(b Backend) error {
				return b.Serve(ctx)
			})
		},
	}
}

func (a *app) mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the MCP tools over stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return a.withBackend(ctx, cmd, func(b Backend) error {
				return b.ServeMCP(ctx)
			})
		},
	}
}
