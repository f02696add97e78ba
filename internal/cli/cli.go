// Package cli implements the ruin command line on top of the note engine.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/starford/ruin/internal/engine"
)

// Backend is an opened vault as seen by the commands.
type Backend interface {
	Engine() engine.NoteEngine
	// AutoSync reports whether one-shot commands reconcile the index first.
	AutoSync() bool
	Serve(ctx context.Context) error
	ServeMCP(ctx context.Context) error
	Close() error
}

// Opener opens the vault described by the config file at configPath.
type Opener func(ctx context.Context, configPath string) (Backend, error)

// Option configures the command tree.
type Option func(*app)

// WithTerminal replaces the terminal check used for confirmation prompts
// and rendering. It is called with the command's reader or writer.
func WithTerminal(fn func(v any) bool) Option {
	return func(a *app) {
		a.isTerminal = fn
	}
}

type app struct {
	open       Opener
	isTerminal func(v any) bool
}

// New returns the root ruin command.
func New(open Opener, opts ...Option) *cli.Command {
	a := &app{open: open, isTerminal: isTerminal}
	for _, opt := range opts {
		opt(a)
	}

	return &cli.Command{
		Name:  "ruin",
		Usage: "Plain Markdown notes with tags, dates and a small query language",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (missing file means defaults)",
				Value:   "",
				Sources: cli.EnvVars("RUIN_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			a.logCommand(),
			a.searchCommand(),
			a.todayCommand(),
			a.showCommand(),
			a.tagsCommand(),
			a.queryCommand(),
			a.syncCommand(),
			a.serveCommand(),
			a.mcpCommand(),
		},
	}
}

func isTerminal(v any) bool {
	if f, ok := v.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Print machine-readable JSON"}
}

func forceFlag() cli.Flag {
	return &cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Do not ask for confirmation"}
}

// invocation holds positional arguments with the command's flags resolved.
// Flags may also trail the positionals ("ruin search '#a' --json"); a
// lone "--" ends flag scanning.
type invocation struct {
	args   []string
	flags  map[string]bool
	values map[string]string
}

func parseArgs(cmd *cli.Command) (invocation, error) {
	inv := invocation{flags: make(map[string]bool), values: make(map[string]string)}
	known := make(map[string]cli.Flag)
	for _, f := range cmd.Flags {
		for _, name := range f.Names() {
			known[name] = f
		}
		switch v := f.(type) {
		case *cli.BoolFlag:
			inv.flags[v.Name] = cmd.Bool(v.Name)
		case *cli.StringFlag:
			inv.values[v.Name] = cmd.String(v.Name)
		}
	}

	args := cmd.Args().Slice()
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			inv.args = append(inv.args, args[i+1:]...)
			break
		}
		if len(arg) < 2 || arg[0] != '-' {
			inv.args = append(inv.args, arg)
			continue
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		f, ok := known[name]
		if !ok {
			if strings.HasPrefix(arg, "--") {
				return inv, fmt.Errorf("unknown flag %s (use -- before content starting with --)", arg)
			}
			inv.args = append(inv.args, arg)
			continue
		}
		switch v := f.(type) {
		case *cli.BoolFlag:
			on := true
			if hasValue {
				b, err := strconv.ParseBool(value)
				if err != nil {
					return inv, fmt.Errorf("invalid value %q for flag %s", value, arg)
				}
				on = b
			}
			inv.flags[v.Name] = on
		case *cli.StringFlag:
			if !hasValue {
				if i+1 >= len(args) {
					return inv, fmt.Errorf("flag %s needs a value", arg)
				}
				i++
				value = args[i]
			}
			inv.values[v.Name] = value
		}
	}
	return inv, nil
}

func (inv invocation) has(name string) bool {
	return inv.flags[name]
}

func (inv invocation) value(name string) string {
	return inv.values[name]
}

func (inv invocation) arg(i int) string {
	if i < len(inv.args) {
		return inv.args[i]
	}
	return ""
}

func (inv invocation) rest(from int) string {
	if from >= len(inv.args) {
		return ""
	}
	return strings.Join(inv.args[from:], " ")
}

func (inv invocation) want(n int, usage string) error {
	if len(inv.args) != n {
		return fmt.Errorf("usage: ruin %s", usage)
	}
	return nil
}

// withBackend opens the vault for the duration of fn.
func (a *app) withBackend(ctx context.Context, cmd *cli.Command, fn func(Backend) error) error {
	b, err := a.open(ctx, cmd.Root().String("config"))
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(b)
}

// withEngine opens the vault, reconciles it when configured to, and runs fn.
func (a *app) withEngine(ctx context.Context, cmd *cli.Command, fn func(engine.NoteEngine) error) error {
	return a.withBackend(ctx, cmd, func(b Backend) error {
		eng := b.Engine()
		if b.AutoSync() {
			if _, err := eng.Sync(ctx); err != nil {
				return err
			}
		}
		return fn(eng)
	})
}

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func stderr(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}

func stdin(cmd *cli.Command) io.Reader {
	if r := cmd.Root().Reader; r != nil {
		return r
	}
	return os.Stdin
}
