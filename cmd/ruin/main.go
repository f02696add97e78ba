package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/joho/godotenv/autoload"

	"github.com/starford/ruin/internal"
	"github.com/starford/ruin/internal/cli"
)

var version = "dev"

func open(_ context.Context, configPath string) (cli.Backend, error) {
	if configPath == "" {
		configPath = filepath.Join(internal.DefaultHome(), "config.yaml")
	}

	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	rt, err := internal.Open(internal.WithConfig(cfg), internal.WithVersion(version))
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func main() {
	cmd := cli.New(open)
	cmd.Version = version

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ruin:", err)
		os.Exit(1)
	}
}
