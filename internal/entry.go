// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ruin/internal/api"
	"github.com/starford/ruin/internal/engine"
	"github.com/starford/ruin/internal/index"
	"github.com/starford/ruin/internal/mcpserver"
	"github.com/starford/ruin/internal/sse"
	"github.com/starford/ruin/internal/storage"
)

// Runtime is an opened vault: storage, index, engine and the event broker
// that engine and watcher changes are published to.
type Runtime struct {
	cfg     *Config
	logger  *slog.Logger
	version string
	db      *index.DB
	eng     *engine.Engine
	broker  *sse.Broker
}

// Open builds a Runtime from the given options. The caller must Close it.
func Open(opts ...Option) (*Runtime, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}

	logger.Debug("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("week_start", cfg.Query.WeekStart),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	broker := sse.NewBroker(2 * time.Second)

	engOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithWeekStart(cfg.Query.Weekday()),
		engine.WithObserver(broker.PublishChange),
	}
	if app.now != nil {
		engOpts = append(engOpts, engine.WithClock(app.now))
	}

	return &Runtime{
		cfg:     cfg,
		logger:  logger,
		version: app.version,
		db:      db,
		eng:     engine.New(db, store, engOpts...),
		broker:  broker,
	}, nil
}

// Engine returns the note engine.
func (rt *Runtime) Engine() engine.NoteEngine {
	return rt.eng
}

// AutoSync reports whether one-shot commands should reconcile the index
// with the vault before running.
func (rt *Runtime) AutoSync() bool {
	return rt.cfg.Vault.SyncOnOpen
}

// Close stops the broker and closes the index.
func (rt *Runtime) Close() error {
	rt.broker.Close()
	return rt.db.Close()
}

func (rt *Runtime) initialSync(ctx context.Context) {
	rep, err := rt.eng.Sync(ctx)
	if err != nil {
		rt.logger.Warn("initial sync failed", slog.String("error", err.Error()))
		return
	}
	rt.logger.Info("initial sync done", slog.String("report", rep.String()))
}

func (rt *Runtime) watch(ctx context.Context) error {
	return index.Watch(ctx, rt.eng.Syncer(), rt.cfg.Vault.Path, rt.logger, rt.broker.PublishNoteEvent)
}

// Serve runs the REST API, the SSE stream and the vault watcher until ctx
// is cancelled or a SIGINT/SIGTERM arrives.
func (rt *Runtime) Serve(ctx context.Context) error {
	cfg := rt.cfg
	logger := rt.logger

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt.initialSync(ctx)

	apiRouter := api.NewRouter(rt.eng, cfg.Auth.AuthEnabled(), cfg.Auth.Token, rt.broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", healthOK)
	r.Get("/health/ready", healthOK)

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := rt.watch(gCtx); err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// ServeMCP serves the MCP tools over stdio. The vault watcher runs alongside
// so hand-edited files stay searchable.
func (rt *Runtime) ServeMCP(ctx context.Context) error {
	rt.initialSync(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := rt.watch(ctx); err != nil {
			rt.logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
	}()

	return mcpserver.New(rt.eng, rt.version).ServeStdio()
}

// Run opens the vault and serves the HTTP API until shutdown.
func Run(ctx context.Context, opts ...Option) error {
	rt, err := Open(opts...)
	if err != nil {
		return err
	}
	defer rt.Close()
	return rt.Serve(ctx)
}

func healthOK(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
