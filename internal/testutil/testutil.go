// Package testutil provides shared test helpers for setting up vaults, databases and engines.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/ruin/internal/engine"
	"github.com/starford/ruin/internal/index"
	"github.com/starford/ruin/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ruin-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock reading t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current clock reading.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Env bundles an engine with the pieces it was built from.
type Env struct {
	Engine   *engine.Engine
	DB       *index.DB
	Store    storage.Provider
	VaultDir string
}

// TestEngine builds an engine over a fresh vault and database. Options are
// applied after a discarding logger.
func TestEngine(t *testing.T, opts ...engine.Option) *Env {
	t.Helper()
	vaultDir, store := TestVault(t)
	db := TestDB(t)
	opts = append([]engine.Option{engine.WithLogger(Logger())}, opts...)
	return &Env{
		Engine:   engine.New(db, store, opts...),
		DB:       db,
		Store:    store,
		VaultDir: vaultDir,
	}
}
