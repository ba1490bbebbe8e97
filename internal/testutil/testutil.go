// Package testutil provides shared test helpers for wiring a note store,
// index and vault.
package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/starford/neuralnotes/internal/editor"
	"github.com/starford/neuralnotes/internal/index"
	"github.com/starford/neuralnotes/internal/markdown"
	"github.com/starford/neuralnotes/internal/notestore"
	"github.com/starford/neuralnotes/internal/storage"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestDB opens an in-memory index that is closed at cleanup.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(index.MemoryDSN)
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
	fs, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, fs
}

// Env is a store with an index observer, a session manager and a renderer.
type Env struct {
	Store    *notestore.Store
	Index    *index.DB
	Sessions *editor.Manager
	Renderer *markdown.Renderer
}

// NewEnv wires an empty Env. Pass notestore options to control ids and time.
func NewEnv(t *testing.T, opts ...notestore.Option) *Env {
	t.Helper()
	store := notestore.New(append([]notestore.Option{notestore.WithLogger(Logger())}, opts...)...)
	db := TestDB(t)
	store.Subscribe(index.Observer(db, Logger()))
	return &Env{
		Store:    store,
		Index:    db,
		Sessions: editor.NewManager(store),
		Renderer: markdown.New(),
	}
}
