package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/community-gate/internal/persistence/memory"
	"github.com/example/community-gate/internal/persistence/sqlite"
)

// NewSQLiteStore opens a migrated SQLite store in a temporary directory. The
// store is closed when the test finishes.
func NewSQLiteStore(tb testing.TB) *sqlite.Store {
	tb.Helper()

	config := sqlite.DefaultConfig(filepath.Join(tb.TempDir(), "curfew.db"))
	store, err := sqlite.Open(context.Background(), config, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })
	return store
}

// NewSeededMemoryStore returns an in-memory store holding tenant and rules.
func NewSeededMemoryStore(tb testing.TB, tenant TenantFixture, rules ...RuleFixture) *memory.Store {
	tb.Helper()

	store := memory.New()
	if err := Seed(context.Background(), store, tenant, rules); err != nil {
		tb.Fatalf("failed to seed store: %v", err)
	}
	return store
}
