package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/community-gate/internal/config"
	"github.com/example/community-gate/internal/persistence"
	"github.com/example/community-gate/internal/persistence/memory"
	"github.com/example/community-gate/internal/persistence/sqlite"
)

// gateStore is what the process needs from either store implementation.
type gateStore interface {
	persistence.TenantRepository
	persistence.CurfewRepository
	Ping(ctx context.Context) error
	Close() error
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (gateStore, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StoreSQLite, "":
		store, err := sqlite.Open(ctx, sqlite.DefaultConfig(cfg.SQLiteDSN), logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
