// Package sqlite stores tenants and curfew rules in a SQLite database through
// modernc.org/sqlite.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
)

// Store bundles the SQLite repositories over one migrated connection pool.
type Store struct {
	*TenantRepository
	*CurfewRepository

	pool *ConnectionPool
}

// Open connects to the database described by config and applies pending migrations.
func Open(ctx context.Context, config Config, logger *slog.Logger) (*Store, error) {
	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{
		TenantRepository: NewTenantRepository(pool),
		CurfewRepository: NewCurfewRepository(pool),
		pool:             pool,
	}, nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}
