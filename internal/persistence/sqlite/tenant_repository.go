package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/example/community-gate/internal/persistence"
)

// TenantRepository implements persistence.TenantRepository using SQLite
type TenantRepository struct {
	pool  *ConnectionPool
	retry RetryConfig
	now   func() time.Time
}

// NewTenantRepository creates a new SQLite tenant repository
func NewTenantRepository(pool *ConnectionPool) *TenantRepository {
	return &TenantRepository{pool: pool, retry: DefaultRetryConfig(), now: time.Now}
}

// GetTenant retrieves a tenant by ID from the database
func (r *TenantRepository) GetTenant(ctx context.Context, id string) (persistence.Tenant, error) {
	if id == "" {
		return persistence.Tenant{}, persistence.ErrNotFound
	}

	var tenant persistence.Tenant
	var createdAt, updatedAt string
	err := withRetry(ctx, r.retry, func() error {
		return r.pool.db.QueryRowContext(ctx, `
			SELECT id, name, timezone, created_at, updated_at
			FROM tenants
			WHERE id = ?
		`, id).Scan(&tenant.ID, &tenant.Name, &tenant.Timezone, &createdAt, &updatedAt)
	})
	if err != nil {
		return persistence.Tenant{}, err
	}

	if tenant.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.Tenant{}, fmt.Errorf("tenant %s: %w", id, err)
	}
	if tenant.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.Tenant{}, fmt.Errorf("tenant %s: %w", id, err)
	}
	return tenant, nil
}

// UpsertTenant inserts a tenant or updates its name and timezone.
func (r *TenantRepository) UpsertTenant(ctx context.Context, tenant persistence.Tenant) error {
	if tenant.ID == "" {
		return persistence.ErrConstraintViolation
	}

	now := r.now().UTC()
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = now
	}
	if tenant.UpdatedAt.IsZero() {
		tenant.UpdatedAt = now
	}

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, timezone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			timezone = excluded.timezone,
			updated_at = excluded.updated_at
	`,
		tenant.ID,
		tenant.Name,
		tenant.Timezone,
		formatTimestamp(tenant.CreatedAt),
		formatTimestamp(tenant.UpdatedAt),
	)
	return mapError(err)
}

// timestampLayout has fixed width so created_at sorts lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", value, err)
	}
	return t, nil
}
