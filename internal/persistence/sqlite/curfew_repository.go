package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/community-gate/internal/persistence"
)

// CurfewRepository implements persistence.CurfewRepository using SQLite
type CurfewRepository struct {
	pool  *ConnectionPool
	retry RetryConfig
	now   func() time.Time
}

// NewCurfewRepository creates a new SQLite curfew repository
func NewCurfewRepository(pool *ConnectionPool) *CurfewRepository {
	return &CurfewRepository{pool: pool, retry: DefaultRetryConfig(), now: time.Now}
}

// ListCurfewRules returns every rule of the tenant, active or not, ordered by
// created_at then id.
func (r *CurfewRepository) ListCurfewRules(ctx context.Context, tenantID string) ([]persistence.CurfewRule, error) {
	var rules []persistence.CurfewRule
	err := withRetry(ctx, r.retry, func() error {
		var err error
		rules, err = r.queryRules(ctx, tenantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *CurfewRepository) queryRules(ctx context.Context, tenantID string) ([]persistence.CurfewRule, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, description, start_time, end_time, days_of_week,
			season, season_start, season_end, is_active, created_at, updated_at
		FROM curfew_rules
		WHERE tenant_id = ?
		ORDER BY created_at ASC, id ASC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]persistence.CurfewRule, 0)
	for rows.Next() {
		var rule persistence.CurfewRule
		var days, createdAt, updatedAt string
		var seasonStart, seasonEnd sql.NullString
		var active int

		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
			&rule.StartTime, &rule.EndTime, &days,
			&rule.Season, &seasonStart, &seasonEnd, &active,
			&createdAt, &updatedAt,
		); err != nil {
			return nil, err
		}

		rule.DaysOfWeek = decodeDays(days)
		rule.SeasonStart = nullableString(seasonStart)
		rule.SeasonEnd = nullableString(seasonEnd)
		rule.IsActive = active == 1
		if rule.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, fmt.Errorf("curfew rule %s: %w", rule.ID, err)
		}
		if rule.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
			return nil, fmt.Errorf("curfew rule %s: %w", rule.ID, err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// ListCurfewExceptions returns the tenant's exceptions ordered by date then rule.
func (r *CurfewRepository) ListCurfewExceptions(ctx context.Context, tenantID string) ([]persistence.CurfewException, error) {
	var exceptions []persistence.CurfewException
	err := withRetry(ctx, r.retry, func() error {
		var err error
		exceptions, err = r.queryExceptions(ctx, tenantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return exceptions, nil
}

func (r *CurfewRepository) queryExceptions(ctx context.Context, tenantID string) ([]persistence.CurfewException, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, tenant_id, curfew_id, date, reason, created_at
		FROM curfew_exceptions
		WHERE tenant_id = ?
		ORDER BY date ASC, curfew_id ASC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exceptions := make([]persistence.CurfewException, 0)
	for rows.Next() {
		var exception persistence.CurfewException
		var createdAt string
		if err := rows.Scan(&exception.ID, &exception.TenantID, &exception.CurfewID, &exception.Date, &exception.Reason, &createdAt); err != nil {
			return nil, err
		}
		if exception.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, fmt.Errorf("curfew exception %s: %w", exception.ID, err)
		}
		exceptions = append(exceptions, exception)
	}
	return exceptions, rows.Err()
}

// UpsertCurfewRule inserts a rule or replaces its mutable fields. A rule id
// already owned by another tenant is a constraint violation.
func (r *CurfewRepository) UpsertCurfewRule(ctx context.Context, rule persistence.CurfewRule) error {
	if rule.ID == "" || rule.TenantID == "" {
		return persistence.ErrConstraintViolation
	}

	now := r.now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	if rule.UpdatedAt.IsZero() {
		rule.UpdatedAt = now
	}

	result, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO curfew_rules (id, tenant_id, name, description, start_time, end_time, days_of_week,
			season, season_start, season_end, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			days_of_week = excluded.days_of_week,
			season = excluded.season,
			season_start = excluded.season_start,
			season_end = excluded.season_end,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
		WHERE curfew_rules.tenant_id = excluded.tenant_id
	`,
		rule.ID,
		rule.TenantID,
		rule.Name,
		rule.Description,
		rule.StartTime,
		rule.EndTime,
		encodeDays(rule.DaysOfWeek),
		rule.Season,
		stringOrNull(rule.SeasonStart),
		stringOrNull(rule.SeasonEnd),
		boolToInt(rule.IsActive),
		formatTimestamp(rule.CreatedAt),
		formatTimestamp(rule.UpdatedAt),
	)
	if err != nil {
		return mapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("curfew rule %s belongs to another tenant: %w", rule.ID, persistence.ErrConstraintViolation)
	}
	return nil
}

// AddCurfewException inserts an exception for a rule of the same tenant.
func (r *CurfewRepository) AddCurfewException(ctx context.Context, exception persistence.CurfewException) error {
	if exception.ID == "" || exception.CurfewID == "" || exception.Date == "" {
		return persistence.ErrConstraintViolation
	}
	if exception.CreatedAt.IsZero() {
		exception.CreatedAt = r.now().UTC()
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var owner string
		err := tx.QueryRowContext(ctx, `SELECT tenant_id FROM curfew_rules WHERE id = ?`, exception.CurfewID).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != exception.TenantID) {
			return fmt.Errorf("curfew %s does not exist for tenant %s: %w", exception.CurfewID, exception.TenantID, persistence.ErrForeignKeyViolation)
		}
		if err != nil {
			return mapError(err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO curfew_exceptions (id, tenant_id, curfew_id, date, reason, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			exception.ID,
			exception.TenantID,
			exception.CurfewID,
			exception.Date,
			exception.Reason,
			formatTimestamp(exception.CreatedAt),
		)
		return mapError(err)
	})
}

// encodeDays stores weekday names as a comma separated list. Names are kept
// even when unknown so the resolver reports the rule as malformed.
func encodeDays(days []string) string {
	names := make([]string, 0, len(days))
	for _, day := range days {
		names = append(names, strings.ToLower(strings.TrimSpace(day)))
	}
	return strings.Join(names, ",")
}

func decodeDays(value string) []string {
	if strings.TrimSpace(value) == "" {
		return []string{}
	}
	return strings.Split(value, ",")
}

func nullableString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}

func stringOrNull(value *string) interface{} {
	if value == nil {
		return nil
	}
	return *value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
