// Package memory provides an in-process implementation of the persistence
// repositories. It backs tests and the memory store mode of curfewd.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/community-gate/internal/persistence"
)

// Store keeps tenants, curfew rules and exceptions in maps guarded by a single lock.
type Store struct {
	mu         sync.RWMutex
	tenants    map[string]persistence.Tenant
	rules      map[string]persistence.CurfewRule
	exceptions map[string]persistence.CurfewException
	now        func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		tenants:    make(map[string]persistence.Tenant),
		rules:      make(map[string]persistence.CurfewRule),
		exceptions: make(map[string]persistence.CurfewException),
		now:        time.Now,
	}
}

// Close releases resources held by the store. No-op for the in-memory implementation.
func (s *Store) Close() error {
	return nil
}

// Ping always succeeds for the in-memory implementation.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// --- TenantRepository implementation ---

// GetTenant retrieves a tenant by ID.
func (s *Store) GetTenant(ctx context.Context, id string) (persistence.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenant, ok := s.tenants[id]
	if !ok {
		return persistence.Tenant{}, persistence.ErrNotFound
	}
	return tenant, nil
}

// UpsertTenant creates or replaces a tenant, keeping the original CreatedAt.
func (s *Store) UpsertTenant(ctx context.Context, tenant persistence.Tenant) error {
	if tenant.ID == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stamp(&tenant.CreatedAt, &tenant.UpdatedAt, s.now())
	if existing, ok := s.tenants[tenant.ID]; ok {
		tenant.CreatedAt = existing.CreatedAt
	}
	s.tenants[tenant.ID] = tenant
	return nil
}

// --- CurfewRepository implementation ---

// ListCurfewRules returns the tenant's rules ordered by CreatedAt then ID.
func (s *Store) ListCurfewRules(ctx context.Context, tenantID string) ([]persistence.CurfewRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]persistence.CurfewRule, 0)
	for _, rule := range s.rules {
		if rule.TenantID != tenantID {
			continue
		}
		rules = append(rules, cloneRule(rule))
	}

	sort.Slice(rules, func(i, j int) bool {
		if rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].ID < rules[j].ID
		}
		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})
	return rules, nil
}

// ListCurfewExceptions returns the tenant's exceptions ordered by date then rule.
func (s *Store) ListCurfewExceptions(ctx context.Context, tenantID string) ([]persistence.CurfewException, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exceptions := make([]persistence.CurfewException, 0)
	for _, exception := range s.exceptions {
		if exception.TenantID != tenantID {
			continue
		}
		exceptions = append(exceptions, exception)
	}

	sort.Slice(exceptions, func(i, j int) bool {
		if exceptions[i].Date == exceptions[j].Date {
			return exceptions[i].CurfewID < exceptions[j].CurfewID
		}
		return exceptions[i].Date < exceptions[j].Date
	})
	return exceptions, nil
}

// UpsertCurfewRule creates or replaces a rule owned by an existing tenant.
func (s *Store) UpsertCurfewRule(ctx context.Context, rule persistence.CurfewRule) error {
	if rule.ID == "" || rule.TenantID == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[rule.TenantID]; !ok {
		return fmt.Errorf("memory: tenant %s does not exist: %w", rule.TenantID, persistence.ErrForeignKeyViolation)
	}
	if existing, ok := s.rules[rule.ID]; ok {
		if existing.TenantID != rule.TenantID {
			return fmt.Errorf("memory: rule %s belongs to another tenant: %w", rule.ID, persistence.ErrConstraintViolation)
		}
		rule.CreatedAt = existing.CreatedAt
	}
	stamp(&rule.CreatedAt, &rule.UpdatedAt, s.now())
	s.rules[rule.ID] = cloneRule(rule)
	return nil
}

// AddCurfewException stores an exception. A second exception for the same rule
// and date is rejected.
func (s *Store) AddCurfewException(ctx context.Context, exception persistence.CurfewException) error {
	if exception.ID == "" || exception.CurfewID == "" || exception.Date == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[exception.CurfewID]
	if !ok || rule.TenantID != exception.TenantID {
		return fmt.Errorf("memory: curfew %s does not exist: %w", exception.CurfewID, persistence.ErrForeignKeyViolation)
	}
	if _, ok := s.exceptions[exception.ID]; ok {
		return fmt.Errorf("memory: exception %s already exists: %w", exception.ID, persistence.ErrDuplicate)
	}
	for _, existing := range s.exceptions {
		if existing.CurfewID == exception.CurfewID && existing.Date == exception.Date {
			return fmt.Errorf("memory: curfew %s already excepted on %s: %w", exception.CurfewID, exception.Date, persistence.ErrDuplicate)
		}
	}
	if exception.CreatedAt.IsZero() {
		exception.CreatedAt = s.now().UTC()
	}
	s.exceptions[exception.ID] = exception
	return nil
}

// stamp fills zero timestamps with now, matching the SQLite store.
func stamp(createdAt, updatedAt *time.Time, now time.Time) {
	if createdAt.IsZero() {
		*createdAt = now.UTC()
	}
	if updatedAt.IsZero() {
		*updatedAt = now.UTC()
	}
}

func cloneRule(rule persistence.CurfewRule) persistence.CurfewRule {
	days := make([]string, len(rule.DaysOfWeek))
	copy(days, rule.DaysOfWeek)
	rule.DaysOfWeek = days
	rule.SeasonStart = cloneString(rule.SeasonStart)
	rule.SeasonEnd = cloneString(rule.SeasonEnd)
	return rule
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
