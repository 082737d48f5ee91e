package persistence

import "context"

// TenantRepository exposes tenant settings needed by gate evaluation.
type TenantRepository interface {
	GetTenant(ctx context.Context, id string) (Tenant, error)
	UpsertTenant(ctx context.Context, tenant Tenant) error
}

// CurfewRepository exposes the curfew rule and exception snapshot of a tenant.
// The write methods exist for seeding and tests; rule administration lives in
// the dashboard.
type CurfewRepository interface {
	ListCurfewRules(ctx context.Context, tenantID string) ([]CurfewRule, error)
	ListCurfewExceptions(ctx context.Context, tenantID string) ([]CurfewException, error)
	UpsertCurfewRule(ctx context.Context, rule CurfewRule) error
	AddCurfewException(ctx context.Context, exception CurfewException) error
}
