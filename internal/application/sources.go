package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/community-gate/internal/curfew"
	"github.com/example/community-gate/internal/persistence"
)

// CurfewSource supplies a tenant's raw curfew configuration.
type CurfewSource interface {
	CurfewRules(ctx context.Context, tenantID string) ([]curfew.Rule, error)
	CurfewExceptions(ctx context.Context, tenantID string) ([]curfew.Exception, error)
}

// TenantDirectory resolves the IANA zone name a tenant evaluates in. An empty
// name selects the service default. Unknown tenants return ErrNotFound.
type TenantDirectory interface {
	TenantTimezone(ctx context.Context, tenantID string) (string, error)
}

// SeasonCalendars resolves the summer and winter boundaries for a tenant.
type SeasonCalendars interface {
	CalendarFor(tenantID string) curfew.SeasonCalendar
}

// RepositorySource adapts the persistence repositories to CurfewSource and
// TenantDirectory.
type RepositorySource struct {
	tenants persistence.TenantRepository
	curfews persistence.CurfewRepository
}

// NewRepositorySource wraps the tenant and curfew repositories.
func NewRepositorySource(tenants persistence.TenantRepository, curfews persistence.CurfewRepository) *RepositorySource {
	return &RepositorySource{tenants: tenants, curfews: curfews}
}

// TenantTimezone returns the stored zone name of the tenant.
func (s *RepositorySource) TenantTimezone(ctx context.Context, tenantID string) (string, error) {
	tenant, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return "", mapRepoError(err)
	}
	return tenant.Timezone, nil
}

// CurfewRules converts the stored rules in store order.
func (s *RepositorySource) CurfewRules(ctx context.Context, tenantID string) ([]curfew.Rule, error) {
	records, err := s.curfews.ListCurfewRules(ctx, tenantID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	rules := make([]curfew.Rule, 0, len(records))
	for _, record := range records {
		rules = append(rules, curfew.Rule{
			ID:          record.ID,
			Name:        record.Name,
			Description: record.Description,
			StartTime:   record.StartTime,
			EndTime:     record.EndTime,
			DaysOfWeek:  append([]string(nil), record.DaysOfWeek...),
			Season:      record.Season,
			SeasonStart: derefString(record.SeasonStart),
			SeasonEnd:   derefString(record.SeasonEnd),
			IsActive:    record.IsActive,
		})
	}
	return rules, nil
}

// CurfewExceptions converts the stored exceptions.
func (s *RepositorySource) CurfewExceptions(ctx context.Context, tenantID string) ([]curfew.Exception, error) {
	records, err := s.curfews.ListCurfewExceptions(ctx, tenantID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	exceptions := make([]curfew.Exception, 0, len(records))
	for _, record := range records {
		exceptions = append(exceptions, curfew.Exception{
			CurfewID: record.CurfewID,
			Date:     record.Date,
			Reason:   record.Reason,
		})
	}
	return exceptions, nil
}

func mapRepoError(err error) error {
	if errors.Is(err, persistence.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
