package testfixtures

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
	// Fixture tenants use IANA zones; embed them so tests do not depend on the host.
	_ "time/tzdata"

	"github.com/example/community-gate/internal/curfew"
	"github.com/example/community-gate/internal/persistence"
)

var (
	tenantCounter    uint64
	ruleCounter      uint64
	exceptionCounter uint64
)

// referenceTime is Friday 2025-06-06 23:00 in Asia/Tokyo.
var referenceTime = time.Date(2025, time.June, 6, 14, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Tenant fixtures -----------------------------

// TenantFixture represents a deterministic tenant record.
type TenantFixture struct {
	ID       string
	Name     string
	Timezone string
}

// NewTenantFixture returns a tenant in Asia/Tokyo unless overridden.
func NewTenantFixture(opts ...func(*TenantFixture)) TenantFixture {
	idx := atomic.AddUint64(&tenantCounter, 1)
	fixture := TenantFixture{
		ID:       fmt.Sprintf("tenant-%03d", idx),
		Name:     fmt.Sprintf("Community %03d", idx),
		Timezone: "Asia/Tokyo",
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// Persistence converts the fixture into a stored tenant.
func (f TenantFixture) Persistence() persistence.Tenant {
	return persistence.Tenant{ID: f.ID, Name: f.Name, Timezone: f.Timezone}
}

// ------------------------------ Rule fixtures ------------------------------

// RuleFixture represents a deterministic curfew rule. The default is an
// active all-year Friday night rule from 22:00 to 06:00.
type RuleFixture struct {
	ID          string
	Name        string
	StartTime   string
	EndTime     string
	Days        []string
	Season      string
	SeasonStart string
	SeasonEnd   string
	Active      bool
	CreatedAt   time.Time
}

// RuleOption configures the generated rule fixture.
type RuleOption func(*RuleFixture)

// NewRuleFixture returns a deterministic rule fixture with optional overrides.
func NewRuleFixture(opts ...RuleOption) RuleFixture {
	idx := atomic.AddUint64(&ruleCounter, 1)
	fixture := RuleFixture{
		ID:        fmt.Sprintf("curfew-%03d", idx),
		Name:      fmt.Sprintf("Curfew %03d", idx),
		StartTime: "22:00",
		EndTime:   "06:00",
		Days:      []string{"friday"},
		Season:    string(curfew.SeasonAllYear),
		Active:    true,
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Second),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRuleID overrides the generated rule ID.
func WithRuleID(id string) RuleOption {
	return func(f *RuleFixture) {
		f.ID = id
	}
}

// WithWindow overrides the daily window.
func WithWindow(start, end string) RuleOption {
	return func(f *RuleFixture) {
		f.StartTime = start
		f.EndTime = end
	}
}

// WithDays overrides the weekday names.
func WithDays(days ...string) RuleOption {
	return func(f *RuleFixture) {
		f.Days = days
	}
}

// WithSeason scopes the rule to a season alias.
func WithSeason(season curfew.Season) RuleOption {
	return func(f *RuleFixture) {
		f.Season = string(season)
	}
}

// WithCustomSeason scopes the rule to an inclusive date range.
func WithCustomSeason(start, end string) RuleOption {
	return func(f *RuleFixture) {
		f.Season = string(curfew.SeasonCustom)
		f.SeasonStart = start
		f.SeasonEnd = end
	}
}

// Inactive marks the rule as disabled.
func Inactive() RuleOption {
	return func(f *RuleFixture) {
		f.Active = false
	}
}

// Curfew converts the fixture into the resolver's input form.
func (f RuleFixture) Curfew() curfew.Rule {
	return curfew.Rule{
		ID:          f.ID,
		Name:        f.Name,
		StartTime:   f.StartTime,
		EndTime:     f.EndTime,
		DaysOfWeek:  append([]string(nil), f.Days...),
		Season:      f.Season,
		SeasonStart: f.SeasonStart,
		SeasonEnd:   f.SeasonEnd,
		IsActive:    f.Active,
	}
}

// Persistence converts the fixture into a stored rule owned by tenantID.
func (f RuleFixture) Persistence(tenantID string) persistence.CurfewRule {
	rule := persistence.CurfewRule{
		ID:         f.ID,
		TenantID:   tenantID,
		Name:       f.Name,
		StartTime:  f.StartTime,
		EndTime:    f.EndTime,
		DaysOfWeek: append([]string(nil), f.Days...),
		Season:     f.Season,
		IsActive:   f.Active,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.CreatedAt,
	}
	if f.SeasonStart != "" {
		start := f.SeasonStart
		rule.SeasonStart = &start
	}
	if f.SeasonEnd != "" {
		end := f.SeasonEnd
		rule.SeasonEnd = &end
	}
	return rule
}

// ---------------------------- Exception fixtures ----------------------------

// NewException returns a stored exception suspending ruleID on date.
func NewException(tenantID, ruleID, date string) persistence.CurfewException {
	idx := atomic.AddUint64(&exceptionCounter, 1)
	return persistence.CurfewException{
		ID:       fmt.Sprintf("exception-%03d", idx),
		TenantID: tenantID,
		CurfewID: ruleID,
		Date:     date,
		Reason:   "fixture",
	}
}

// ---------------------------------- Seeding ----------------------------------

// Store is the write surface shared by the memory and SQLite stores.
type Store interface {
	persistence.TenantRepository
	persistence.CurfewRepository
}

// Seed writes the tenant, its rules and exceptions into store.
func Seed(ctx context.Context, store Store, tenant TenantFixture, rules []RuleFixture, exceptions ...persistence.CurfewException) error {
	if err := store.UpsertTenant(ctx, tenant.Persistence()); err != nil {
		return fmt.Errorf("seed tenant %s: %w", tenant.ID, err)
	}
	for _, rule := range rules {
		if err := store.UpsertCurfewRule(ctx, rule.Persistence(tenant.ID)); err != nil {
			return fmt.Errorf("seed rule %s: %w", rule.ID, err)
		}
	}
	for _, exception := range exceptions {
		if err := store.AddCurfewException(ctx, exception); err != nil {
			return fmt.Errorf("seed exception %s: %w", exception.ID, err)
		}
	}
	return nil
}
