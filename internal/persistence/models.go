package persistence

import "time"

// Tenant represents one community whose gates share a curfew configuration.
type Tenant struct {
	ID        string
	Name      string
	Timezone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CurfewRule represents a stored curfew rule. Time and day fields keep the
// representation the admin layer wrote; the curfew package validates them.
type CurfewRule struct {
	ID          string
	TenantID    string
	Name        string
	Description string
	StartTime   string
	EndTime     string
	DaysOfWeek  []string
	Season      string
	SeasonStart *string
	SeasonEnd   *string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CurfewException suspends one rule on one calendar date (YYYY-MM-DD).
type CurfewException struct {
	ID        string
	TenantID  string
	CurfewID  string
	Date      string
	Reason    string
	CreatedAt time.Time
}
