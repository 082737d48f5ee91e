package application

import (
	"time"

	"github.com/example/community-gate/internal/curfew"
)

// EvaluateParams identifies one gate entry attempt.
type EvaluateParams struct {
	TenantID  string
	Timestamp time.Time
}

// EvaluationResult is the curfew decision for one gate entry attempt.
type EvaluationResult struct {
	EvaluationID string
	TenantID     string
	// EvaluatedAt is the gate event instant in UTC.
	EvaluatedAt time.Time
	// LocalTime is the same instant in the tenant's zone.
	LocalTime       time.Time
	Timezone        string
	Restricted      bool
	MatchedRules    []string
	Matches         []curfew.Match
	Skipped         []curfew.SkippedRule
	SnapshotVersion string
	// Stale is set when the snapshot was served past its TTL because a reload failed.
	Stale bool
}
