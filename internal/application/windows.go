package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/community-gate/internal/recurrence"
)

// WindowsParams selects the curfew windows to list for a tenant.
type WindowsParams struct {
	TenantID string
	From     time.Time
	To       time.Time
}

// CurfewWindows lists the restricted intervals of one tenant in a range.
type CurfewWindows struct {
	TenantID        string
	Timezone        string
	From            time.Time
	To              time.Time
	Windows         []recurrence.Occurrence
	SnapshotVersion string
	Stale           bool
}

// UpcomingWindows expands the tenant's current snapshot into the intervals
// during which gate entry is restricted. It reads the same cached snapshot as
// Evaluate, so both always agree.
func (s *GateService) UpcomingWindows(ctx context.Context, params WindowsParams) (CurfewWindows, error) {
	if s == nil {
		return CurfewWindows{}, fmt.Errorf("GateService is nil")
	}
	logger := s.loggerWith(ctx, "UpcomingWindows", "tenant_id", params.TenantID)

	vErr := &ValidationError{}
	if strings.TrimSpace(params.TenantID) == "" {
		vErr.add("tenant_id", "tenant_id is required")
	}
	if params.From.IsZero() {
		vErr.add("from", "from is required")
	}
	if params.To.IsZero() {
		vErr.add("to", "to is required")
	}
	if vErr.HasErrors() {
		return CurfewWindows{}, vErr
	}
	tenantID := strings.TrimSpace(params.TenantID)

	entry, stale, err := s.snapshotFor(ctx, tenantID)
	if err != nil {
		logger.ErrorContext(ctx, "curfew window listing failed", "error", err, "error_kind", ErrorKind(err))
		return CurfewWindows{}, err
	}

	occurrences, err := recurrence.NewEngine(entry.location).Occurrences(entry.snapshot, params.From, params.To)
	if err != nil {
		if errors.Is(err, recurrence.ErrInvalidWindow) {
			vErr.add("to", "to must be after from and within 62 days")
			return CurfewWindows{}, vErr
		}
		return CurfewWindows{}, err
	}

	return CurfewWindows{
		TenantID:        tenantID,
		Timezone:        entry.zone,
		From:            params.From.In(entry.location),
		To:              params.To.In(entry.location),
		Windows:         occurrences,
		SnapshotVersion: entry.version,
		Stale:           stale,
	}, nil
}
