package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/example/community-gate/internal/curfew"
)

// GateServiceConfig tunes snapshot freshness and the default tenant zone.
type GateServiceConfig struct {
	// DefaultLocation applies to tenants without a stored timezone.
	DefaultLocation *time.Location
	// SnapshotTTL is how long a loaded snapshot is used without reloading.
	SnapshotTTL time.Duration
	// MaxStaleness bounds how old a snapshot may be when a reload fails. Zero
	// means the TTL, so stale snapshots are never served.
	MaxStaleness time.Duration
	// CacheSize bounds the number of tenants kept in memory.
	CacheSize int
}

// GateServiceDeps are the collaborators of a GateService. Source and Tenants
// are required.
type GateServiceDeps struct {
	Source      CurfewSource
	Tenants     TenantDirectory
	Calendars   SeasonCalendars
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// GateService answers whether a gate entry falls under an active curfew. It
// keeps one compiled snapshot per tenant and never blocks evaluations on a
// refresh that another caller already started.
type GateService struct {
	source      CurfewSource
	tenants     TenantDirectory
	calendars   SeasonCalendars
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger

	location     *time.Location
	ttl          time.Duration
	maxStaleness time.Duration

	cache *snapshotCache
	loads singleflight.Group
}

// NewGateService validates the configuration and constructs the service.
func NewGateService(deps GateServiceDeps, config GateServiceConfig) (*GateService, error) {
	if deps.Source == nil || deps.Tenants == nil {
		return nil, fmt.Errorf("gate service requires a curfew source and a tenant directory")
	}
	if config.SnapshotTTL <= 0 {
		config.SnapshotTTL = time.Minute
	}
	if config.MaxStaleness == 0 {
		config.MaxStaleness = config.SnapshotTTL
	}
	if config.MaxStaleness < config.SnapshotTTL {
		return nil, fmt.Errorf("max staleness %s must not be shorter than snapshot ttl %s", config.MaxStaleness, config.SnapshotTTL)
	}
	if config.DefaultLocation == nil {
		config.DefaultLocation = time.UTC
	}

	cache, err := newSnapshotCache(config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create snapshot cache: %w", err)
	}

	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &GateService{
		source:       deps.Source,
		tenants:      deps.Tenants,
		calendars:    deps.Calendars,
		idGenerator:  deps.IDGenerator,
		now:          deps.Now,
		logger:       defaultLogger(deps.Logger),
		location:     config.DefaultLocation,
		ttl:          config.SnapshotTTL,
		maxStaleness: config.MaxStaleness,
		cache:        cache,
	}, nil
}

func (s *GateService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "GateService", operation, attrs...)
}

// Evaluate converts the gate event into the tenant's local time and resolves
// it against the tenant's current curfew snapshot.
func (s *GateService) Evaluate(ctx context.Context, params EvaluateParams) (result EvaluationResult, err error) {
	if s == nil {
		err = fmt.Errorf("GateService is nil")
		return
	}

	started := s.now()
	logger := s.loggerWith(ctx, "Evaluate", "tenant_id", params.TenantID)
	defer func() {
		evaluationDuration.Observe(s.now().Sub(started).Seconds())
		if err != nil {
			evaluationsTotal.WithLabelValues("error").Inc()
			logger.ErrorContext(ctx, "gate evaluation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		outcome := "clear"
		if result.Restricted {
			outcome = "restricted"
		}
		evaluationsTotal.WithLabelValues(outcome).Inc()
		logger.DebugContext(ctx, "gate evaluation completed",
			"evaluation_id", result.EvaluationID,
			"restricted", result.Restricted,
			"matched_rules", result.MatchedRules,
			"snapshot_version", result.SnapshotVersion,
		)
	}()

	vErr := validateEvaluateParams(params)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	tenantID := strings.TrimSpace(params.TenantID)

	entry, stale, err := s.snapshotFor(ctx, tenantID)
	if err != nil {
		return
	}

	local := params.Timestamp.In(entry.location)
	decision := curfew.NewResolver(logger.With("snapshot_version", entry.version)).Evaluate(local, entry.snapshot)
	for _, skipped := range decision.Skipped {
		skippedRulesTotal.WithLabelValues(skipped.Reason).Inc()
	}

	result = EvaluationResult{
		EvaluationID:    s.idGenerator(),
		TenantID:        tenantID,
		EvaluatedAt:     params.Timestamp.UTC(),
		LocalTime:       local,
		Timezone:        entry.zone,
		Restricted:      decision.Restricted,
		MatchedRules:    decision.MatchedRules,
		Matches:         decision.Matches,
		Skipped:         decision.Skipped,
		SnapshotVersion: entry.version,
		Stale:           stale,
	}
	return
}

func validateEvaluateParams(params EvaluateParams) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(params.TenantID) == "" {
		vErr.add("tenant_id", "tenant_id is required")
	}
	if params.Timestamp.IsZero() {
		vErr.add("timestamp", "timestamp is required")
	}
	return vErr
}

// snapshotFor returns the cached snapshot while it is within TTL, reloading it
// otherwise. A failed reload falls back to the cached snapshot while it is
// within MaxStaleness.
func (s *GateService) snapshotFor(ctx context.Context, tenantID string) (*tenantSnapshot, bool, error) {
	cached, ok := s.cache.Get(tenantID)
	age := time.Duration(0)
	if ok {
		age = s.now().Sub(cached.loadedAt)
		if age < s.ttl {
			return cached, false, nil
		}
	}

	fresh, err := s.load(ctx, tenantID)
	if err == nil {
		return fresh, false, nil
	}
	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}

	if errors.Is(err, ErrNotFound) {
		if ok {
			s.cache.Invalidate(tenantID)
			cachedTenants.Set(float64(s.cache.Len()))
		}
		return nil, false, err
	}

	if ok && age < s.maxStaleness {
		snapshotLoadsTotal.WithLabelValues("stale").Inc()
		s.loggerWith(ctx, "Evaluate", "tenant_id", tenantID).WarnContext(ctx, "serving stale curfew snapshot",
			"error", err,
			"error_kind", ErrorKind(err),
			"snapshot_version", cached.version,
			"age", age.String(),
		)
		return cached, true, nil
	}

	if errors.Is(err, ErrTenantMisconfigured) {
		return nil, false, err
	}
	return nil, false, fmt.Errorf("%w: %w", ErrSnapshotUnavailable, err)
}

// load builds a new snapshot for the tenant. Concurrent loads of the same
// tenant generation share one call. The shared call runs detached from the
// caller's cancellation so one abandoned request cannot fail the others; an
// abandoned caller releases its claim on the generation once the call is done.
func (s *GateService) load(ctx context.Context, tenantID string) (*tenantSnapshot, error) {
	generation := s.cache.acquire(tenantID)
	results := s.loads.DoChan(tenantID+"@"+generation, func() (any, error) {
		return s.build(context.WithoutCancel(ctx), tenantID, generation)
	})

	select {
	case <-ctx.Done():
		go func() {
			<-results
			s.cache.release(tenantID)
		}()
		return nil, ctx.Err()
	case res := <-results:
		s.cache.release(tenantID)
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*tenantSnapshot), nil
	}
}

func (s *GateService) build(ctx context.Context, tenantID, generation string) (entry *tenantSnapshot, err error) {
	logger := s.loggerWith(ctx, "LoadSnapshot", "tenant_id", tenantID)
	defer func() {
		if err != nil {
			snapshotLoadsTotal.WithLabelValues("failure").Inc()
			logger.WarnContext(ctx, "curfew snapshot load failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		snapshotLoadsTotal.WithLabelValues("success").Inc()
	}()

	zone, err := s.tenants.TenantTimezone(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("resolve tenant timezone: %w", err)
	}
	location := s.location
	zone = strings.TrimSpace(zone)
	if zone == "" {
		zone = location.String()
	} else if location, err = time.LoadLocation(zone); err != nil {
		return nil, fmt.Errorf("%w: tenant %s timezone %q: %v", ErrTenantMisconfigured, tenantID, zone, err)
	}

	rules, err := s.source.CurfewRules(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load curfew rules: %w", err)
	}
	exceptions, err := s.source.CurfewExceptions(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load curfew exceptions: %w", err)
	}

	var calendar curfew.SeasonCalendar
	if s.calendars != nil {
		calendar = s.calendars.CalendarFor(tenantID)
	}

	entry = &tenantSnapshot{
		tenantID: tenantID,
		zone:     zone,
		location: location,
		snapshot: curfew.NewSnapshot(rules, exceptions, calendar),
		version:  snapshotVersion(zone, rules, exceptions, calendar),
		loadedAt: s.now(),
	}

	logger = logger.With("snapshot_version", entry.version)
	for _, ruleID := range entry.snapshot.UnconfiguredSeasons() {
		logger.WarnContext(ctx, "curfew rule uses an unconfigured season and never applies", "rule_id", ruleID)
	}
	for _, skipped := range entry.snapshot.Skipped() {
		logger.WarnContext(ctx, "curfew rule skipped",
			"rule_id", skipped.RuleID,
			"reason", skipped.Reason,
			"error", skipped.Err,
		)
	}
	for _, rejected := range entry.snapshot.Rejected() {
		logger.WarnContext(ctx, "curfew exception ignored",
			"rule_id", rejected.CurfewID,
			"date", rejected.Date,
			"reason", rejected.Reason,
		)
	}

	if !s.cache.StoreIfCurrent(entry, generation) {
		logger.DebugContext(ctx, "curfew snapshot invalidated while loading; not cached")
	}
	cachedTenants.Set(float64(s.cache.Len()))

	logger.InfoContext(ctx, "curfew snapshot loaded",
		"zone", zone,
		"rules", entry.snapshot.RuleCount(),
		"skipped_rules", len(entry.snapshot.Skipped()),
		"exceptions", entry.snapshot.ExceptionCount(),
	)
	return entry, nil
}

// Invalidate drops the tenant's snapshot so the next evaluation reloads it.
func (s *GateService) Invalidate(ctx context.Context, tenantID string) {
	s.cache.Invalidate(tenantID)
	cachedTenants.Set(float64(s.cache.Len()))
	s.loggerWith(ctx, "Invalidate", "tenant_id", tenantID).InfoContext(ctx, "curfew snapshot invalidated")
}

// InvalidateAll drops every cached snapshot.
func (s *GateService) InvalidateAll(ctx context.Context) {
	s.cache.InvalidateAll()
	cachedTenants.Set(0)
	s.loggerWith(ctx, "InvalidateAll").InfoContext(ctx, "all curfew snapshots invalidated")
}

// Refresh reloads the tenant's snapshot regardless of its age. The previous
// snapshot stays in place when the reload fails.
func (s *GateService) Refresh(ctx context.Context, tenantID string) error {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		vErr := &ValidationError{}
		vErr.add("tenant_id", "tenant_id is required")
		return vErr
	}
	_, err := s.load(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		s.cache.Invalidate(tenantID)
		cachedTenants.Set(float64(s.cache.Len()))
	}
	return err
}

// RunRefresher reloads every cached tenant each interval until ctx is done.
// A non-positive interval disables refreshing.
func (s *GateService) RunRefresher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	logger := s.loggerWith(ctx, "RunRefresher", "interval", interval.String())
	logger.InfoContext(ctx, "curfew snapshot refresher started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "curfew snapshot refresher stopped")
			return
		case <-ticker.C:
			s.refreshCached(ctx, logger)
		}
	}
}

func (s *GateService) refreshCached(ctx context.Context, logger *slog.Logger) {
	for _, tenantID := range s.cache.Tenants() {
		if ctx.Err() != nil {
			return
		}
		if err := s.Refresh(ctx, tenantID); err != nil && ctx.Err() == nil {
			logger.WarnContext(ctx, "curfew snapshot refresh failed", "tenant_id", tenantID, "error", err, "error_kind", ErrorKind(err))
		}
	}
}

// CachedTenants reports how many tenant snapshots are in memory.
func (s *GateService) CachedTenants() int {
	return s.cache.Len()
}
