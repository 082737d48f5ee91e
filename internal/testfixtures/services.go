package testfixtures

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/community-gate/internal/application"
	"github.com/example/community-gate/internal/curfew"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Calendar    curfew.SeasonCalendar
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator(""),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(factory)
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithCalendar sets the season calendar every tenant receives.
func WithCalendar(calendar curfew.SeasonCalendar) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Calendar = calendar
	}
}

// WithLogger overrides the discarding logger.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

type fixedCalendars curfew.SeasonCalendar

func (c fixedCalendars) CalendarFor(string) curfew.SeasonCalendar {
	return curfew.SeasonCalendar(c)
}

// NewGateService builds a gate service reading from store with a one minute
// TTL and fifteen minutes of tolerated staleness.
func (f *ServiceFactory) NewGateService(tb testing.TB, store Store) *application.GateService {
	tb.Helper()

	source := application.NewRepositorySource(store, store)
	service, err := application.NewGateService(application.GateServiceDeps{
		Source:      source,
		Tenants:     source,
		Calendars:   fixedCalendars(f.Calendar),
		IDGenerator: f.IDGenerator.NextFunc(),
		Now:         f.Clock.NowFunc(),
		Logger:      f.Logger,
	}, application.GateServiceConfig{
		DefaultLocation: time.UTC,
		SnapshotTTL:     time.Minute,
		MaxStaleness:    15 * time.Minute,
		CacheSize:       16,
	})
	if err != nil {
		tb.Fatalf("failed to build gate service: %v", err)
	}
	return service
}
