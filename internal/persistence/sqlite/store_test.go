package sqlite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/example/community-gate/internal/persistence"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	config := DefaultConfig(filepath.Join(t.TempDir(), "data", "curfew.db"))
	store, err := Open(context.Background(), config, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.UpsertTenant(context.Background(), persistence.Tenant{ID: "tenant-1", Name: "Maple Court", Timezone: "Asia/Tokyo"}); err != nil {
		t.Fatalf("UpsertTenant failed: %v", err)
	}
	return store
}

func stringPtr(value string) *string {
	return &value
}

func TestStore_TenantRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	tenant, err := store.GetTenant(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("GetTenant failed: %v", err)
	}
	if tenant.Name != "Maple Court" || tenant.Timezone != "Asia/Tokyo" {
		t.Errorf("unexpected tenant %+v", tenant)
	}
	if tenant.CreatedAt.IsZero() {
		t.Errorf("expected CreatedAt to be populated")
	}

	if err := store.UpsertTenant(ctx, persistence.Tenant{ID: "tenant-1", Name: "Maple Court", Timezone: "UTC"}); err != nil {
		t.Fatalf("UpsertTenant update failed: %v", err)
	}
	updated, err := store.GetTenant(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("GetTenant failed: %v", err)
	}
	if updated.Timezone != "UTC" {
		t.Errorf("expected timezone UTC, got %s", updated.Timezone)
	}
	if !updated.CreatedAt.Equal(tenant.CreatedAt) {
		t.Errorf("expected CreatedAt to be preserved")
	}

	if _, err := store.GetTenant(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_CurfewRuleRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	created := time.Date(2025, time.May, 1, 9, 0, 0, 0, time.UTC)

	rules := []persistence.CurfewRule{
		{ID: "summer-break", TenantID: "tenant-1", Name: "Summer break", StartTime: "08:00", EndTime: "17:00",
			DaysOfWeek: []string{"Monday", "friday"}, Season: "custom", SeasonStart: stringPtr("2025-06-01"), SeasonEnd: stringPtr("2025-08-31"),
			IsActive: true, CreatedAt: created.Add(time.Hour)},
		{ID: "b-night", TenantID: "tenant-1", Name: "Night", StartTime: "22:00", EndTime: "06:00",
			DaysOfWeek: []string{"friday", "saturday"}, Season: "all_year", IsActive: true, CreatedAt: created},
		{ID: "a-disabled", TenantID: "tenant-1", StartTime: "bogus", EndTime: "06:00",
			DaysOfWeek: nil, Season: "all_year", IsActive: false, CreatedAt: created},
	}
	for _, rule := range rules {
		if err := store.UpsertCurfewRule(ctx, rule); err != nil {
			t.Fatalf("UpsertCurfewRule(%s) failed: %v", rule.ID, err)
		}
	}

	listed, err := store.ListCurfewRules(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("ListCurfewRules failed: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(listed))
	}
	if listed[0].ID != "a-disabled" || listed[1].ID != "b-night" || listed[2].ID != "summer-break" {
		t.Fatalf("unexpected order: %s, %s, %s", listed[0].ID, listed[1].ID, listed[2].ID)
	}

	summer := listed[2]
	if summer.SeasonStart == nil || *summer.SeasonStart != "2025-06-01" || summer.SeasonEnd == nil || *summer.SeasonEnd != "2025-08-31" {
		t.Errorf("unexpected season dates %v %v", summer.SeasonStart, summer.SeasonEnd)
	}
	if len(summer.DaysOfWeek) != 2 || summer.DaysOfWeek[0] != "monday" || summer.DaysOfWeek[1] != "friday" {
		t.Errorf("unexpected days %v", summer.DaysOfWeek)
	}
	if !summer.IsActive || !summer.CreatedAt.Equal(created.Add(time.Hour)) {
		t.Errorf("unexpected rule %+v", summer)
	}

	disabled := listed[0]
	if disabled.IsActive || disabled.SeasonStart != nil || len(disabled.DaysOfWeek) != 0 || disabled.StartTime != "bogus" {
		t.Errorf("unexpected disabled rule %+v", disabled)
	}
}

func TestStore_UpsertCurfewRuleConstraints(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	err := store.UpsertCurfewRule(ctx, persistence.CurfewRule{ID: "r1", TenantID: "missing", StartTime: "22:00", EndTime: "06:00", Season: "all_year"})
	if !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
	}

	if err := store.UpsertTenant(ctx, persistence.Tenant{ID: "tenant-2"}); err != nil {
		t.Fatalf("UpsertTenant failed: %v", err)
	}
	if err := store.UpsertCurfewRule(ctx, persistence.CurfewRule{ID: "r1", TenantID: "tenant-1", StartTime: "22:00", EndTime: "06:00", Season: "all_year"}); err != nil {
		t.Fatalf("UpsertCurfewRule failed: %v", err)
	}
	err = store.UpsertCurfewRule(ctx, persistence.CurfewRule{ID: "r1", TenantID: "tenant-2", StartTime: "22:00", EndTime: "06:00", Season: "all_year"})
	if !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}

	if err := store.UpsertCurfewRule(ctx, persistence.CurfewRule{ID: "r1", TenantID: "tenant-1", Name: "renamed", StartTime: "21:00", EndTime: "06:00", Season: "all_year"}); err != nil {
		t.Fatalf("UpsertCurfewRule update failed: %v", err)
	}
	listed, err := store.ListCurfewRules(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("ListCurfewRules failed: %v", err)
	}
	if len(listed) != 1 || listed[0].Name != "renamed" || listed[0].StartTime != "21:00" {
		t.Fatalf("unexpected rules after update: %+v", listed)
	}
}

func TestStore_CurfewExceptions(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for _, id := range []string{"r1", "r2"} {
		if err := store.UpsertCurfewRule(ctx, persistence.CurfewRule{ID: id, TenantID: "tenant-1", StartTime: "22:00", EndTime: "06:00", Season: "all_year"}); err != nil {
			t.Fatalf("UpsertCurfewRule failed: %v", err)
		}
	}

	add := func(id, curfewID, date string) error {
		return store.AddCurfewException(ctx, persistence.CurfewException{ID: id, TenantID: "tenant-1", CurfewID: curfewID, Date: date, Reason: "festival"})
	}
	if err := add("e1", "r2", "2025-06-06"); err != nil {
		t.Fatalf("AddCurfewException failed: %v", err)
	}
	if err := add("e2", "r1", "2025-06-06"); err != nil {
		t.Fatalf("AddCurfewException failed: %v", err)
	}
	if err := add("e3", "r1", "2025-06-01"); err != nil {
		t.Fatalf("AddCurfewException failed: %v", err)
	}

	if err := add("e4", "r1", "2025-06-06"); !errors.Is(err, persistence.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate for repeated rule and date, got %v", err)
	}
	if err := add("e1", "r1", "2025-07-01"); !errors.Is(err, persistence.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate for repeated id, got %v", err)
	}
	if err := add("e5", "missing", "2025-06-06"); !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Errorf("expected ErrForeignKeyViolation, got %v", err)
	}

	exceptions, err := store.ListCurfewExceptions(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("ListCurfewExceptions failed: %v", err)
	}
	if len(exceptions) != 3 {
		t.Fatalf("expected 3 exceptions, got %d", len(exceptions))
	}
	if exceptions[0].ID != "e3" || exceptions[1].ID != "e2" || exceptions[2].ID != "e1" {
		t.Errorf("unexpected order: %s, %s, %s", exceptions[0].ID, exceptions[1].ID, exceptions[2].ID)
	}
	if exceptions[0].Reason != "festival" || exceptions[0].CreatedAt.IsZero() {
		t.Errorf("unexpected exception %+v", exceptions[0])
	}

	empty, err := store.ListCurfewExceptions(ctx, "tenant-2")
	if err != nil {
		t.Fatalf("ListCurfewExceptions failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected an empty non-nil slice, got %#v", empty)
	}
}

func TestMigrate_IsIdempotent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := Migrate(ctx, store.pool, nil); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	applied, err := AppliedMigrations(ctx, store.pool)
	if err != nil {
		t.Fatalf("AppliedMigrations failed: %v", err)
	}
	migrations, err := Migrations()
	if err != nil {
		t.Fatalf("Migrations failed: %v", err)
	}
	if len(applied) != len(migrations) {
		t.Fatalf("expected %d applied migrations, got %d", len(migrations), len(applied))
	}
	if applied[0].Version != "0001" || applied[0].Checksum != migrations[0].Checksum {
		t.Errorf("unexpected applied migration %+v", applied[0])
	}
}

func TestMigrate_DetectsChangedMigration(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	migrations, err := Migrations()
	if err != nil {
		t.Fatalf("Migrations failed: %v", err)
	}
	changed := migrations[0]
	changed.Checksum = "tampered"

	err = applyMigrations(ctx, store.pool, []Migration{changed}, nil)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_add_index.sql":     {Data: []byte("CREATE INDEX x ON t (a);")},
		"m/0001_create_tables.sql": {Data: []byte("-- tables\nCREATE TABLE t (a TEXT);\nCREATE TABLE u (b TEXT);")},
	}

	migrations, err := loadMigrations(fsys, "m")
	if err != nil {
		t.Fatalf("loadMigrations failed: %v", err)
	}
	if len(migrations) != 2 || migrations[0].Version != "0001" || migrations[1].Version != "0002" {
		t.Fatalf("unexpected migrations %+v", migrations)
	}
	if migrations[0].Description != "create tables" {
		t.Errorf("unexpected description %q", migrations[0].Description)
	}
	if statements := splitStatements(migrations[0].SQL); len(statements) != 2 {
		t.Errorf("expected 2 statements, got %d: %q", len(statements), statements)
	}

	bad := fstest.MapFS{"m/create.sql": {Data: []byte("SELECT 1;")}}
	if _, err := loadMigrations(bad, "m"); err == nil {
		t.Errorf("expected invalid file name to fail")
	}
}

func TestConfig(t *testing.T) {
	config := DefaultConfig("file:curfew.db?cache=shared")
	got := config.connectionString()
	want := "file:curfew.db?cache=shared&_pragma=busy_timeout%285000%29&_pragma=foreign_keys%281%29&_pragma=journal_mode%28WAL%29&_pragma=synchronous%28NORMAL%29"
	if got != want {
		t.Errorf("connectionString() = %q, want %q", got, want)
	}
	if path := config.filePath(); path != "curfew.db" {
		t.Errorf("filePath() = %q", path)
	}
	if path := (Config{DSN: "file::memory:?mode=memory"}).filePath(); path != "" {
		t.Errorf("expected in-memory DSN to have no path, got %q", path)
	}

	if err := (Config{}).Validate(); err == nil {
		t.Errorf("expected empty DSN to fail validation")
	}
	if err := (Config{DSN: "x.db", JournalMode: "SIDEWAYS"}).Validate(); err == nil {
		t.Errorf("expected invalid journal mode to fail validation")
	}
}
