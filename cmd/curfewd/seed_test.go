package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/community-gate/internal/curfew"
	"github.com/example/community-gate/internal/persistence/memory"
)

func TestApplySeed(t *testing.T) {
	t.Parallel()

	seed, err := loadSeed(filepath.Join("testdata", "seed.yaml"))
	require.NoError(t, err)
	require.Len(t, seed.Tenants, 1)

	ctx := context.Background()
	store := memory.New()
	require.NoError(t, applySeed(ctx, store, seed))
	require.NoError(t, applySeed(ctx, store, seed), "seeding twice is a no-op")

	tenant, err := store.GetTenant(ctx, "maple-court")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", tenant.Timezone)

	rules, err := store.ListCurfewRules(ctx, "maple-court")
	require.NoError(t, err)
	require.Len(t, rules, 4)

	byID := make(map[string]bool, len(rules))
	for _, rule := range rules {
		byID[rule.ID] = rule.IsActive
		if rule.ID == "weekend-nights" {
			assert.Equal(t, string(curfew.SeasonAllYear), rule.Season)
			assert.Nil(t, rule.SeasonStart)
		}
	}
	assert.Equal(t, map[string]bool{"weekend-nights": true, "summer-evenings": true, "broken": true, "retired": false}, byID)

	exceptions, err := store.ListCurfewExceptions(ctx, "maple-court")
	require.NoError(t, err)
	require.Len(t, exceptions, 1)
	assert.Equal(t, "2025-06-13", exceptions[0].Date)
}

func TestParseSeedRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := parseSeed([]byte("tenants:\n  - id: a\n    timezone: UTC\n    curfews: []\n"))
	assert.Error(t, err)

	empty, err := parseSeed(nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Tenants)

	_, err = loadSeed(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestApplySeedReportsMissingParents(t *testing.T) {
	t.Parallel()

	seed := seedFile{Tenants: []seedTenant{{
		ID:         "lonely",
		Timezone:   "UTC",
		Exceptions: []seedException{{ID: "orphan", CurfewID: "missing-rule", Date: "2025-06-06"}},
	}}}
	assert.Error(t, applySeed(context.Background(), memory.New(), seed))
}
