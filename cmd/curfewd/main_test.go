package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryEnvironment(t *testing.T) {
	t.Helper()
	t.Setenv("CURFEW_STORE", "memory")
	t.Setenv("CURFEW_LOG_LEVEL", "warn")
	t.Setenv("CURFEW_SEASON_FILE", filepath.Join("testdata", "seasons.yaml"))
	t.Setenv("CURFEW_REDIS_ADDR", "")
}

func runCheckCommand(t *testing.T, at string) checkOutput {
	t.Helper()

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"--env-file", "",
		"--seed", filepath.Join("testdata", "seed.yaml"),
		"--check-tenant", "maple-court",
		"--check-at", at,
	}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	var output checkOutput
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &output), stdout.String())
	return output
}

func TestRunCheckMode(t *testing.T) {
	memoryEnvironment(t)

	t.Run("friday night in tokyo is restricted", func(t *testing.T) {
		// 2025-06-06 14:00Z is Friday 23:00 in Tokyo.
		output := runCheckCommand(t, "2025-06-06T14:00:00Z")
		assert.True(t, output.Restricted)
		assert.ElementsMatch(t, []string{"weekend-nights", "summer-evenings"}, output.MatchedRules)
		assert.Equal(t, "2025-06-06T23:00:00+09:00", output.LocalTime)
		assert.Equal(t, []checkSkipped{{RuleID: "broken", Reason: "invalid_start_time"}}, output.SkippedRules)
		assert.NotEmpty(t, output.SnapshotVersion)
		assert.NotEmpty(t, output.EvaluationID)
	})

	t.Run("an exception suspends the whole logical night", func(t *testing.T) {
		// 2025-06-13 20:30Z is Saturday 05:30 in Tokyo, still the Friday 13th night.
		output := runCheckCommand(t, "2025-06-13T20:30:00Z")
		assert.False(t, output.Restricted)
		assert.Empty(t, output.MatchedRules)
	})

	t.Run("unknown tenants fail", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		err := run(context.Background(), []string{"--env-file", "", "--check-tenant", "nobody", "--check-at", "2025-06-06T14:00:00Z"}, &stdout, &stderr)
		assert.Error(t, err)
		assert.Empty(t, stdout.String())
	})
}

func TestParseFlags(t *testing.T) {
	var stderr bytes.Buffer

	opts, err := parseFlags([]string{"--check-tenant", "t1", "--check-at", "2025-06-06T14:00:00Z", "--seed", "seed.yaml"}, &stderr)
	require.NoError(t, err)
	assert.Equal(t, options{envFile: ".env", checkTenant: "t1", checkAt: "2025-06-06T14:00:00Z", seedFile: "seed.yaml"}, opts)

	_, err = parseFlags([]string{"--check-at", "2025-06-06T14:00:00Z"}, &stderr)
	assert.Error(t, err)

	_, err = parseFlags([]string{"extra"}, &stderr)
	assert.Error(t, err)

	_, err = parseFlags([]string{"--help"}, &stderr)
	assert.True(t, errors.Is(err, pflag.ErrHelp))
}

func TestParseCheckTime(t *testing.T) {
	fixed := time.Date(2025, time.June, 6, 14, 0, 0, 0, time.UTC)
	now := func() time.Time { return fixed }

	got, err := parseCheckTime("", now)
	require.NoError(t, err)
	assert.Equal(t, fixed, got)

	got, err = parseCheckTime("2025-06-06T23:00:00+09:00", now)
	require.NoError(t, err)
	assert.True(t, got.Equal(fixed))

	_, err = parseCheckTime("tonight", now)
	assert.Error(t, err)
}

func TestRunRejectsInvalidConfiguration(t *testing.T) {
	t.Setenv("CURFEW_STORE", "postgres")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--env-file", "", "--check-tenant", "maple-court"}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CURFEW_STORE")
}
