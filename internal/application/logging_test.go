package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/example/community-gate/internal/logging"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestServiceLoggerPrefersContextLogger(t *testing.T) {
	t.Parallel()

	var base, scoped bytes.Buffer
	baseLogger := slog.New(slog.NewJSONHandler(&base, nil))
	ctx := logging.ContextWithLogger(context.Background(), slog.New(slog.NewJSONHandler(&scoped, nil)))

	serviceLogger(ctx, baseLogger, "GateService", "Evaluate", "tenant_id", "tenant-1").Info("hello")

	if base.Len() != 0 {
		t.Fatalf("expected base logger to stay silent, got %s", base.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(scoped.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log entry: %v", err)
	}
	if entry["service"] != "GateService" || entry["operation"] != "Evaluate" || entry["tenant_id"] != "tenant-1" {
		t.Fatalf("unexpected log attributes: %v", entry)
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	tests := map[string]error{
		"":                     nil,
		"not_found":            fmt.Errorf("wrapped: %w", ErrNotFound),
		"tenant_misconfigured": ErrTenantMisconfigured,
		"snapshot_unavailable": fmt.Errorf("%w: %w", ErrSnapshotUnavailable, errors.New("disk")),
		"canceled":             context.Canceled,
		"validation":           &ValidationError{},
		"unexpected":           errors.New("boom"),
	}
	for want, err := range tests {
		if got := ErrorKind(err); got != want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", err, got, want)
		}
	}
}
