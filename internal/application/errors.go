package application

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when the requested tenant does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrSnapshotUnavailable is returned when no curfew snapshot could be loaded
	// and no cached one is fresh enough to serve. Callers may retry.
	ErrSnapshotUnavailable = errors.New("application: curfew snapshot unavailable")
	// ErrTenantMisconfigured is returned when tenant settings cannot be used for
	// evaluation, such as an unknown timezone name. Retrying does not help.
	ErrTenantMisconfigured = errors.New("application: tenant misconfigured")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// IsRetryable reports whether err describes a transient condition.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSnapshotUnavailable)
}
