package curfew

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTimeOfDay indicates a clock value is not a 24-hour HH:MM or HH:MM:SS time.
	ErrInvalidTimeOfDay = errors.New("curfew: invalid time of day")
	// ErrInvalidDate indicates a calendar date is not formatted as YYYY-MM-DD.
	ErrInvalidDate = errors.New("curfew: invalid date")
	// ErrInvalidWeekday indicates an unknown weekday name.
	ErrInvalidWeekday = errors.New("curfew: invalid weekday")
	// ErrInvalidSeason indicates an unknown season label.
	ErrInvalidSeason = errors.New("curfew: invalid season")
	// ErrInvalidMonthDay indicates a season boundary is not a valid MM-DD pair.
	ErrInvalidMonthDay = errors.New("curfew: invalid month-day")
)

// Reasons attached to skipped rules and rejected exceptions. They are stable
// labels suitable for logs and metrics.
const (
	ReasonMissingID          = "missing_id"
	ReasonInvalidStartTime   = "invalid_start_time"
	ReasonInvalidEndTime     = "invalid_end_time"
	ReasonEmptyWindow        = "empty_window"
	ReasonInvalidDaysOfWeek  = "invalid_days_of_week"
	ReasonInvalidSeason      = "invalid_season"
	ReasonMissingSeasonDates = "missing_season_dates"
	ReasonInvalidSeasonRange = "invalid_season_range"
	ReasonInvalidDate        = "invalid_date"
)

// RuleError describes why a rule or exception record could not be compiled.
type RuleError struct {
	RuleID string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("curfew: rule %q: %s", e.RuleID, e.Reason)
	}
	return fmt.Sprintf("curfew: rule %q: %s: %v", e.RuleID, e.Reason, e.Err)
}

// Unwrap exposes the underlying parse error.
func (e *RuleError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func ruleError(ruleID, reason string, err error) *RuleError {
	return &RuleError{RuleID: ruleID, Reason: reason, Err: err}
}
