package curfew

import (
	"errors"
)

// Snapshot is an immutable, compiled view of one tenant's rules, exceptions and
// season calendar.
type Snapshot struct {
	rules        []compiledRule
	skipped      []SkippedRule
	exceptions   *ExceptionIndex
	rejected     []RejectedException
	calendar     SeasonCalendar
	unconfigured []string
}

// NewSnapshot compiles the active rules and indexes the exceptions. Inactive
// rules are dropped before validation. Malformed active rules are kept aside as
// skipped so every evaluation can report them.
func NewSnapshot(rules []Rule, exceptions []Exception, calendar SeasonCalendar) *Snapshot {
	snapshot := &Snapshot{calendar: calendar}
	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		compiled, err := compileRule(rule)
		if err != nil {
			skipped := SkippedRule{RuleID: rule.ID, Reason: "invalid", Err: err}
			var rErr *RuleError
			if errors.As(err, &rErr) {
				skipped.Reason = rErr.Reason
			}
			snapshot.skipped = append(snapshot.skipped, skipped)
			continue
		}
		if season := compiled.scope.Season; season == SeasonSummer || season == SeasonWinter {
			if _, ok := calendar.Range(season); !ok {
				snapshot.unconfigured = append(snapshot.unconfigured, compiled.id)
			}
		}
		snapshot.rules = append(snapshot.rules, compiled)
	}
	snapshot.exceptions, snapshot.rejected = NewExceptionIndex(exceptions)
	return snapshot
}

// RuleCount returns the number of evaluable rules.
func (s *Snapshot) RuleCount() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// ExceptionCount returns the number of indexed exceptions.
func (s *Snapshot) ExceptionCount() int {
	if s == nil {
		return 0
	}
	return s.exceptions.Len()
}

// Skipped lists malformed active rules.
func (s *Snapshot) Skipped() []SkippedRule {
	if s == nil || len(s.skipped) == 0 {
		return nil
	}
	out := make([]SkippedRule, len(s.skipped))
	copy(out, s.skipped)
	return out
}

// Rejected lists exception records that could not be indexed.
func (s *Snapshot) Rejected() []RejectedException {
	if s == nil || len(s.rejected) == 0 {
		return nil
	}
	out := make([]RejectedException, len(s.rejected))
	copy(out, s.rejected)
	return out
}

// UnconfiguredSeasons lists rules scoped to summer or winter whose range is not
// configured in the calendar. Such rules never match.
func (s *Snapshot) UnconfiguredSeasons() []string {
	if s == nil || len(s.unconfigured) == 0 {
		return nil
	}
	out := make([]string, len(s.unconfigured))
	copy(out, s.unconfigured)
	return out
}

// NightWindow is one rule's window on one logical night. End at or before
// Start means the window closes on the following day.
type NightWindow struct {
	RuleID string
	Start  TimeOfDay
	End    TimeOfDay
}

// Windows lists, in snapshot order, the rules that restrict the logical night
// anchored on date once weekdays, seasons and exceptions are applied.
func (s *Snapshot) Windows(date Date) []NightWindow {
	if s == nil {
		return nil
	}
	var windows []NightWindow
	for _, rule := range s.rules {
		if !rule.days.Contains(date.Weekday()) {
			continue
		}
		if !InSeason(date, rule.scope, s.calendar) {
			continue
		}
		if s.exceptions.Has(rule.id, date) {
			continue
		}
		windows = append(windows, NightWindow{RuleID: rule.id, Start: rule.start, End: rule.end})
	}
	return windows
}
