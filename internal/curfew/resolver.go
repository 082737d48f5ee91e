package curfew

import (
	"log/slog"
	"time"
)

// Match is one rule restricting access, with the logical night it applied to.
type Match struct {
	RuleID       string
	LogicalNight Date
}

// Result is the restriction decision for one instant.
type Result struct {
	Restricted   bool
	MatchedRules []string
	Matches      []Match
	Skipped      []SkippedRule
}

// Resolver combines the window, season and exception checks across a snapshot.
// The zero value is ready to use and logs through slog.Default.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver returns a resolver that reports skipped rules to logger at debug
// level. Snapshot owners warn about malformed rules once, when they build the
// snapshot.
func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Evaluate decides whether any rule in snapshot restricts access at instant.
// The wall-clock fields of instant are used as-is, so callers convert to the
// tenant's local zone first. No rule takes priority: every match is reported in
// snapshot order. Malformed rules never abort evaluation; they are listed in
// Result.Skipped on every call.
func (r *Resolver) Evaluate(instant time.Time, snapshot *Snapshot) Result {
	result := Result{MatchedRules: []string{}}
	if snapshot == nil {
		return result
	}

	if len(snapshot.skipped) > 0 {
		logger := r.loggerOrDefault()
		for _, skipped := range snapshot.skipped {
			logger.Debug("curfew rule skipped",
				"rule_id", skipped.RuleID,
				"reason", skipped.Reason,
				"error", skipped.Err,
			)
		}
		result.Skipped = snapshot.Skipped()
	}

	for _, rule := range snapshot.rules {
		window := EvaluateWindow(instant, rule.start, rule.end)
		if !window.InWindow {
			continue
		}
		if !rule.days.Contains(window.AnchorWeekday) {
			continue
		}
		if !InSeason(window.LogicalNight, rule.scope, snapshot.calendar) {
			continue
		}
		if snapshot.exceptions.Has(rule.id, window.LogicalNight) {
			continue
		}
		result.MatchedRules = append(result.MatchedRules, rule.id)
		result.Matches = append(result.Matches, Match{RuleID: rule.id, LogicalNight: window.LogicalNight})
	}

	result.Restricted = len(result.MatchedRules) > 0
	return result
}

func (r *Resolver) loggerOrDefault() *slog.Logger {
	if r != nil && r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

// Evaluate builds a throwaway snapshot and evaluates it at instant.
func Evaluate(instant time.Time, rules []Rule, exceptions []Exception, calendar SeasonCalendar) Result {
	return NewResolver(nil).Evaluate(instant, NewSnapshot(rules, exceptions, calendar))
}
