package curfew

import "strings"

// Rule is a curfew rule as read from the tenant's configuration store. Fields
// carry their stored representation and are validated when a Snapshot is built.
type Rule struct {
	ID          string
	Name        string
	Description string
	StartTime   string
	EndTime     string
	DaysOfWeek  []string
	Season      string
	SeasonStart string
	SeasonEnd   string
	IsActive    bool
}

// Exception suspends one rule for one logical night.
type Exception struct {
	CurfewID string
	Date     string
	Reason   string
}

// SkippedRule identifies an active rule that was excluded from evaluation
// because its configuration is malformed.
type SkippedRule struct {
	RuleID string
	Reason string
	Err    error
}

// RejectedException identifies an exception record that could not be indexed.
type RejectedException struct {
	CurfewID string
	Date     string
	Reason   string
}

type compiledRule struct {
	id    string
	start TimeOfDay
	end   TimeOfDay
	days  WeekdaySet
	scope SeasonScope
}

// ValidateRule reports the first configuration problem of rule as a *RuleError,
// or nil when the rule can be evaluated.
func ValidateRule(rule Rule) error {
	if _, err := compileRule(rule); err != nil {
		return err
	}
	return nil
}

func compileRule(rule Rule) (compiledRule, error) {
	id := strings.TrimSpace(rule.ID)
	if id == "" {
		return compiledRule{}, ruleError(rule.ID, ReasonMissingID, nil)
	}

	start, err := ParseTimeOfDay(rule.StartTime)
	if err != nil {
		return compiledRule{}, ruleError(id, ReasonInvalidStartTime, err)
	}
	end, err := ParseTimeOfDay(rule.EndTime)
	if err != nil {
		return compiledRule{}, ruleError(id, ReasonInvalidEndTime, err)
	}
	if start == end {
		return compiledRule{}, ruleError(id, ReasonEmptyWindow, nil)
	}

	days, err := ParseWeekdaySet(rule.DaysOfWeek)
	if err != nil {
		return compiledRule{}, ruleError(id, ReasonInvalidDaysOfWeek, err)
	}
	if days.Empty() {
		return compiledRule{}, ruleError(id, ReasonInvalidDaysOfWeek, nil)
	}

	scope, rErr := compileScope(id, rule)
	if rErr != nil {
		return compiledRule{}, rErr
	}

	return compiledRule{id: id, start: start, end: end, days: days, scope: scope}, nil
}

func compileScope(id string, rule Rule) (SeasonScope, *RuleError) {
	season, err := ParseSeason(rule.Season)
	if err != nil {
		return SeasonScope{}, ruleError(id, ReasonInvalidSeason, err)
	}
	if season != SeasonCustom {
		return SeasonScope{Season: season}, nil
	}

	if strings.TrimSpace(rule.SeasonStart) == "" || strings.TrimSpace(rule.SeasonEnd) == "" {
		return SeasonScope{}, ruleError(id, ReasonMissingSeasonDates, nil)
	}
	start, err := ParseDate(rule.SeasonStart)
	if err != nil {
		return SeasonScope{}, ruleError(id, ReasonInvalidSeasonRange, err)
	}
	end, err := ParseDate(rule.SeasonEnd)
	if err != nil {
		return SeasonScope{}, ruleError(id, ReasonInvalidSeasonRange, err)
	}
	if start.After(end) {
		return SeasonScope{}, ruleError(id, ReasonInvalidSeasonRange, nil)
	}
	return SeasonScope{Season: season, Start: start, End: end}, nil
}
