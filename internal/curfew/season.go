package curfew

import (
	"fmt"
	"strings"
	"time"
)

// Season labels the calendar scope of a rule.
type Season string

const (
	SeasonAllYear Season = "all_year"
	SeasonSummer  Season = "summer"
	SeasonWinter  Season = "winter"
	SeasonCustom  Season = "custom"
)

// ParseSeason resolves a season label. Labels are case-insensitive.
func ParseSeason(value string) (Season, error) {
	switch season := Season(strings.ToLower(strings.TrimSpace(value))); season {
	case SeasonAllYear, SeasonSummer, SeasonWinter, SeasonCustom:
		return season, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSeason, value)
}

// MonthDay is a recurring day of the year.
type MonthDay struct {
	Month time.Month
	Day   int
}

// ParseMonthDay parses an "MM-DD" value. February 29 is accepted.
func ParseMonthDay(value string) (MonthDay, error) {
	// 2024 is a leap year so "02-29" parses.
	parsed, err := time.Parse("2006-01-02", "2024-"+strings.TrimSpace(value))
	if err != nil {
		return MonthDay{}, fmt.Errorf("%w: %q", ErrInvalidMonthDay, value)
	}
	return MonthDay{Month: parsed.Month(), Day: parsed.Day()}, nil
}

func (m MonthDay) ordinal() int { return int(m.Month)*32 + m.Day }

// String renders the value as MM-DD.
func (m MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", int(m.Month), m.Day)
}

// MonthDayRange is an inclusive range of days that repeats every year. When
// Start is after End the range wraps the year boundary.
type MonthDayRange struct {
	Start MonthDay
	End   MonthDay
}

// Contains reports whether d falls inside the range.
func (r MonthDayRange) Contains(d Date) bool {
	o := MonthDay{Month: d.Month, Day: d.Day}.ordinal()
	start, end := r.Start.ordinal(), r.End.ordinal()
	if start <= end {
		return start <= o && o <= end
	}
	return o >= start || o <= end
}

// SeasonCalendar maps the summer and winter aliases onto concrete ranges. A nil
// range is unconfigured and never matches.
type SeasonCalendar struct {
	Summer *MonthDayRange
	Winter *MonthDayRange
}

// Range returns the configured range for an alias season.
func (c SeasonCalendar) Range(season Season) (MonthDayRange, bool) {
	var r *MonthDayRange
	switch season {
	case SeasonSummer:
		r = c.Summer
	case SeasonWinter:
		r = c.Winter
	}
	if r == nil {
		return MonthDayRange{}, false
	}
	return *r, true
}

// SeasonScope is the compiled seasonal validity of a rule. Start and End are
// only meaningful for SeasonCustom.
type SeasonScope struct {
	Season Season
	Start  Date
	End    Date
}

// InSeason reports whether date lies inside scope.
//
// all_year always matches. custom matches the inclusive range Start..End without
// year recurrence. summer and winter match the calendar's configured range; when
// no range is configured they never match.
func InSeason(date Date, scope SeasonScope, calendar SeasonCalendar) bool {
	switch scope.Season {
	case SeasonAllYear:
		return true
	case SeasonCustom:
		return !date.Before(scope.Start) && !date.After(scope.End)
	case SeasonSummer, SeasonWinter:
		r, ok := calendar.Range(scope.Season)
		if !ok {
			return false
		}
		return r.Contains(date)
	}
	return false
}
