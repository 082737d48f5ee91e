package curfew

import (
	"fmt"
	"strings"
	"time"
)

// WeekdaySet is a bitmask of weekdays, bit n set for time.Weekday(n).
type WeekdaySet uint8

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"sun":       time.Sunday,
	"monday":    time.Monday,
	"mon":       time.Monday,
	"tuesday":   time.Tuesday,
	"tue":       time.Tuesday,
	"wednesday": time.Wednesday,
	"wed":       time.Wednesday,
	"thursday":  time.Thursday,
	"thu":       time.Thursday,
	"friday":    time.Friday,
	"fri":       time.Friday,
	"saturday":  time.Saturday,
	"sat":       time.Saturday,
}

// ParseWeekday resolves a case-insensitive English weekday name or three letter
// abbreviation.
func ParseWeekday(name string) (time.Weekday, error) {
	day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return time.Sunday, fmt.Errorf("%w: %q", ErrInvalidWeekday, name)
	}
	return day, nil
}

// ParseWeekdaySet parses a list of weekday names. Duplicates collapse; any
// unknown name fails the whole set.
func ParseWeekdaySet(names []string) (WeekdaySet, error) {
	var set WeekdaySet
	for _, name := range names {
		day, err := ParseWeekday(name)
		if err != nil {
			return 0, err
		}
		set = set.With(day)
	}
	return set, nil
}

// NewWeekdaySet builds a set from weekday values. Out of range values are ignored.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var set WeekdaySet
	for _, day := range days {
		set = set.With(day)
	}
	return set
}

// With returns a copy of the set including day.
func (s WeekdaySet) With(day time.Weekday) WeekdaySet {
	if day < time.Sunday || day > time.Saturday {
		return s
	}
	return s | 1<<uint(day)
}

// Contains reports whether day is in the set.
func (s WeekdaySet) Contains(day time.Weekday) bool {
	if day < time.Sunday || day > time.Saturday {
		return false
	}
	return s&(1<<uint(day)) != 0
}

// Empty reports whether no weekday is set.
func (s WeekdaySet) Empty() bool { return s == 0 }

// Days lists the members from Sunday to Saturday.
func (s WeekdaySet) Days() []time.Weekday {
	var days []time.Weekday
	for day := time.Sunday; day <= time.Saturday; day++ {
		if s.Contains(day) {
			days = append(days, day)
		}
	}
	return days
}
