package curfew

import "time"

// Window is the outcome of placing an instant against a daily window.
type Window struct {
	InWindow      bool
	LogicalNight  Date
	AnchorWeekday time.Weekday
}

// EvaluateWindow places the wall-clock time of local against the daily window
// [start, end).
//
// When start < end the window lies within one calendar day and its logical
// night is local's date. When start > end the window crosses midnight: times at
// or after start belong to today's logical night, times before end belong to
// yesterday's. Outside the window the logical night is local's date.
func EvaluateWindow(local time.Time, start, end TimeOfDay) Window {
	today := DateOf(local)
	clock := ClockOf(local)

	result := Window{LogicalNight: today}
	switch {
	case start < end:
		result.InWindow = clock >= start && clock < end
	case start > end:
		if clock >= start {
			result.InWindow = true
		} else if clock < end {
			result.InWindow = true
			result.LogicalNight = today.AddDays(-1)
		}
	}
	result.AnchorWeekday = result.LogicalNight.Weekday()
	return result
}
