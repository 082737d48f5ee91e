// Package curfew decides whether any configured curfew restricts gate access at a
// given local instant.
//
// A rule combines four independent temporal dimensions:
//
//   - a daily window [start, end) that may cross midnight,
//   - a set of weekdays the window is anchored on,
//   - a seasonal scope (all_year, summer, winter or an inclusive custom date range),
//   - per-date exceptions that suspend the rule for one logical night.
//
// The logical night is the calendar date a window instance began on. For a rule
// configured for Monday with window 22:00-06:00, Tuesday 03:00 belongs to Monday's
// logical night: the weekday check and the exception lookup both use Monday.
//
// Everything in this package is pure and safe for concurrent use. A Snapshot is
// immutable once built and may be shared by any number of evaluating goroutines.
package curfew
