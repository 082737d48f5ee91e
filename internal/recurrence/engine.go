// Package recurrence expands a tenant's compiled curfew rules into concrete
// restricted intervals, for displays that announce the next curfew.
package recurrence

import (
	"errors"
	"time"

	"github.com/example/community-gate/internal/curfew"
)

// MaxSpan bounds the range a single expansion may cover.
const MaxSpan = 62 * 24 * time.Hour

// maxZoneOffset is larger than any UTC offset in the tz database.
const maxZoneOffset = 15 * time.Hour

// ErrInvalidWindow indicates the requested range is empty or too long.
var ErrInvalidWindow = errors.New("recurrence: range must be positive and at most 62 days")

// Occurrence is one restricted interval [Start, End) of one rule.
type Occurrence struct {
	RuleID       string
	LogicalNight curfew.Date
	Start        time.Time
	End          time.Time
}

// Engine expands snapshots in a tenant's location.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine for loc. If loc is nil, UTC is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{location: loc}
}

// Occurrences lists every restricted interval overlapping [from, to), ordered
// by start and then by snapshot rule order.
//
// The engine walks civil dates rather than adding 24h, so windows keep their
// wall-clock bounds across DST transitions. A window whose wall-clock span is
// repeated by a fall-back transition yields one occurrence per pass through it.
// Exceptions and seasons apply to the logical night, exactly as during
// evaluation.
func (e *Engine) Occurrences(snapshot *curfew.Snapshot, from, to time.Time) ([]Occurrence, error) {
	if !to.After(from) || to.Sub(from) > MaxSpan {
		return nil, ErrInvalidWindow
	}
	loc := e.location
	if loc == nil {
		loc = time.UTC
	}

	// A window anchored the day before from may still be open at from.
	first := curfew.DateOf(from.In(loc)).AddDays(-1)
	last := curfew.DateOf(to.In(loc))

	occurrences := make([]Occurrence, 0)
	for night := first; !night.After(last); night = night.AddDays(1) {
		for _, window := range snapshot.Windows(night) {
			endDate := night
			if window.End <= window.Start {
				endDate = night.AddDays(1)
			}
			for _, iv := range wallSpan(wall(night, window.Start), wall(endDate, window.End), loc) {
				if !iv.end.After(from) || !iv.start.Before(to) {
					continue
				}
				occurrences = append(occurrences, Occurrence{
					RuleID:       window.RuleID,
					LogicalNight: night,
					Start:        iv.start.In(loc),
					End:          iv.end.In(loc),
				})
			}
		}
	}

	sortByStart(occurrences)
	return occurrences, nil
}

// wall encodes a civil date and clock as a UTC time, standing for the wall
// clock reading rather than an instant.
func wall(date curfew.Date, clock curfew.TimeOfDay) time.Time {
	seconds := int(clock)
	return time.Date(date.Year, date.Month, date.Day, seconds/3600, (seconds/60)%60, seconds%60, 0, time.UTC)
}

type interval struct {
	start, end time.Time
}

// wallSpan returns the instants whose wall clock in loc reads within
// [wallStart, wallEnd). Each zone period contributes the instants of the span
// at its offset; adjacent pieces are merged. Times skipped by a spring-forward
// are simply absent, and a fall-back inside the span leaves two pieces.
func wallSpan(wallStart, wallEnd time.Time, loc *time.Location) []interval {
	var spans []interval
	limit := wallEnd.Add(maxZoneOffset)
	for cursor := wallStart.Add(-maxZoneOffset); cursor.Before(limit); {
		local := cursor.In(loc)
		_, offset := local.Zone()
		zoneStart, zoneEnd := local.ZoneBounds()

		shift := time.Duration(offset) * time.Second
		start, end := wallStart.Add(-shift), wallEnd.Add(-shift)
		if !zoneStart.IsZero() && start.Before(zoneStart) {
			start = zoneStart
		}
		if !zoneEnd.IsZero() && end.After(zoneEnd) {
			end = zoneEnd
		}
		if start.Before(end) {
			if n := len(spans); n > 0 && spans[n-1].end.Equal(start) {
				spans[n-1].end = end
			} else {
				spans = append(spans, interval{start: start, end: end})
			}
		}

		if zoneEnd.IsZero() {
			break
		}
		cursor = zoneEnd
	}
	return spans
}

// sortByStart is a stable insertion sort; nights are already in order so the
// input is nearly sorted.
func sortByStart(occurrences []Occurrence) {
	for i := 1; i < len(occurrences); i++ {
		for j := i; j > 0 && occurrences[j].Start.Before(occurrences[j-1].Start); j-- {
			occurrences[j], occurrences[j-1] = occurrences[j-1], occurrences[j]
		}
	}
}
