package recurrence

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/example/community-gate/internal/curfew"
)

func rule(id, start, end string, days ...string) curfew.Rule {
	return curfew.Rule{ID: id, StartTime: start, EndTime: end, DaysOfWeek: days, Season: string(curfew.SeasonAllYear), IsActive: true}
}

func TestEngine_Occurrences(t *testing.T) {
	t.Parallel()

	tokyo := time.FixedZone("JST", 9*60*60)
	engine := NewEngine(tokyo)
	// Monday 2025-06-02 00:00 JST through Monday 2025-06-09 00:00 JST.
	from := time.Date(2025, time.June, 2, 0, 0, 0, 0, tokyo)
	to := from.AddDate(0, 0, 7)

	t.Run("expands overnight windows onto their logical nights", func(t *testing.T) {
		t.Parallel()

		snapshot := curfew.NewSnapshot([]curfew.Rule{rule("weekend", "22:00", "06:00", "friday", "saturday")}, nil, curfew.SeasonCalendar{})
		got, err := engine.Occurrences(snapshot, from, to)
		if err != nil {
			t.Fatalf("Occurrences returned error: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 occurrences, got %d: %+v", len(got), got)
		}
		if got[0].LogicalNight != curfew.MustParseDate("2025-06-06") || !got[0].Start.Equal(time.Date(2025, time.June, 6, 22, 0, 0, 0, tokyo)) {
			t.Fatalf("unexpected first occurrence: %+v", got[0])
		}
		if !got[0].End.Equal(time.Date(2025, time.June, 7, 6, 0, 0, 0, tokyo)) {
			t.Fatalf("expected the window to close Saturday 06:00, got %s", got[0].End)
		}
		if got[1].LogicalNight != curfew.MustParseDate("2025-06-07") {
			t.Fatalf("unexpected second occurrence: %+v", got[1])
		}
	})

	t.Run("includes a window left open from the previous night", func(t *testing.T) {
		t.Parallel()

		snapshot := curfew.NewSnapshot([]curfew.Rule{rule("sunday", "22:00", "06:00", "sunday")}, nil, curfew.SeasonCalendar{})
		got, err := engine.Occurrences(snapshot, from, to)
		if err != nil {
			t.Fatalf("Occurrences returned error: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected Sunday 06-01 and Sunday 06-08 nights, got %+v", got)
		}
		if got[0].LogicalNight != curfew.MustParseDate("2025-06-01") {
			t.Fatalf("expected the night before the range to be included, got %+v", got[0])
		}
	})

	t.Run("skips excepted and out of season nights", func(t *testing.T) {
		t.Parallel()

		custom := rule("june-only", "21:00", "23:00", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday")
		custom.Season = string(curfew.SeasonCustom)
		custom.SeasonStart, custom.SeasonEnd = "2025-06-04", "2025-06-30"
		exceptions := []curfew.Exception{{CurfewID: "june-only", Date: "2025-06-05"}}

		got, err := engine.Occurrences(curfew.NewSnapshot([]curfew.Rule{custom}, exceptions, curfew.SeasonCalendar{}), from, to)
		if err != nil {
			t.Fatalf("Occurrences returned error: %v", err)
		}
		nights := make([]string, 0, len(got))
		for _, occurrence := range got {
			nights = append(nights, occurrence.LogicalNight.String())
		}
		want := []string{"2025-06-04", "2025-06-06", "2025-06-07", "2025-06-08"}
		if len(nights) != len(want) {
			t.Fatalf("expected nights %v, got %v", want, nights)
		}
		for i := range want {
			if nights[i] != want[i] {
				t.Fatalf("expected nights %v, got %v", want, nights)
			}
		}
	})

	t.Run("orders overlapping rules by start", func(t *testing.T) {
		t.Parallel()

		snapshot := curfew.NewSnapshot([]curfew.Rule{
			rule("late", "23:00", "05:00", "friday"),
			rule("early", "20:00", "22:00", "friday"),
		}, nil, curfew.SeasonCalendar{})
		got, err := engine.Occurrences(snapshot, from, to)
		if err != nil {
			t.Fatalf("Occurrences returned error: %v", err)
		}
		if len(got) != 2 || got[0].RuleID != "early" || got[1].RuleID != "late" {
			t.Fatalf("expected early before late, got %+v", got)
		}
	})

	t.Run("rejects empty and oversized ranges", func(t *testing.T) {
		t.Parallel()

		snapshot := curfew.NewSnapshot(nil, nil, curfew.SeasonCalendar{})
		if _, err := engine.Occurrences(snapshot, to, from); !errors.Is(err, ErrInvalidWindow) {
			t.Fatalf("expected ErrInvalidWindow for reversed range, got %v", err)
		}
		if _, err := engine.Occurrences(snapshot, from, from.Add(MaxSpan+time.Hour)); !errors.Is(err, ErrInvalidWindow) {
			t.Fatalf("expected ErrInvalidWindow for oversized range, got %v", err)
		}
		got, err := engine.Occurrences(nil, from, to)
		if err != nil || len(got) != 0 {
			t.Fatalf("expected no occurrences for a nil snapshot, got %v (%v)", got, err)
		}
	})
}

func TestEngine_OccurrencesAcrossDST(t *testing.T) {
	t.Parallel()

	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	engine := NewEngine(newYork)
	snapshot := curfew.NewSnapshot([]curfew.Rule{rule("saturday", "22:00", "06:00", "saturday")}, nil, curfew.SeasonCalendar{})
	from := time.Date(2025, time.March, 8, 12, 0, 0, 0, newYork)

	got, err := engine.Occurrences(snapshot, from, from.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Occurrences returned error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one occurrence, got %+v", got)
	}
	if got[0].End.Hour() != 6 || got[0].End.Sub(got[0].Start) != 7*time.Hour {
		t.Fatalf("expected a seven hour window ending 06:00 local, got %s to %s", got[0].Start, got[0].End)
	}
}

func TestEngine_OccurrencesAcrossDSTEnd(t *testing.T) {
	t.Parallel()

	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	engine := NewEngine(newYork)
	// Clocks fall back from 02:00 EDT to 01:00 EST on Sunday 2025-11-02.
	from := time.Date(2025, time.November, 1, 12, 0, 0, 0, newYork)

	t.Run("repeated hour yields two occurrences", func(t *testing.T) {
		t.Parallel()
		snapshot := curfew.NewSnapshot([]curfew.Rule{rule("early", "01:00", "01:30", "sunday")}, nil, curfew.SeasonCalendar{})

		got, err := engine.Occurrences(snapshot, from, from.Add(36*time.Hour))
		if err != nil {
			t.Fatalf("Occurrences returned error: %v", err)
		}
		want := []time.Time{
			time.Date(2025, time.November, 2, 5, 0, 0, 0, time.UTC),
			time.Date(2025, time.November, 2, 6, 0, 0, 0, time.UTC),
		}
		if len(got) != len(want) {
			t.Fatalf("expected %d occurrences, got %+v", len(want), got)
		}
		for i, start := range want {
			if !got[i].Start.Equal(start) || got[i].End.Sub(got[i].Start) != 30*time.Minute {
				t.Fatalf("occurrence %d: expected 30 minutes from %s, got %s to %s", i, start, got[i].Start, got[i].End)
			}
			if got[i].LogicalNight != curfew.MustParseDate("2025-11-02") {
				t.Fatalf("occurrence %d: unexpected logical night %s", i, got[i].LogicalNight)
			}
		}

		resolver := curfew.NewResolver(nil)
		second := time.Date(2025, time.November, 2, 6, 15, 0, 0, time.UTC).In(newYork)
		if !resolver.Evaluate(second, snapshot).Restricted {
			t.Fatalf("expected resolver to restrict 01:15 EST as well")
		}
	})

	t.Run("overnight window spans the longer night", func(t *testing.T) {
		t.Parallel()
		snapshot := curfew.NewSnapshot([]curfew.Rule{rule("saturday", "22:00", "06:00", "saturday")}, nil, curfew.SeasonCalendar{})

		got, err := engine.Occurrences(snapshot, from, from.Add(24*time.Hour))
		if err != nil {
			t.Fatalf("Occurrences returned error: %v", err)
		}
		if len(got) != 1 || got[0].End.Sub(got[0].Start) != 9*time.Hour {
			t.Fatalf("expected one nine hour window, got %+v", got)
		}
	})

	t.Run("start inside the skipped hour opens at the transition", func(t *testing.T) {
		t.Parallel()
		snapshot := curfew.NewSnapshot([]curfew.Rule{rule("gap", "02:30", "04:00", "sunday")}, nil, curfew.SeasonCalendar{})
		spring := time.Date(2025, time.March, 9, 0, 0, 0, 0, newYork)

		got, err := engine.Occurrences(snapshot, spring, spring.Add(12*time.Hour))
		if err != nil {
			t.Fatalf("Occurrences returned error: %v", err)
		}
		if len(got) != 1 || got[0].Start.Hour() != 3 || got[0].End.Sub(got[0].Start) != time.Hour {
			t.Fatalf("expected 03:00 to 04:00 EDT, got %+v", got)
		}
	})
}

func TestEngine_AgreesWithResolver(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	ranges := []struct {
		name string
		loc  *time.Location
		from time.Time
	}{
		{name: "utc", loc: time.UTC, from: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)},
		{name: "new york spring forward", loc: newYork, from: time.Date(2025, time.March, 2, 0, 0, 0, 0, newYork)},
		{name: "new york fall back", loc: newYork, from: time.Date(2025, time.October, 26, 0, 0, 0, 0, newYork)},
	}
	for _, tc := range ranges {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			checkAgreesWithResolver(t, tc.loc, tc.from, tc.from.AddDate(0, 0, 14))
		})
	}
}

func checkAgreesWithResolver(t *testing.T, loc *time.Location, from, to time.Time) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 150
	properties := gopter.NewProperties(parameters)

	engine := NewEngine(loc)
	resolver := curfew.NewResolver(nil)

	weekdays := []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}
	genRule := gopter.CombineGens(
		gen.IntRange(0, 24*60-1),
		gen.IntRange(0, 24*60-1),
		gen.UInt8Range(1, 127),
	).Map(func(values []interface{}) curfew.Rule {
		start, end := values[0].(int), values[1].(int)
		if start == end {
			end = (end + 1) % (24 * 60)
		}
		var days []string
		for i, name := range weekdays {
			if values[2].(uint8)&(1<<uint(i)) != 0 {
				days = append(days, name)
			}
		}
		return rule("generated", clock(start), clock(end), days...)
	})

	properties.Property("an instant is restricted iff an occurrence contains it", prop.ForAll(
		func(r curfew.Rule, offset int64) bool {
			snapshot := curfew.NewSnapshot([]curfew.Rule{r}, nil, curfew.SeasonCalendar{})
			occurrences, err := engine.Occurrences(snapshot, from, to)
			if err != nil {
				return false
			}
			instant := from.Add(time.Duration(offset) * time.Minute).In(loc)
			covered := false
			for _, occurrence := range occurrences {
				if !instant.Before(occurrence.Start) && instant.Before(occurrence.End) {
					covered = true
					break
				}
			}
			return covered == resolver.Evaluate(instant, snapshot).Restricted
		},
		genRule,
		gen.Int64Range(0, int64(to.Sub(from)/time.Minute)-1),
	))

	properties.TestingRun(t)
}

func clock(minute int) string {
	return curfew.TimeOfDay(minute * 60).String()
}
