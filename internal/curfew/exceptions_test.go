package curfew

import "testing"

func TestExceptionIndex(t *testing.T) {
	t.Parallel()

	index, rejected := NewExceptionIndex([]Exception{
		{CurfewID: "rule-1", Date: "2025-06-06", Reason: "festival"},
		{CurfewID: "rule-1", Date: "2025-06-06", Reason: "duplicate"},
		{CurfewID: "rule-2", Date: "2025-06-07"},
		{CurfewID: " ", Date: "2025-06-07"},
		{CurfewID: "rule-3", Date: "06/07/2025"},
	})

	if index.Len() != 2 {
		t.Fatalf("expected 2 indexed exceptions, got %d", index.Len())
	}
	if !index.Has("rule-1", MustParseDate("2025-06-06")) {
		t.Fatalf("expected rule-1 to be excepted on 2025-06-06")
	}
	if index.Has("rule-1", MustParseDate("2025-06-07")) {
		t.Fatalf("expected rule-1 not to be excepted on 2025-06-07")
	}
	if index.Has("rule-2", MustParseDate("2025-06-06")) {
		t.Fatalf("expected exception keys to include the rule id")
	}

	if len(rejected) != 2 {
		t.Fatalf("expected 2 rejected exceptions, got %d", len(rejected))
	}
	if rejected[0].Reason != ReasonMissingID || rejected[1].Reason != ReasonInvalidDate {
		t.Fatalf("unexpected rejection reasons: %+v", rejected)
	}

	var empty *ExceptionIndex
	if empty.Has("rule-1", MustParseDate("2025-06-06")) {
		t.Fatalf("expected nil index to report no exceptions")
	}
}
