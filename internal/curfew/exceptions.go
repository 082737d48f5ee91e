package curfew

import "strings"

type exceptionKey struct {
	ruleID string
	night  Date
}

// ExceptionIndex answers whether a rule is suspended for a logical night.
type ExceptionIndex struct {
	entries map[exceptionKey]struct{}
}

// NewExceptionIndex indexes exceptions by (rule id, date). Records with an empty
// rule id or an unparseable date are returned as rejected and left out.
func NewExceptionIndex(exceptions []Exception) (*ExceptionIndex, []RejectedException) {
	index := &ExceptionIndex{entries: make(map[exceptionKey]struct{}, len(exceptions))}
	var rejected []RejectedException
	for _, exception := range exceptions {
		ruleID := strings.TrimSpace(exception.CurfewID)
		if ruleID == "" {
			rejected = append(rejected, RejectedException{CurfewID: exception.CurfewID, Date: exception.Date, Reason: ReasonMissingID})
			continue
		}
		night, err := ParseDate(exception.Date)
		if err != nil {
			rejected = append(rejected, RejectedException{CurfewID: exception.CurfewID, Date: exception.Date, Reason: ReasonInvalidDate})
			continue
		}
		index.entries[exceptionKey{ruleID: ruleID, night: night}] = struct{}{}
	}
	return index, rejected
}

// Has reports whether ruleID is excepted on the given logical night.
func (x *ExceptionIndex) Has(ruleID string, night Date) bool {
	if x == nil {
		return false
	}
	_, ok := x.entries[exceptionKey{ruleID: ruleID, night: night}]
	return ok
}

// Len returns the number of distinct (rule, night) pairs.
func (x *ExceptionIndex) Len() int {
	if x == nil {
		return 0
	}
	return len(x.entries)
}
