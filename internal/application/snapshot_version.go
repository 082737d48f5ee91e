package application

import (
	"encoding/hex"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/example/community-gate/internal/curfew"
)

const snapshotVersionLength = 16

// snapshotVersion fingerprints every input that can change a decision: the
// zone, the rules in order, the exceptions and the season calendar.
func snapshotVersion(zone string, rules []curfew.Rule, exceptions []curfew.Exception, calendar curfew.SeasonCalendar) string {
	h, err := blake2b.New256(nil)
	if err != nil {
		// New256 only fails for keys longer than 64 bytes.
		panic(err)
	}

	writeField(h, "zone", zone)
	for _, rule := range rules {
		writeField(h, "rule", rule.ID)
		writeField(h, "start", rule.StartTime)
		writeField(h, "end", rule.EndTime)
		writeField(h, "days", strings.Join(rule.DaysOfWeek, ","))
		writeField(h, "season", rule.Season)
		writeField(h, "season_start", rule.SeasonStart)
		writeField(h, "season_end", rule.SeasonEnd)
		writeField(h, "active", strconv.FormatBool(rule.IsActive))
	}
	for _, exception := range exceptions {
		writeField(h, "exception", exception.CurfewID)
		writeField(h, "date", exception.Date)
	}
	writeRange(h, "summer", calendar.Summer)
	writeRange(h, "winter", calendar.Winter)

	return hex.EncodeToString(h.Sum(nil))[:snapshotVersionLength]
}

// writeField length-prefixes values so adjacent fields cannot collide.
func writeField(h hash.Hash, name, value string) {
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(len(value))))
	h.Write([]byte{0})
	h.Write([]byte(value))
}

func writeRange(h hash.Hash, name string, r *curfew.MonthDayRange) {
	if r == nil {
		writeField(h, name, "")
		return
	}
	writeField(h, name, r.Start.String()+".."+r.End.String())
}
