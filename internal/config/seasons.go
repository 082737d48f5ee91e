package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/example/community-gate/internal/curfew"
)

// SeasonBook holds the summer and winter boundaries per tenant. A tenant entry
// replaces the default calendar in full.
type SeasonBook struct {
	Default curfew.SeasonCalendar
	Tenants map[string]curfew.SeasonCalendar
}

// CalendarFor returns the tenant's calendar, or the default one.
func (b *SeasonBook) CalendarFor(tenantID string) curfew.SeasonCalendar {
	if b == nil {
		return curfew.SeasonCalendar{}
	}
	if calendar, ok := b.Tenants[tenantID]; ok {
		return calendar
	}
	return b.Default
}

type seasonFile struct {
	Default *calendarEntry           `yaml:"default"`
	Tenants map[string]calendarEntry `yaml:"tenants"`
}

type calendarEntry struct {
	Summer *rangeEntry `yaml:"summer"`
	Winter *rangeEntry `yaml:"winter"`
}

type rangeEntry struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// LoadSeasonBook reads a season file. An empty path yields an empty book in
// which every season alias is unconfigured.
func LoadSeasonBook(path string) (*SeasonBook, error) {
	if strings.TrimSpace(path) == "" {
		return &SeasonBook{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("季節ファイルを読み込めません: %s: %w", path, err)
	}
	book, err := ParseSeasonBook(data)
	if err != nil {
		return nil, fmt.Errorf("季節ファイルの形式が不正です: %s: %w", path, err)
	}
	return book, nil
}

// ParseSeasonBook decodes season file contents. Unknown keys are rejected.
func ParseSeasonBook(data []byte) (*SeasonBook, error) {
	var file seasonFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	book := &SeasonBook{Tenants: make(map[string]curfew.SeasonCalendar, len(file.Tenants))}
	if file.Default != nil {
		calendar, err := file.Default.calendar()
		if err != nil {
			return nil, fmt.Errorf("default: %w", err)
		}
		book.Default = calendar
	}
	for tenantID, entry := range file.Tenants {
		calendar, err := entry.calendar()
		if err != nil {
			return nil, fmt.Errorf("tenants.%s: %w", tenantID, err)
		}
		book.Tenants[tenantID] = calendar
	}
	return book, nil
}

func (e calendarEntry) calendar() (curfew.SeasonCalendar, error) {
	summer, err := e.Summer.monthDayRange()
	if err != nil {
		return curfew.SeasonCalendar{}, fmt.Errorf("summer: %w", err)
	}
	winter, err := e.Winter.monthDayRange()
	if err != nil {
		return curfew.SeasonCalendar{}, fmt.Errorf("winter: %w", err)
	}
	return curfew.SeasonCalendar{Summer: summer, Winter: winter}, nil
}

func (r *rangeEntry) monthDayRange() (*curfew.MonthDayRange, error) {
	if r == nil {
		return nil, nil
	}
	start, err := curfew.ParseMonthDay(r.Start)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	end, err := curfew.ParseMonthDay(r.End)
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	return &curfew.MonthDayRange{Start: start, End: end}, nil
}
