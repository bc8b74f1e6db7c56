package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is the exclusive upper bound of a MinuteOfDay.
const MinutesPerDay = 24 * 60

// MinuteOfDay counts minutes since local midnight. It is encoded as "HH:MM";
// "24:00" is accepted as the end of the day.
type MinuteOfDay int

func NewMinuteOfDay(hour, minute int) MinuteOfDay {
	return MinuteOfDay(hour*60 + minute)
}

func ParseMinuteOfDay(raw string) (MinuteOfDay, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time of day %q: expected HH:MM", raw)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", raw, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", raw, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("time of day %q out of range", raw)
	}
	return NewMinuteOfDay(h, m), nil
}

func (m MinuteOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

func (m MinuteOfDay) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *MinuteOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseMinuteOfDay(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MinuteRange is an open/close pair within one day.
type MinuteRange struct {
	Open  MinuteOfDay `json:"open" yaml:"open"`
	Close MinuteOfDay `json:"close" yaml:"close"`
}

// Valid reports whether the range is non-empty and inside the day.
func (r MinuteRange) Valid() bool {
	return r.Open >= 0 && r.Close <= MinutesPerDay && r.Close > r.Open
}

// BusinessHours lists open ranges per weekday, keyed by lower-case English
// weekday name ("monday" ... "sunday").
type BusinessHours struct {
	TimeZone string                   `json:"time_zone" yaml:"time_zone"`
	Days     map[string][]MinuteRange `json:"days" yaml:"days"`
}

func WeekdayKey(day time.Weekday) string {
	return strings.ToLower(day.String())
}

// RangesFor returns the configured ranges of a weekday.
func (b BusinessHours) RangesFor(day time.Weekday) []MinuteRange {
	if b.Days == nil {
		return nil
	}
	return b.Days[WeekdayKey(day)]
}

// Location resolves TimeZone, falling back to UTC when empty.
func (b BusinessHours) Location() (*time.Location, error) {
	if strings.TrimSpace(b.TimeZone) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(b.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", b.TimeZone, err)
	}
	return loc, nil
}

// DayClosure marks a date, or an inclusive date range, as closed.
type DayClosure struct {
	Date    string `json:"date" yaml:"date"`
	EndDate string `json:"end_date,omitempty" yaml:"end_date"`
	Reason  string `json:"reason,omitempty" yaml:"reason"`
}

// Covers reports whether the closure includes the YYYY-MM-DD day.
func (c DayClosure) Covers(day string) bool {
	end := c.EndDate
	if end < c.Date {
		end = c.Date
	}
	return day >= c.Date && day <= end
}

// SpecialHours replaces the weekday ranges on one date.
type SpecialHours struct {
	Date   string        `json:"date" yaml:"date"`
	Ranges []MinuteRange `json:"ranges" yaml:"ranges"`
	Note   string        `json:"note,omitempty" yaml:"note"`
}

// ValidateDate checks a YYYY-MM-DD string.
func ValidateDate(day string) error {
	if _, err := time.Parse(DateLayout, day); err != nil {
		return fmt.Errorf("invalid date %q: expected %s", day, DateLayout)
	}
	return nil
}

// SortClosures orders closures by start date.
func SortClosures(closures []DayClosure) {
	sort.Slice(closures, func(i, j int) bool { return closures[i].Date < closures[j].Date })
}
