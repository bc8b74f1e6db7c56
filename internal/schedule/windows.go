// Package schedule computes bookable time windows from business hours,
// closures and special-hours overrides. Everything here is pure.
package schedule

import (
	"sort"
	"time"

	"salonbook/internal/models"
)

// ComputeOpenWindows returns the open windows of date's calendar day, in
// date's location, ordered ascending. A closure covering the day wins;
// otherwise special hours for the day replace the weekday ranges. Degenerate
// ranges (close <= open, outside the day) are dropped. An empty result means
// closed.
func ComputeOpenWindows(
	date time.Time,
	hours models.BusinessHours,
	closures []models.DayClosure,
	special []models.SpecialHours,
) []models.Window {
	day := date.Format(models.DateLayout)

	for _, c := range closures {
		if c.Covers(day) {
			return nil
		}
	}

	var ranges []models.MinuteRange
	overridden := false
	for _, s := range special {
		if s.Date == day {
			overridden = true
			ranges = append(ranges, s.Ranges...)
		}
	}
	if !overridden {
		ranges = hours.RangesFor(date.Weekday())
	}

	return toWindows(date, normalize(ranges))
}

// normalize drops degenerate ranges, sorts and merges overlapping ones.
func normalize(ranges []models.MinuteRange) []models.MinuteRange {
	out := make([]models.MinuteRange, 0, len(ranges))
	for _, r := range ranges {
		if r.Valid() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Open < out[j].Open })

	merged := out[:0]
	for _, r := range out {
		if n := len(merged); n > 0 && r.Open <= merged[n-1].Close {
			if r.Close > merged[n-1].Close {
				merged[n-1].Close = r.Close
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

func toWindows(date time.Time, ranges []models.MinuteRange) []models.Window {
	if len(ranges) == 0 {
		return nil
	}
	y, m, d := date.Date()
	loc := date.Location()
	windows := make([]models.Window, 0, len(ranges))
	for _, r := range ranges {
		windows = append(windows, models.Window{
			Start: time.Date(y, m, d, 0, int(r.Open), 0, 0, loc),
			End:   time.Date(y, m, d, 0, int(r.Close), 0, 0, loc),
		})
	}
	return windows
}

// FreeWindows subtracts busy ranges from open windows.
func FreeWindows(open, busy []models.Window) []models.Window {
	busy = append([]models.Window(nil), busy...)
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })

	var free []models.Window
	for _, w := range open {
		cursor := w.Start
		for _, b := range busy {
			if !b.End.After(cursor) || !b.Start.Before(w.End) {
				continue
			}
			if b.Start.After(cursor) {
				free = append(free, models.Window{Start: cursor, End: b.Start})
			}
			if b.End.After(cursor) {
				cursor = b.End
			}
			if !cursor.Before(w.End) {
				break
			}
		}
		if cursor.Before(w.End) {
			free = append(free, models.Window{Start: cursor, End: w.End})
		}
	}
	return free
}

// CandidateStarts lists start times on a step grid, anchored at each free
// window's start, where a service of the given length fits entirely and the
// start is not before notBefore.
func CandidateStarts(free []models.Window, length, step time.Duration, notBefore time.Time) []time.Time {
	if length <= 0 || step <= 0 {
		return nil
	}
	var starts []time.Time
	for _, w := range free {
		for t := w.Start; !t.Add(length).After(w.End); t = t.Add(step) {
			if t.Before(notBefore) {
				continue
			}
			starts = append(starts, t)
		}
	}
	return starts
}
