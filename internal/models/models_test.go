package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestMinuteOfDay(t *testing.T) {
	t.Run("Parse", func(t *testing.T) {
		m, err := ParseMinuteOfDay("09:30")
		require.NoError(t, err)
		assert.Equal(t, MinuteOfDay(570), m)
		assert.Equal(t, "09:30", m.String())

		end, err := ParseMinuteOfDay("24:00")
		require.NoError(t, err)
		assert.Equal(t, MinuteOfDay(MinutesPerDay), end)
	})

	t.Run("Invalid", func(t *testing.T) {
		for _, raw := range []string{"", "9", "25:00", "24:30", "10:60", "ab:cd"} {
			_, err := ParseMinuteOfDay(raw)
			assert.Error(t, err, raw)
		}
	})

	t.Run("JSON", func(t *testing.T) {
		var r MinuteRange
		require.NoError(t, json.Unmarshal([]byte(`{"open":"09:00","close":"18:00"}`), &r))
		assert.Equal(t, NewMinuteOfDay(9, 0), r.Open)
		assert.Equal(t, NewMinuteOfDay(18, 0), r.Close)

		raw, err := json.Marshal(r)
		require.NoError(t, err)
		assert.JSONEq(t, `{"open":"09:00","close":"18:00"}`, string(raw))
	})

	t.Run("YAML", func(t *testing.T) {
		var b BusinessHours
		doc := "time_zone: Europe/Moscow\ndays:\n  tuesday:\n    - open: \"09:00\"\n      close: \"18:00\"\n"
		require.NoError(t, yaml.Unmarshal([]byte(doc), &b))
		require.Len(t, b.RangesFor(time.Tuesday), 1)
		assert.Equal(t, NewMinuteOfDay(18, 0), b.RangesFor(time.Tuesday)[0].Close)
		assert.Empty(t, b.RangesFor(time.Monday))
	})
}

func TestMinuteRangeValid(t *testing.T) {
	assert.True(t, MinuteRange{Open: 540, Close: 1080}.Valid())
	assert.False(t, MinuteRange{Open: 1080, Close: 540}.Valid())
	assert.False(t, MinuteRange{Open: 600, Close: 600}.Valid())
	assert.False(t, MinuteRange{Open: -10, Close: 600}.Valid())
	assert.False(t, MinuteRange{Open: 600, Close: MinutesPerDay + 1}.Valid())
}

func TestDayClosureCovers(t *testing.T) {
	single := DayClosure{Date: "2025-01-07"}
	assert.True(t, single.Covers("2025-01-07"))
	assert.False(t, single.Covers("2025-01-08"))

	span := DayClosure{Date: "2025-12-30", EndDate: "2026-01-02"}
	assert.True(t, span.Covers("2025-12-31"))
	assert.True(t, span.Covers("2026-01-02"))
	assert.False(t, span.Covers("2026-01-03"))
	assert.False(t, span.Covers("2025-12-29"))
}

func TestHoldActiveAt(t *testing.T) {
	now := time.Date(2025, 1, 7, 10, 0, 0, 0, time.UTC)
	h := &Hold{Status: HoldActive, ExpiresAt: now.Add(time.Minute)}
	assert.True(t, h.ActiveAt(now))
	assert.False(t, h.ActiveAt(now.Add(time.Minute)))

	h.Status = HoldReleased
	assert.False(t, h.ActiveAt(now))
}

func TestOverlaps(t *testing.T) {
	base := time.Date(2025, 1, 7, 10, 0, 0, 0, time.UTC)
	at := func(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }

	assert.True(t, Overlaps(at(0), at(45), at(30), at(75)))
	assert.False(t, Overlaps(at(0), at(45), at(45), at(90)), "touching windows do not overlap")
	assert.True(t, Overlaps(at(0), at(120), at(30), at(40)))
	assert.False(t, Overlaps(at(60), at(90), at(0), at(60)))
}
