package timeutil

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eastern(t *testing.T) *time.Location {
	t.Helper()
	loc, err := LoadZone(DefaultZone)
	require.NoError(t, err)
	return loc
}

func TestDisplayTime_Eastern(t *testing.T) {
	loc := eastern(t)

	tests := []struct {
		name string
		ms   int64
		want string
	}{
		// 2026-01-15 18:30:00 UTC is 1:30 PM EST (UTC-5).
		{"standard time", time.Date(2026, 1, 15, 18, 30, 0, 0, time.UTC).UnixMilli(), "1:30 PM, 1/15/2026"},
		// 2026-07-04 16:05:00 UTC is 12:05 PM EDT (UTC-4).
		{"daylight time", time.Date(2026, 7, 4, 16, 5, 0, 0, time.UTC).UnixMilli(), "12:05 PM, 7/4/2026"},
		// No leading zeros on hour, month, or day.
		{"single digit fields", time.Date(2026, 3, 2, 14, 7, 0, 0, time.UTC).UnixMilli(), "9:07 AM, 3/2/2026"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DisplayTime(tt.ms, loc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDisplayTime_Negative(t *testing.T) {
	_, err := DisplayTime(-1, eastern(t))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidTimestamp))
}

func TestDisplayTime_NilZoneFallsBackToUTC(t *testing.T) {
	got, err := DisplayTime(time.Date(2026, 5, 1, 9, 4, 0, 0, time.UTC).UnixMilli(), nil)
	require.NoError(t, err)
	assert.Equal(t, "9:04 AM, 5/1/2026", got)
}

func TestFloor_DropsSecondsAndSubMinute(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 7, 42, 123456789, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC), Floor(now, 15*time.Minute))
	assert.Equal(t, time.Date(2026, 8, 30, 10, 7, 0, 0, time.UTC), Floor(now, time.Minute))
	assert.Equal(t, time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC), Floor(now, time.Hour))
}

func TestWindow_FloorsBeforeSubtracting(t *testing.T) {
	// At a simulated now of 10:07, a 15-minute grid floors to 10:00 first;
	// the start is floor minus lookback, not 10:07 minus lookback.
	now := time.Date(2026, 8, 30, 10, 7, 0, 0, time.UTC)
	start, end := Window(now, 15*time.Minute, time.Hour)

	assert.Equal(t, time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC), end)
	assert.Equal(t, time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC), start)
}

func TestWindow_ContiguousOnCadence(t *testing.T) {
	interval := time.Hour
	first := time.Date(2026, 8, 30, 9, 0, 5, 0, time.UTC)
	second := first.Add(interval)

	_, firstEnd := Window(first, interval, interval)
	secondStart, _ := Window(second, interval, interval)
	assert.Equal(t, firstEnd, secondStart)
}

func TestQueryString(t *testing.T) {
	ts := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-08-30 09:00:00", QueryString(ts))
}
