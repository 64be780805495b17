// Package timeutil normalizes feature-service timestamps for display and
// computes the lookback windows that bound each polling cycle's query.
package timeutil

import (
	"time"

	"github.com/rotisserie/eris"
)

// ErrInvalidTimestamp marks a source timestamp that cannot be interpreted
// as milliseconds since the Unix epoch.
var ErrInvalidTimestamp = eris.New("timeutil: invalid timestamp")

const (
	// DisplayLayout renders a local time without leading zeros,
	// e.g. "3:07 PM, 4/9/2026".
	DisplayLayout = "3:04 PM, 1/2/2006"

	// QueryLayout is the timestamp format feature-service where clauses
	// expect inside date '...' literals.
	QueryLayout = "2006-01-02 15:04:05"
)

// DefaultZone is the target display time zone. DST rules are applied per
// the actual date of each timestamp.
const DefaultZone = "America/New_York"

// LoadZone resolves an IANA time zone name.
func LoadZone(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, eris.Wrapf(err, "timeutil: load zone %q", name)
	}
	return loc, nil
}

// DisplayTime converts milliseconds since the Unix epoch (UTC) into the
// display format in the given zone. A nil loc falls back to UTC.
func DisplayTime(ms int64, loc *time.Location) (string, error) {
	if ms < 0 {
		return "", eris.Wrapf(ErrInvalidTimestamp, "%d ms", ms)
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(ms).In(loc).Format(DisplayLayout), nil
}

// Floor truncates t (in UTC) to the nearest earlier boundary of the given
// interval, dropping seconds and sub-seconds.
func Floor(t time.Time, interval time.Duration) time.Time {
	if interval <= 0 {
		interval = time.Minute
	}
	return t.UTC().Truncate(interval)
}

// Window computes the [start, end] query bounds for one polling cycle:
// "now" floored to the interval grid, minus the lookback. When the process
// is invoked exactly on the interval cadence, successive windows are
// contiguous and non-overlapping; an off-cadence or missed invocation can
// leave a gap, which the run-log checkpoint closes (see internal/runlog).
func Window(now time.Time, interval, lookback time.Duration) (start, end time.Time) {
	end = Floor(now, interval)
	return end.Add(-lookback), end
}

// QueryString formats an instant for interpolation into a feature-service
// where clause.
func QueryString(t time.Time) string {
	return t.UTC().Format(QueryLayout)
}
