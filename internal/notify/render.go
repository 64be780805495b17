// Package notify renders the human-readable email bodies for urgent
// alerts, failure reports, and daily digests.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/blue-raster/workforce-bridge/internal/codes"
	"github.com/blue-raster/workforce-bridge/internal/timeutil"
)

// Header templates. The count is interpolated.
const (
	UrgentHeader = "%d High or Critical priority assignments were created in the past hour.\n"
	DigestHeader = "%d assignments total were created today.\n"
	ErrorHeader  = "Could not upload assignments:\n"
)

// Record is one assignment-like record to render. Location is always
// rendered; the remaining slots are trailers included only when present.
type Record struct {
	Location    string
	Type        *int
	Description *string
	Priority    *int
	DueDateMS   *int64
}

// Renderer formats records through the configured lookup tables and
// display time zone.
type Renderer struct {
	priority *codes.Lookup
	types    *codes.Lookup
	zone     *time.Location
}

// NewRenderer creates a Renderer. Either lookup may be nil when the
// corresponding trailer can never occur (the digest query, for example,
// returns no type field).
func NewRenderer(priority, types *codes.Lookup, zone *time.Location) *Renderer {
	return &Renderer{priority: priority, types: types, zone: zone}
}

// Render produces one string per record. The trailer order is fixed
// (type, description, priority, due date) regardless of which subset is
// present on any given record.
func (r *Renderer) Render(records []Record) ([]string, error) {
	out := make([]string, 0, len(records))
	for i, rec := range records {
		s, err := r.renderOne(rec)
		if err != nil {
			return nil, eris.Wrapf(err, "notify: render record %d", i)
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *Renderer) renderOne(rec Record) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "\tLocation: %s", rec.Location)

	if rec.Type != nil {
		if r.types == nil {
			return "", eris.New("notify: no assignment type lookup configured")
		}
		label, err := r.types.Label(*rec.Type)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "\n\t\t%s", label)
	}

	if rec.Description != nil {
		fmt.Fprintf(&b, "\n\t\t%s", *rec.Description)
	}

	if rec.Priority != nil {
		if r.priority == nil {
			return "", eris.New("notify: no priority lookup configured")
		}
		label, err := r.priority.Label(*rec.Priority)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "\n\t\t%s priority", label)
	}

	if rec.DueDateMS != nil {
		due, err := timeutil.DisplayTime(*rec.DueDateMS, r.zone)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "\n\t\tDue %s", due)
	}

	return b.String(), nil
}

// UrgentBody assembles the urgent-alert email body.
func (r *Renderer) UrgentBody(records []Record) (string, error) {
	lines, err := r.Render(records)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(UrgentHeader, len(records)) + strings.Join(lines, "\n"), nil
}

// DigestBody assembles the daily digest email body.
func (r *Renderer) DigestBody(records []Record) (string, error) {
	lines, err := r.Render(records)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(DigestHeader, len(records)) + strings.Join(lines, "\n"), nil
}

// FailureBody assembles a failure report, one "<identifier>: <error>" line
// per failed upload, in the submitted batch order.
func FailureBody(lines []string) string {
	return ErrorHeader + strings.Join(lines, "\n")
}
