// Package runlog persists run history and the window checkpoint that
// closes polling gaps left by missed or off-cadence invocations.
package runlog

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// Run statuses.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Run is one polling cycle's history entry.
type Run struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	WindowStart time.Time  `json:"window_start"`
	WindowEnd   time.Time  `json:"window_end"`
	Records     int        `json:"records"`
	Uploaded    int        `json:"uploaded"`
	Failed      int        `json:"failed"`
	Skipped     int        `json:"skipped"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Result summarizes a completed cycle.
type Result struct {
	Records  int
	Uploaded int
	Failed   int
	Skipped  int
}

// Store persists runs and the checkpoint.
type Store interface {
	// Migrate creates or updates the schema.
	Migrate(ctx context.Context) error

	// StartRun records the beginning of a cycle for the given window.
	StartRun(ctx context.Context, windowStart, windowEnd time.Time) (*Run, error)

	// CompleteRun marks a cycle successful and advances the checkpoint
	// to the cycle's window end in the same transaction, so a crash
	// between the two cannot strand the boundary.
	CompleteRun(ctx context.Context, id string, res Result) error

	// FailRun marks a cycle failed. The checkpoint does not move; the
	// next cycle re-covers the window.
	FailRun(ctx context.Context, id string, runErr error) error

	// Checkpoint returns the last successfully processed window end,
	// or nil when no cycle has completed yet.
	Checkpoint(ctx context.Context) (*time.Time, error)

	// RecentRuns returns up to limit runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]Run, error)

	// Close releases the underlying connections.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver      string
	Path        string
	DatabaseURL string
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.Path)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("runlog: unknown driver %q (valid: sqlite, postgres)", cfg.Driver)
	}
}
