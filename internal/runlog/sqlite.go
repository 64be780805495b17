package runlog

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "runlog: sqlite exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'running',
	window_start DATETIME NOT NULL,
	window_end   DATETIME NOT NULL,
	records      INTEGER NOT NULL DEFAULT 0,
	uploaded     INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	skipped      INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS checkpoint (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	window_end DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "runlog: sqlite migrate")
	}
	return nil
}

// StartRun records the beginning of a cycle.
func (s *SQLiteStore) StartRun(ctx context.Context, windowStart, windowEnd time.Time) (*Run, error) {
	run := &Run{
		ID:          uuid.NewString(),
		Status:      StatusRunning,
		WindowStart: windowStart.UTC(),
		WindowEnd:   windowEnd.UTC(),
		StartedAt:   time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, window_start, window_end, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Status, run.WindowStart, run.WindowEnd, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: sqlite start run")
	}
	return run, nil
}

// CompleteRun marks a run successful and advances the checkpoint
// atomically.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, res Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "runlog: sqlite begin")
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, records = ?, uploaded = ?, failed = ?, skipped = ?,
		 completed_at = datetime('now') WHERE id = ?`,
		StatusComplete, res.Records, res.Uploaded, res.Failed, res.Skipped, id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: sqlite complete run %s", id)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return eris.Errorf("runlog: unknown run %s", id)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO checkpoint (id, window_end)
		 SELECT 1, window_end FROM runs WHERE id = ?
		 ON CONFLICT (id) DO UPDATE SET window_end = excluded.window_end
		 WHERE excluded.window_end > checkpoint.window_end`,
		id,
	)
	if err != nil {
		return eris.Wrap(err, "runlog: sqlite advance checkpoint")
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "runlog: sqlite commit")
	}
	return nil
}

// FailRun marks a run failed without moving the checkpoint.
func (s *SQLiteStore) FailRun(ctx context.Context, id string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, completed_at = datetime('now') WHERE id = ?`,
		StatusFailed, msg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: sqlite fail run %s", id)
	}
	return nil
}

// Checkpoint returns the last successfully processed window end.
func (s *SQLiteStore) Checkpoint(ctx context.Context) (*time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx, `SELECT window_end FROM checkpoint WHERE id = 1`).Scan(&t)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "runlog: sqlite checkpoint")
	}
	t = t.UTC()
	return &t, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, window_start, window_end, records, uploaded, failed, skipped,
		        COALESCE(error, ''), started_at, completed_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: sqlite recent runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		var r Run
		var completed sql.NullTime
		if err := rows.Scan(
			&r.ID, &r.Status, &r.WindowStart, &r.WindowEnd,
			&r.Records, &r.Uploaded, &r.Failed, &r.Skipped,
			&r.Error, &r.StartedAt, &completed,
		); err != nil {
			return nil, eris.Wrap(err, "runlog: sqlite scan run")
		}
		if completed.Valid {
			t := completed.Time.UTC()
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "runlog: sqlite iterate runs")
	}
	return runs, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
