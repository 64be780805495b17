package runlog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies
// it in tests.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: postgres connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "runlog: postgres ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS bridge_runs (
	id           UUID PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'running',
	window_start TIMESTAMPTZ NOT NULL,
	window_end   TIMESTAMPTZ NOT NULL,
	records      INT NOT NULL DEFAULT 0,
	uploaded     INT NOT NULL DEFAULT 0,
	failed       INT NOT NULL DEFAULT 0,
	skipped      INT NOT NULL DEFAULT 0,
	error        TEXT,
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS bridge_checkpoint (
	id         INT PRIMARY KEY CHECK (id = 1),
	window_end TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bridge_runs_started_at ON bridge_runs(started_at);
`

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "runlog: postgres migrate")
	}
	return nil
}

// StartRun records the beginning of a cycle.
func (s *PostgresStore) StartRun(ctx context.Context, windowStart, windowEnd time.Time) (*Run, error) {
	run := &Run{
		ID:          uuid.NewString(),
		Status:      StatusRunning,
		WindowStart: windowStart.UTC(),
		WindowEnd:   windowEnd.UTC(),
		StartedAt:   time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO bridge_runs (id, status, window_start, window_end, started_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.Status, run.WindowStart, run.WindowEnd, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: postgres start run")
	}
	return run, nil
}

// CompleteRun marks a run successful and advances the checkpoint in one
// transaction.
func (s *PostgresStore) CompleteRun(ctx context.Context, id string, res Result) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "runlog: postgres begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`UPDATE bridge_runs SET status = $1, records = $2, uploaded = $3, failed = $4,
		 skipped = $5, completed_at = now() WHERE id = $6`,
		StatusComplete, res.Records, res.Uploaded, res.Failed, res.Skipped, id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: postgres complete run %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("runlog: unknown run %s", id)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO bridge_checkpoint (id, window_end)
		 SELECT 1, window_end FROM bridge_runs WHERE id = $1
		 ON CONFLICT (id) DO UPDATE SET window_end = EXCLUDED.window_end
		 WHERE EXCLUDED.window_end > bridge_checkpoint.window_end`,
		id,
	)
	if err != nil {
		return eris.Wrap(err, "runlog: postgres advance checkpoint")
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "runlog: postgres commit")
	}
	return nil
}

// FailRun marks a run failed without moving the checkpoint.
func (s *PostgresStore) FailRun(ctx context.Context, id string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE bridge_runs SET status = $1, error = $2, completed_at = now() WHERE id = $3`,
		StatusFailed, msg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: postgres fail run %s", id)
	}
	return nil
}

// Checkpoint returns the last successfully processed window end.
func (s *PostgresStore) Checkpoint(ctx context.Context) (*time.Time, error) {
	var t time.Time
	err := s.pool.QueryRow(ctx, `SELECT window_end FROM bridge_checkpoint WHERE id = 1`).Scan(&t)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "runlog: postgres checkpoint")
	}
	t = t.UTC()
	return &t, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *PostgresStore) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, window_start, window_end, records, uploaded, failed, skipped,
		        COALESCE(error, ''), started_at, completed_at
		 FROM bridge_runs ORDER BY started_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: postgres recent runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var completed *time.Time
		if err := rows.Scan(
			&r.ID, &r.Status, &r.WindowStart, &r.WindowEnd,
			&r.Records, &r.Uploaded, &r.Failed, &r.Skipped,
			&r.Error, &r.StartedAt, &completed,
		); err != nil {
			return nil, eris.Wrap(err, "runlog: postgres scan run")
		}
		r.CompletedAt = completed
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "runlog: postgres iterate runs")
	}
	return runs, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
