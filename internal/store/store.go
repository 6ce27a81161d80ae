// Package store keeps a Postgres history of finished runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists run summaries. It implements schemas.RunStore.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.RunStore = (*Store)(nil)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS runs (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    base_url      TEXT NOT NULL,
    started_at    TIMESTAMPTZ NOT NULL,
    success       BOOLEAN NOT NULL,
    failed_steps  INTEGER NOT NULL,
    summary       JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS run_steps (
    run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    idx              INTEGER NOT NULL,
    action           TEXT NOT NULL,
    description      TEXT NOT NULL,
    success          BOOLEAN NOT NULL,
    error            TEXT NOT NULL,
    note             TEXT NOT NULL,
    screenshot_path  TEXT NOT NULL,
    started_at       TIMESTAMPTZ NOT NULL,
    duration_ms      BIGINT NOT NULL,
    PRIMARY KEY (run_id, idx)
);
CREATE TABLE IF NOT EXISTS run_signals (
    run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    category     TEXT NOT NULL,
    url          TEXT NOT NULL,
    status       INTEGER NOT NULL,
    message      TEXT NOT NULL,
    observed_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_name_started_at_idx ON runs (name, started_at DESC);
`

const sqlInsertRun = `
        INSERT INTO runs (id, name, base_url, started_at, success, failed_steps, summary)
        VALUES ($1, $2, $3, $4, $5, $6, $7);
    `

const sqlRecentRuns = `
        SELECT id, name, base_url, started_at, success, failed_steps
        FROM runs
        WHERE ($1 = '' OR name = $1)
        ORDER BY started_at DESC
        LIMIT $2;
    `

var (
	stepColumns   = []string{"run_id", "idx", "action", "description", "success", "error", "note", "screenshot_path", "started_at", "duration_ms"}
	signalColumns = []string{"run_id", "category", "url", "status", "message", "observed_at"}
)

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// Open connects a pgx pool to url and wraps it in a Store. The returned
// cleanup closes the pool.
func Open(ctx context.Context, url string, logger *zap.Logger) (*Store, func(), error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to parse PGX pool config: %w", err)
	}
	// A run writes once; a small pool is plenty.
	poolConfig.MaxConns = 4
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create PGX connection pool: %w", err)
	}

	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

// EnsureSchema creates the history tables when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to create run history schema: %w", err)
	}
	return nil
}

// SaveRun writes the run, its steps and its effective signals in one
// transaction.
func (s *Store) SaveRun(ctx context.Context, summary *schemas.RunSummary) error {
	if summary == nil {
		return errors.New("nil run summary")
	}
	doc, err := json.ConfigCompatibleWithStandardLibrary.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, sqlInsertRun,
		summary.RunID, summary.Name, summary.BaseURL, summary.Timestamp.UTC(),
		summary.Success, summary.FailedSteps(), string(doc),
	); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", summary.RunID, err)
	}

	if len(summary.Steps) > 0 {
		if err := s.persistSteps(ctx, tx, summary); err != nil {
			return err
		}
	}

	if rows := signalRows(summary); len(rows) > 0 {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"run_signals"}, signalColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to copy run signals: %w", err)
		}
		if int(n) != len(rows) {
			return fmt.Errorf("mismatch in copied signals count: expected %d, got %d", len(rows), n)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Run persisted.", zap.String("run_id", summary.RunID), zap.Int("steps", len(summary.Steps)))
	return nil
}

func (s *Store) persistSteps(ctx context.Context, tx pgx.Tx, summary *schemas.RunSummary) error {
	rows := make([][]interface{}, len(summary.Steps))
	for i, o := range summary.Steps {
		rows[i] = []interface{}{
			summary.RunID, o.Index, string(o.Step.Kind()), o.Step.String(),
			o.Success, o.Error, o.Note, o.ScreenshotPath,
			o.StartedAt.UTC(), o.DurationMS,
		}
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"run_steps"}, stepColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy run steps: %w", err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("mismatch in copied steps count: expected %d, got %d", len(rows), n)
	}
	return nil
}

// signalRows flattens the effective signals into run_signals rows.
func signalRows(summary *schemas.RunSummary) [][]interface{} {
	id := summary.RunID
	eff := summary.Effective
	rows := make([][]interface{}, 0, eff.Total())
	for _, e := range eff.ConsoleErrors {
		rows = append(rows, []interface{}{id, string(schemas.CategoryConsoleError), e.Location, 0, e.Text, e.ObservedAt.UTC()})
	}
	for _, e := range eff.PageErrors {
		rows = append(rows, []interface{}{id, string(schemas.CategoryPageError), "", 0, e.Message, e.ObservedAt.UTC()})
	}
	for _, e := range eff.HTTPErrors {
		msg := e.StatusText
		if msg == "" {
			msg = strconv.Itoa(e.Status)
		}
		rows = append(rows, []interface{}{id, string(schemas.CategoryHTTPError), e.URL, e.Status, msg, e.ObservedAt.UTC()})
	}
	for _, e := range eff.RequestFailures {
		rows = append(rows, []interface{}{id, string(schemas.CategoryRequestFailure), e.URL, 0, e.Method + " " + e.Failure, e.ObservedAt.UTC()})
	}
	return rows
}

// RunRecord is one row of run history.
type RunRecord struct {
	ID          string
	Name        string
	BaseURL     string
	StartedAt   time.Time
	Success     bool
	FailedSteps int
}

// RecentRuns returns the newest runs, optionally filtered by scenario name.
func (s *Store) RecentRuns(ctx context.Context, name string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, sqlRecentRuns, name, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.BaseURL, &r.StartedAt, &r.Success, &r.FailedSteps); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}
