package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func newMockStore(t *testing.T, logger *zap.Logger) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing()
	s, err := New(context.Background(), mockPool, logger)
	require.NoError(t, err)
	return mockPool, s
}

func sampleSummary() *schemas.RunSummary {
	loc := time.FixedZone("CEST", 2*60*60)
	started := time.Date(2024, 5, 1, 14, 0, 0, 0, loc)
	return &schemas.RunSummary{
		RunID:     uuid.NewString(),
		Name:      "checkout",
		BaseURL:   "https://shop.test",
		Timestamp: started.UTC(),
		Success:   false,
		Steps: []schemas.StepOutcome{
			{Index: 0, Step: schemas.Step{Action: schemas.Navigate{Path: "/"}}, Success: true, StartedAt: started, DurationMS: 80},
			{Index: 1, Step: schemas.Step{Action: schemas.Click{Selector: "#buy"}}, Success: false, Error: "boom", StartedAt: started, DurationMS: 900},
		},
		Effective: schemas.RawSignals{
			HTTPErrors: []schemas.HTTPError{{URL: "https://shop.test/api", Status: 502, ObservedAt: started}},
		},
	}
}

func TestNewStore(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	pingErr := errors.New("database unavailable")
	mockPool.ExpectPing().WillReturnError(pingErr)

	_, err = New(context.Background(), mockPool, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestOpen_InvalidURL(t *testing.T) {
	_, _, err := Open(context.Background(), "postgres://%zz", zap.NewNop())
	assert.ErrorContains(t, err, "unable to parse PGX pool config")
}

func TestEnsureSchema(t *testing.T) {
	mockPool, s := newMockStore(t, zap.NewNop())
	mockPool.ExpectExec("CREATE TABLE IF NOT EXISTS runs").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSaveRun(t *testing.T) {
	ctx := context.Background()

	t.Run("should persist run, steps and signals in one transaction", func(t *testing.T) {
		observedZapCore, observedLogs := observer.New(zapcore.ErrorLevel)
		mockPool, s := newMockStore(t, zap.New(observedZapCore))
		summary := sampleSummary()

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(summary.RunID, "checkout", "https://shop.test", summary.Timestamp, false, 1, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"run_steps"}, stepColumns).WillReturnResult(2)
		mockPool.ExpectCopyFrom(pgx.Identifier{"run_signals"}, signalColumns).WillReturnResult(1)
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, s.SaveRun(ctx, summary))
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Empty(t, observedLogs.All(), "Expected no errors logged on successful commit")
	})

	t.Run("should skip copies when there is nothing to copy", func(t *testing.T) {
		mockPool, s := newMockStore(t, zap.NewNop())
		summary := &schemas.RunSummary{RunID: "empty", Success: true}

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs("empty", "", "", pgxmock.AnyArg(), true, 0, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, s.SaveRun(ctx, summary))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should handle transaction begin failure", func(t *testing.T) {
		mockPool, s := newMockStore(t, zap.NewNop())

		beginErr := errors.New("cannot begin tx")
		mockPool.ExpectBegin().WillReturnError(beginErr)

		err := s.SaveRun(ctx, sampleSummary())
		assert.ErrorIs(t, err, beginErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should rollback if copying steps fails", func(t *testing.T) {
		mockPool, s := newMockStore(t, zap.NewNop())
		copyErr := errors.New("copy from failed")

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"run_steps"}, stepColumns).WillReturnError(copyErr)
		mockPool.ExpectRollback()

		err := s.SaveRun(ctx, sampleSummary())
		assert.ErrorIs(t, err, copyErr)
		assert.Contains(t, err.Error(), "failed to copy run steps")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should report a short copy", func(t *testing.T) {
		mockPool, s := newMockStore(t, zap.NewNop())

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"run_steps"}, stepColumns).WillReturnResult(1)
		mockPool.ExpectRollback()

		err := s.SaveRun(ctx, sampleSummary())
		assert.ErrorContains(t, err, "mismatch in copied steps count: expected 2, got 1")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should log a failed rollback", func(t *testing.T) {
		observedZapCore, observedLogs := observer.New(zapcore.ErrorLevel)
		mockPool, s := newMockStore(t, zap.New(observedZapCore))
		insertErr := errors.New("duplicate key")

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(insertErr)
		mockPool.ExpectRollback().WillReturnError(errors.New("connection reset"))

		err := s.SaveRun(ctx, sampleSummary())
		assert.ErrorIs(t, err, insertErr)
		require.Equal(t, 1, observedLogs.Len())
		assert.Equal(t, "Failed to rollback transaction", observedLogs.All()[0].Message)
	})

	t.Run("should reject a nil summary", func(t *testing.T) {
		mockPool, s := newMockStore(t, zap.NewNop())
		assert.Error(t, s.SaveRun(ctx, nil))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestSignalRows(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := signalRows(&schemas.RunSummary{
		RunID: "r1",
		Effective: schemas.RawSignals{
			ConsoleErrors:   []schemas.ConsoleError{{Text: "x is undefined", Location: "app.js:3:1", ObservedAt: ts}},
			PageErrors:      []schemas.PageError{{Message: "TypeError", ObservedAt: ts}},
			HTTPErrors:      []schemas.HTTPError{{URL: "/a", Status: 404, ObservedAt: ts}},
			RequestFailures: []schemas.RequestFailure{{URL: "/b", Method: "POST", Failure: "net::ERR_FAILED", ObservedAt: ts}},
		},
	})
	require.Len(t, rows, 4)
	assert.Equal(t, []interface{}{"r1", "consoleError", "app.js:3:1", 0, "x is undefined", ts}, rows[0])
	assert.Equal(t, []interface{}{"r1", "pageError", "", 0, "TypeError", ts}, rows[1])
	assert.Equal(t, []interface{}{"r1", "httpError", "/a", 404, "404", ts}, rows[2])
	assert.Equal(t, []interface{}{"r1", "requestFailure", "/b", 0, "POST net::ERR_FAILED", ts}, rows[3])
}

func TestRecentRuns(t *testing.T) {
	ctx := context.Background()

	t.Run("should retrieve runs newest first", func(t *testing.T) {
		mockPool, s := newMockStore(t, zap.NewNop())
		now := time.Now().UTC()

		columns := []string{"id", "name", "base_url", "started_at", "success", "failed_steps"}
		rows := pgxmock.NewRows(columns).
			AddRow("r2", "checkout", "https://shop.test", now, true, 0).
			AddRow("r1", "checkout", "https://shop.test", now.Add(-time.Hour), false, 2)

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlRecentRuns)).
			WithArgs("checkout", 20).
			WillReturnRows(rows)

		records, err := s.RecentRuns(ctx, "checkout", 0)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "r2", records[0].ID)
		assert.True(t, records[0].Success)
		assert.Equal(t, 2, records[1].FailedSteps)
		assert.True(t, records[0].StartedAt.Equal(now))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should wrap query errors", func(t *testing.T) {
		mockPool, s := newMockStore(t, zap.NewNop())
		queryErr := errors.New("relation does not exist")

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlRecentRuns)).
			WithArgs("", 5).
			WillReturnError(queryErr)

		_, err := s.RecentRuns(ctx, "", 5)
		assert.ErrorIs(t, err, queryErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
