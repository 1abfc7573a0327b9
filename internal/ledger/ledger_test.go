package ledger

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsats/databridge/internal/model"
)

func newMockLedger(t *testing.T) (*Ledger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	sqlxDB := sqlx.NewDb(db, "postgres")
	return New(sqlxDB), mock
}

func TestBeginSweepsStaleThenInserts(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE meta.ingestion_runs")).
		WithArgs("tdx", "department").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO meta.ingestion_runs")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	runID, err := l.Begin(context.Background(), "tdx", "department", map[string]any{"full_sync": false})
	require.NoError(t, err)
	assert.NotEmpty(t, runID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginRollsBackOnInsertFailure(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE meta.ingestion_runs")).
		WithArgs("tdx", "department").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO meta.ingestion_runs")).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := l.Begin(context.Background(), "tdx", "department", nil)
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteMarksFailedWhenErrMsgSet(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE meta.ingestion_runs")).
		WithArgs("run-1", "failed", 10, 0, 0, "upstream timeout").
		WillReturnResult(sqlmock.NewResult(0, 1))

	stats := model.Stats{Processed: 10}
	err := l.Complete(context.Background(), "run-1", stats, "upstream timeout")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteMarksCompletedWhenNoError(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE meta.ingestion_runs")).
		WithArgs("run-2", "completed", 5, 2, 3, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	stats := model.Stats{Processed: 5, Created: 2, Updated: 3}
	err := l.Complete(context.Background(), "run-2", stats, "")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLastSuccessfulCompletionReturnsNilOnFirstRun(t *testing.T) {
	l, mock := newMockLedger(t)

	rows := sqlmock.NewRows([]string{"max"}).AddRow(nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(completed_at)")).
		WithArgs("tdx", "department").
		WillReturnRows(rows)

	ts, err := l.LastSuccessfulCompletion(context.Background(), "tdx", "department")
	require.NoError(t, err)
	assert.Nil(t, ts)
}

func TestLastSuccessfulCompletionReturnsTimestamp(t *testing.T) {
	l, mock := newMockLedger(t)

	want := time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"max"}).AddRow(want)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(completed_at)")).
		WithArgs("tdx", "department").
		WillReturnRows(rows)

	ts, err := l.LastSuccessfulCompletion(context.Background(), "tdx", "department")
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.True(t, want.Equal(*ts))
}

func TestSweepStaleReturnsAffectedCount(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE meta.ingestion_runs")).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := l.SweepStale(context.Background(), 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
