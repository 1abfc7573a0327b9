package ingest

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsats/databridge/internal/hashing"
	"github.com/lsats/databridge/internal/ledger"
	"github.com/lsats/databridge/internal/model"
	"github.com/lsats/databridge/internal/sourceclient"
	"github.com/lsats/databridge/internal/storage"
)

func newTestEngine(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = rawDB.Close() })

	sqlxDB := sqlx.NewDb(rawDB, "postgres")
	db := &storage.DB{DB: sqlxDB}
	l := ledger.New(sqlxDB)
	return New(db, l), mock
}

func TestIngestSkipsUnchangedAndInsertsNew(t *testing.T) {
	eng, mock := newTestEngine(t)

	// LastSuccessfulCompletion (full_sync=true path skips this) - we use FullSync.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE meta.ingestion_runs")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO meta.ingestion_runs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	unchanged := sourceclient.Record{"ID": "unchanged-1", "Name": "Same"}
	unchangedHash := hashing.FieldSet(unchanged, []string{"ID", "Name"})

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT ON (external_id)")).
		WillReturnRows(sqlmock.NewRows([]string{"external_id", "content_hash_basic"}).
			AddRow("unchanged-1", unchangedHash))

	fake := sourceclient.NewFakeSource()
	fake.ListRecords = []sourceclient.Record{
		unchanged,
		{"ID": "new-1", "Name": "New"},
	}

	def := EntityDef{
		EntityType:      model.EntityDepartment,
		SourceSystem:    model.SourceTDX,
		Source:          fake,
		KeyField:        "ID",
		BasicHashFields: []string{"ID", "Name"},
	}

	// The unchanged record's hash matches the fetched existing hash above,
	// so only the new record triggers an insert transaction.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO bronze.raw_entities")).
		WillReturnRows(sqlmock.NewRows([]string{"raw_id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE meta.ingestion_runs")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	stats, err := eng.Ingest(context.Background(), def, model.JobOptions{FullSync: true})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 1, stats.SkippedUnchanged)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestDryRunWritesNothing(t *testing.T) {
	eng, mock := newTestEngine(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE meta.ingestion_runs")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO meta.ingestion_runs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT ON (external_id)")).
		WillReturnRows(sqlmock.NewRows([]string{"external_id", "content_hash_basic"}))

	fake := sourceclient.NewFakeSource()
	fake.ListRecords = []sourceclient.Record{{"ID": "n1", "Name": "New"}}

	def := EntityDef{
		EntityType:      model.EntityDepartment,
		SourceSystem:    model.SourceTDX,
		Source:          fake,
		KeyField:        "ID",
		BasicHashFields: []string{"ID", "Name"},
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE meta.ingestion_runs")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	stats, err := eng.Ingest(context.Background(), def, model.JobOptions{FullSync: true, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestRecordMissingKeyFieldIsCountedAsError(t *testing.T) {
	eng, mock := newTestEngine(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE meta.ingestion_runs")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO meta.ingestion_runs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT ON (external_id)")).
		WillReturnRows(sqlmock.NewRows([]string{"external_id", "content_hash_basic"}))

	fake := sourceclient.NewFakeSource()
	fake.ListRecords = []sourceclient.Record{{"Name": "no id field"}}

	def := EntityDef{
		EntityType:      model.EntityDepartment,
		SourceSystem:    model.SourceTDX,
		Source:          fake,
		KeyField:        "ID",
		BasicHashFields: []string{"ID", "Name"},
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE meta.ingestion_runs")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	stats, err := eng.Ingest(context.Background(), def, model.JobOptions{FullSync: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Errors)
	require.NoError(t, mock.ExpectationsWereMet())
}
