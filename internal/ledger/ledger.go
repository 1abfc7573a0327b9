// Package ledger implements meta.ingestion_runs: begin/complete/
// last-successful-completion/stale-sweep, per spec.md §4.1. Grounded on
// original_source's create_ingestion_run / complete_ingestion_run /
// _get_last_ingestion_timestamp (scripts/database/bronze/tdx/001_ingest_tdx_departments.py).
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lsats/databridge/internal/model"
)

// Ledger wraps a *sqlx.DB (or, in tests, anything satisfying this narrow
// interface) to record run lifecycle.
type Ledger struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Ledger {
	return &Ledger{db: db}
}

// Run mirrors one meta.ingestion_runs row.
type Run struct {
	RunID            string     `db:"run_id"`
	SourceSystem     string     `db:"source_system"`
	EntityType       string     `db:"entity_type"`
	StartedAt        time.Time  `db:"started_at"`
	CompletedAt      *time.Time `db:"completed_at"`
	Status           string     `db:"status"`
	RecordsProcessed int        `db:"records_processed"`
	RecordsCreated   int        `db:"records_created"`
	RecordsUpdated   int        `db:"records_updated"`
	ErrorMessage     *string    `db:"error_message"`
	Metadata         json.RawMessage `db:"metadata"`
}

// SilverTransformationSource is the sentinel source_system value used by
// Silver transformer runs (spec.md §3).
const SilverTransformationSource = "silver_transformation"

// Begin sweeps any prior `running` row for (source, entity) to `failed`
// (message "stale — process terminated"), then inserts a new running row
// with a generated UUID, all in one transaction (spec.md §4.1, §9
// "incremental watermark" note: the watermark lookup in the caller should
// happen inside this same transaction boundary to avoid a race between
// near-simultaneous starts — callers that need the watermark call
// LastSuccessfulCompletion before Begin and accept the cheap-duplicate-work
// tradeoff the spec explicitly sanctions as an alternative).
func (l *Ledger) Begin(ctx context.Context, source, entity string, metadata any) (runID string, err error) {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("marshaling run metadata: %w", err)
	}

	runID = uuid.NewString()
	err = l.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE meta.ingestion_runs
			SET status = 'failed', completed_at = now(), error_message = 'stale — process terminated'
			WHERE source_system = $1 AND entity_type = $2 AND status = 'running'`,
			source, entity); err != nil {
			return fmt.Errorf("sweeping stale runs: %w", err)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO meta.ingestion_runs
				(run_id, source_system, entity_type, started_at, status, metadata)
			VALUES ($1, $2, $3, now(), 'running', $4)`,
			runID, source, entity, metaJSON)
		if err != nil {
			return fmt.Errorf("inserting new run: %w", err)
		}
		return nil
	})
	return runID, err
}

// Complete sets completed_at and status (failed iff errMsg is non-empty),
// plus the final counts (spec.md §4.1). Ledger writes are best-effort: a
// failure here is returned to the caller to log, but must never roll back
// work already committed by the job itself.
func (l *Ledger) Complete(ctx context.Context, runID string, stats model.Stats, errMsg string) error {
	status := "completed"
	var errPtr *string
	if errMsg != "" {
		status = "failed"
		errPtr = &errMsg
	}

	_, err := l.db.ExecContext(ctx, `
		UPDATE meta.ingestion_runs
		SET completed_at = now(), status = $2,
		    records_processed = $3, records_created = $4, records_updated = $5,
		    error_message = $6
		WHERE run_id = $1`,
		runID, status, stats.Processed, stats.Created, stats.Updated, errPtr)
	if err != nil {
		return fmt.Errorf("completing run %s: %w", runID, err)
	}
	return nil
}

// LastSuccessfulCompletion returns MAX(completed_at) for completed runs of
// (source, entity), or nil if there is no prior successful run (first run).
func (l *Ledger) LastSuccessfulCompletion(ctx context.Context, source, entity string) (*time.Time, error) {
	var completed *time.Time
	err := l.db.GetContext(ctx, &completed, `
		SELECT MAX(completed_at) FROM meta.ingestion_runs
		WHERE source_system = $1 AND entity_type = $2 AND status = 'completed'`,
		source, entity)
	if err != nil {
		return nil, fmt.Errorf("loading last successful completion for %s/%s: %w", source, entity, err)
	}
	return completed, nil
}

// SweepStale marks any `running` row older than staleAfter as `failed`,
// independent of Begin (SPEC_FULL.md §5.1). No subcommand calls it.
func (l *Ledger) SweepStale(ctx context.Context, staleAfter time.Duration) (int64, error) {
	res, err := l.db.ExecContext(ctx, `
		UPDATE meta.ingestion_runs
		SET status = 'failed', completed_at = now(), error_message = 'stale — process terminated'
		WHERE status = 'running' AND started_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int(staleAfter.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("sweeping stale runs: %w", err)
	}
	return res.RowsAffected()
}

// Status returns the most recent run row for (source, entity), used by
// `databridge status` (SPEC_FULL.md §5.1).
func (l *Ledger) Status(ctx context.Context, source, entity string) (*Run, error) {
	var run Run
	err := l.db.GetContext(ctx, &run, `
		SELECT run_id, source_system, entity_type, started_at, completed_at, status,
		       records_processed, records_created, records_updated, error_message, metadata
		FROM meta.ingestion_runs
		WHERE source_system = $1 AND entity_type = $2
		ORDER BY started_at DESC
		LIMIT 1`,
		source, entity)
	if err != nil {
		return nil, fmt.Errorf("loading status for %s/%s: %w", source, entity, err)
	}
	return &run, nil
}

// RecentChanges returns every meta.ingestion_runs row started within the
// last `days` days, newest first, for `databridge status --show-recent-
// changes DAYS` (SPEC_FULL.md §5.1, grounded on original_source's
// get_recent_department_changes).
func (l *Ledger) RecentChanges(ctx context.Context, days int) ([]Run, error) {
	var runs []Run
	err := l.db.SelectContext(ctx, &runs, `
		SELECT run_id, source_system, entity_type, started_at, completed_at, status,
		       records_processed, records_created, records_updated, error_message, metadata
		FROM meta.ingestion_runs
		WHERE started_at >= now() - ($1 || ' days')::interval
		ORDER BY started_at DESC`,
		days)
	if err != nil {
		return nil, fmt.Errorf("loading recent changes for last %d days: %w", days, err)
	}
	return runs, nil
}

func (l *Ledger) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning ledger transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
