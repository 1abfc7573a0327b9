// Package enrich implements the Bronze enricher (spec.md §4.4): for
// entities whose source exposes a thin list endpoint and a full detail
// endpoint, fetch the detail document and update Bronze in place — the
// sole legal in-place Bronze mutation. Concurrency and retry are grounded
// on the teacher's bounded-worker-pool pattern (golang.org/x/sync/semaphore)
// and its cenkalti/backoff/v4 retry usage for flaky external calls.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/semaphore"

	"github.com/lsats/databridge/internal/hashing"
	"github.com/lsats/databridge/internal/ledger"
	"github.com/lsats/databridge/internal/model"
	"github.com/lsats/databridge/internal/sourceclient"
	"github.com/lsats/databridge/internal/storage"
)

// enrichmentEntitySuffix distinguishes an enrichment run's ledger row from
// its ingestion counterpart — both share (source_system, entity_type) key
// space in meta.ingestion_runs (spec.md §3's uniqueness invariant), so
// enrichment tracks its own watermark under "<entity>_enrichment".
const enrichmentEntitySuffix = "_enrichment"

// EntityDef wires one entity's detail source and hash whitelists into the
// generic enrichment engine.
type EntityDef struct {
	EntityType   model.EntityType
	SourceSystem model.SourceSystem

	Detail sourceclient.DetailFetcher

	BasicHashFields    []string
	EnrichedHashFields []string
}

// RetryableError wraps an error the caller considers transient (5xx,
// timeout, 429) so backoff.Permanent is not applied to it.
type RetryableError struct{ Err error }

func (r *RetryableError) Error() string { return r.Err.Error() }
func (r *RetryableError) Unwrap() error { return r.Err }

// Engine runs spec.md §4.4's enrichment algorithm.
type Engine struct {
	db     *storage.DB
	ledger *ledger.Ledger
}

func New(db *storage.DB, l *ledger.Ledger) *Engine {
	return &Engine{db: db, ledger: l}
}

// Enrich fetches detail documents for Bronze rows lacking
// _content_hash_enriched and updates them in place. opts.MaxWorkers > 1
// fetches concurrently (bounded by a semaphore); opts.MaxWorkers <= 1
// serializes calls with opts.APIDelay between them, for rate-limited
// sources.
func (e *Engine) Enrich(ctx context.Context, def EntityDef, opts model.JobOptions) (model.Stats, error) {
	var stats model.Stats

	entityKey := string(def.EntityType) + enrichmentEntitySuffix
	var since *time.Time
	if !opts.FullSync {
		ts, err := e.ledger.LastSuccessfulCompletion(ctx, string(def.SourceSystem), entityKey)
		if err != nil {
			return stats, fmt.Errorf("loading enrichment watermark: %w", err)
		}
		since = ts
	}

	runID, err := e.ledger.Begin(ctx, string(def.SourceSystem), entityKey, map[string]any{
		"full_sync": opts.FullSync,
		"dry_run":   opts.DryRun,
	})
	if err != nil {
		return stats, fmt.Errorf("beginning enrich run: %w", err)
	}

	rows, err := e.db.RowsMissingEnrichedHash(ctx, def.EntityType, def.SourceSystem, since)
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, fmt.Errorf("selecting rows missing enriched hash: %w", err)
	}

	maxWorkers := opts.MaxWorkers
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	sem := semaphore.NewWeighted(int64(maxWorkers))

	results := make(chan rowResult, len(rows))
	for _, row := range rows {
		row := row
		if err := sem.Acquire(ctx, 1); err != nil {
			results <- rowResult{err: err}
			continue
		}
		go func() {
			defer sem.Release(1)
			results <- e.enrichOne(ctx, def, row, opts.DryRun)
			if maxWorkers == 1 && opts.APIDelay > 0 {
				time.Sleep(opts.APIDelay)
			}
		}()
	}
	// Results are drained sequentially here, so stats mutation never races
	// with the concurrent enrichOne calls above (they only build and return
	// a rowResult, never touch stats directly).
	for range rows {
		r := <-results
		stats.Processed++
		switch {
		case r.err != nil:
			stats.AddError(r.err.Error())
		case r.skipped:
			stats.SkippedUnchanged++
		case r.updated:
			stats.Updated++
		}
	}

	if opts.DryRun {
		if err := e.ledger.Complete(ctx, runID, model.Stats{}, ""); err != nil {
			return stats, fmt.Errorf("completing dry-run: %w", err)
		}
		return stats, nil
	}

	errMsg := ""
	if stats.Failed(opts.StopOnErrors) {
		errMsg = fmt.Sprintf("%d record error(s), stop_on_errors set", stats.Errors)
	}
	if err := e.ledger.Complete(ctx, runID, stats, errMsg); err != nil {
		return stats, fmt.Errorf("completing run: %w", err)
	}
	return stats, nil
}

// rowResult is what a single enrichOne call hands back to the sequential
// collector loop, which is the only place stats fields are mutated.
type rowResult struct {
	err     error
	skipped bool
	updated bool
}

func (e *Engine) enrichOne(ctx context.Context, def EntityDef, row model.BronzeRow, dryRun bool) rowResult {
	doc, err := row.Doc()
	if err != nil {
		return rowResult{err: fmt.Errorf("decoding bronze row %d: %w", row.RawID, err)}
	}

	var detail sourceclient.Record
	op := func() error {
		d, err := def.Detail.Detail(ctx, row.ExternalID)
		if err != nil {
			var retryable *RetryableError
			if errors.As(err, &retryable) {
				return err
			}
			return backoff.Permanent(err)
		}
		detail = d
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return rowResult{err: fmt.Errorf("fetching detail for %s: %w", row.ExternalID, err)}
	}

	for k, v := range detail {
		doc[k] = v
	}

	basicHash := hashing.FieldSet(doc, def.BasicHashFields)
	enrichedHash := hashing.FieldSet(doc, def.EnrichedHashFields)

	existingEnriched, _ := doc[model.FieldContentHashEnriched].(string)
	if existingEnriched == enrichedHash {
		return rowResult{skipped: true}
	}

	if dryRun {
		return rowResult{updated: true}
	}

	doc[model.FieldIngestionMethod] = string(model.MethodEnriched)
	doc[model.FieldContentHashBasic] = basicHash
	doc[model.FieldContentHashEnriched] = enrichedHash
	doc[model.FieldEnrichmentTimestamp] = time.Now().UTC().Format(time.RFC3339)

	enrichedData, err := json.Marshal(doc)
	if err != nil {
		return rowResult{err: fmt.Errorf("marshaling enriched doc for %s: %w", row.ExternalID, err)}
	}

	if err := e.db.UpdateBronzeEnriched(ctx, row.RawID, enrichedData); err != nil {
		return rowResult{err: fmt.Errorf("updating enriched bronze row %d: %w", row.RawID, err)}
	}
	return rowResult{updated: true}
}

// IsRetryableHTTPStatus classifies an HTTP status per spec.md §4.4:
// 5xx and 429 are retryable, other 4xx are not.
func IsRetryableHTTPStatus(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}
