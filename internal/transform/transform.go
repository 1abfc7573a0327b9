// Package transform implements the Silver-source transformer (spec.md
// §4.5): windowed Bronze batch-read, per-source field projection, and
// hash-gated batched upsert into silver.<source>_<entity>. Grounded on
// original_source/.../silver/001_transform_tdx_users.py's read-project-
// hash-upsert shape, generalized here into one engine driven by a
// per-(source, entity) Projector instead of one script per table.
package transform

import (
	"context"
	"fmt"
	"time"

	"github.com/lsats/databridge/internal/hashing"
	"github.com/lsats/databridge/internal/ledger"
	"github.com/lsats/databridge/internal/model"
	"github.com/lsats/databridge/internal/storage"
)

// Projector turns a Bronze row's decoded document into zero or more
// Silver-source rows (more than one only for the identity-API's
// multi-empl_rcd fan-out, spec.md §4.5.1) keyed by KeyColumn, plus the
// whitelist of fields entity_hash is computed over.
type Projector interface {
	// Table is the target silver.<source>_<entity> table name.
	Table() string
	// KeyColumn is the natural key column name (spec.md §3).
	KeyColumn() string
	// Project maps one Bronze document (plus its contributing raw_id) to
	// zero or more column->value row maps. The map MUST include KeyColumn
	// and MUST NOT include entity_hash (the engine computes and adds it).
	Project(doc map[string]any, rawID int64) ([]map[string]any, error)
	// HashFields is the whitelist entity_hash is computed over (spec.md
	// §3's "whitelisted subset of business fields").
	HashFields() []string
}

// Engine runs spec.md §4.5's algorithm for any Projector.
type Engine struct {
	db     *storage.DB
	ledger *ledger.Ledger
}

func New(db *storage.DB, l *ledger.Ledger) *Engine {
	return &Engine{db: db, ledger: l}
}

const silverTransformationSource = ledger.SilverTransformationSource

// Transform runs the read-project-hash-upsert pipeline for one
// (entityType, sourceSystem) against its Projector.
func (e *Engine) Transform(ctx context.Context, entityType model.EntityType, sourceSystem model.SourceSystem, proj Projector, opts model.JobOptions) (model.Stats, error) {
	var stats model.Stats

	entityKey := fmt.Sprintf("%s_%s", sourceSystem, entityType)
	var since *time.Time
	if !opts.FullSync {
		ts, err := e.ledger.LastSuccessfulCompletion(ctx, silverTransformationSource, entityKey)
		if err != nil {
			return stats, fmt.Errorf("loading transform watermark: %w", err)
		}
		since = ts
	}

	runID, err := e.ledger.Begin(ctx, silverTransformationSource, entityKey, map[string]any{
		"full_sync": opts.FullSync,
		"dry_run":   opts.DryRun,
	})
	if err != nil {
		return stats, fmt.Errorf("beginning transform run: %w", err)
	}

	ids, err := e.db.ExternalIDsInScope(ctx, entityType, sourceSystem, since)
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, fmt.Errorf("enumerating external ids in scope: %w", err)
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	bronzeRows, err := e.db.LatestBronzeRows(ctx, entityType, sourceSystem, ids, 1000)
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, fmt.Errorf("batch-fetching latest bronze rows: %w", err)
	}

	// Project every row before touching existing hashes, since the
	// identity-API projector can fan one Bronze row out into several
	// Silver-source rows with distinct keys.
	type projected struct {
		row map[string]any
		key string
	}
	var candidates []projected
	for _, br := range bronzeRows {
		doc, err := br.Doc()
		if err != nil {
			stats.AddError(fmt.Sprintf("decoding bronze row %d: %v", br.RawID, err))
			continue
		}
		rows, err := proj.Project(doc, br.RawID)
		if err != nil {
			stats.AddError(fmt.Sprintf("projecting bronze row %d: %v", br.RawID, err))
			continue
		}
		for _, r := range rows {
			key, _ := r[proj.KeyColumn()].(string)
			if key == "" {
				stats.AddError(fmt.Sprintf("projected row from bronze %d missing key column %q", br.RawID, proj.KeyColumn()))
				continue
			}
			candidates = append(candidates, projected{row: r, key: key})
		}
	}

	keys := make([]string, 0, len(candidates))
	for _, c := range candidates {
		keys = append(keys, c.key)
	}
	existingHashes, err := e.db.ExistingEntityHashes(ctx, proj.Table(), proj.KeyColumn(), keys)
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, fmt.Errorf("loading existing entity hashes: %w", err)
	}

	var toUpsert []map[string]any
	for _, c := range candidates {
		stats.Processed++
		hash := hashing.FieldSet(c.row, proj.HashFields())
		if existing, ok := existingHashes[c.key]; ok && existing == hash {
			stats.SkippedUnchanged++
			continue
		}
		if opts.DryRun {
			if _, existed := existingHashes[c.key]; existed {
				stats.Updated++
			} else {
				stats.Created++
			}
			continue
		}
		c.row["entity_hash"] = hash
		toUpsert = append(toUpsert, c.row)
	}

	if opts.DryRun {
		if err := e.ledger.Complete(ctx, runID, model.Stats{}, ""); err != nil {
			return stats, fmt.Errorf("completing dry-run: %w", err)
		}
		return stats, nil
	}

	written, err := e.db.UpsertBatch(ctx, proj.Table(), proj.KeyColumn(), toUpsert, batchSize)
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, fmt.Errorf("upserting batch: %w", err)
	}
	// created/updated are conflated by bulk upsert (spec.md §4.5 step 7);
	// attribute every written row to Updated since distinguishing would
	// require a second round trip the spec explicitly avoids.
	stats.Updated += written

	errMsg := ""
	if stats.Failed(opts.StopOnErrors) {
		errMsg = fmt.Sprintf("%d record error(s), stop_on_errors set", stats.Errors)
	}
	if err := e.ledger.Complete(ctx, runID, stats, errMsg); err != nil {
		return stats, fmt.Errorf("completing run: %w", err)
	}
	return stats, nil
}
