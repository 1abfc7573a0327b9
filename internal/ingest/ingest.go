// Package ingest implements the Bronze ingester: one generic engine
// (spec.md §4.3) driven per (source, entity) by an EntityDef describing
// how to fetch, key, and timestamp-filter that source's records. Grounded
// on original_source/.../001_ingest_tdx_departments.py's
// ingest_departments_timestamp_based, translated from its Python
// list-then-hash-then-upsert shape into Go.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lsats/databridge/internal/hashing"
	"github.com/lsats/databridge/internal/ledger"
	"github.com/lsats/databridge/internal/model"
	"github.com/lsats/databridge/internal/sourceclient"
	"github.com/lsats/databridge/internal/storage"
)

// EntityDef wires one (source, entity) pair's source-specific knowledge
// into the generic engine.
type EntityDef struct {
	EntityType   model.EntityType
	SourceSystem model.SourceSystem

	// Source fetches list-scoped candidate records.
	Source sourceclient.Lister

	// KeyField names the field in a fetched Record holding the
	// source-native external id (e.g. "ID", "sAMAccountName", "dn").
	KeyField string

	// BasicHashFields is the whitelisted field subset basic_hash is
	// computed over (spec.md §4.2).
	BasicHashFields []string

	// ModifiedField, when non-empty, names a field in the record holding
	// its own last-modified timestamp, used for client-side filtering
	// when the source does not support server-side filtering (spec.md
	// §4.3 step 4). ParseModified converts that field's raw value to a
	// time.Time; if nil, client-side filtering is skipped (the source
	// itself is trusted to only return matching records).
	ModifiedField string
	ParseModified func(v any) (time.Time, bool)
}

// Engine runs the Bronze ingestion algorithm for any number of EntityDefs
// against a shared storage/ledger pair.
type Engine struct {
	db     *storage.DB
	ledger *ledger.Ledger
}

func New(db *storage.DB, l *ledger.Ledger) *Engine {
	return &Engine{db: db, ledger: l}
}

// Ingest runs spec.md §4.3's algorithm for one EntityDef.
func (e *Engine) Ingest(ctx context.Context, def EntityDef, opts model.JobOptions) (model.Stats, error) {
	var stats model.Stats

	var since *time.Time
	if !opts.FullSync {
		ts, err := e.ledger.LastSuccessfulCompletion(ctx, string(def.SourceSystem), string(def.EntityType))
		if err != nil {
			return stats, fmt.Errorf("loading incremental watermark: %w", err)
		}
		since = ts
	}

	runID, err := e.ledger.Begin(ctx, string(def.SourceSystem), string(def.EntityType), map[string]any{
		"full_sync":         opts.FullSync,
		"dry_run":           opts.DryRun,
		"incremental_since": since,
	})
	if err != nil {
		return stats, fmt.Errorf("beginning ingest run: %w", err)
	}

	existingHashes, err := e.db.ExistingHashes(ctx, def.EntityType, def.SourceSystem)
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, fmt.Errorf("loading existing hashes: %w", err)
	}

	records, err := def.Source.List(ctx, since)
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, fmt.Errorf("listing source records: %w", err)
	}

	for _, rec := range records {
		if since != nil && def.ParseModified != nil && def.ModifiedField != "" {
			if raw, ok := rec[def.ModifiedField]; ok {
				if modified, ok := def.ParseModified(raw); ok && modified.Before(*since) {
					continue
				}
			}
		}

		stats.Processed++
		externalID := rec.ExternalID(def.KeyField)
		if externalID == "" {
			stats.AddError(fmt.Sprintf("record missing key field %q", def.KeyField))
			continue
		}

		basicHash := hashing.FieldSet(rec, def.BasicHashFields)
		_, existed := existingHashes[externalID]
		if existed && existingHashes[externalID] == basicHash {
			stats.SkippedUnchanged++
			continue
		}

		if opts.DryRun {
			if existed {
				stats.Updated++
			} else {
				stats.Created++
			}
			continue
		}

		rec["_ingestion_method"] = string(model.MethodBasic)
		rec["_ingestion_source"] = string(def.SourceSystem)
		rec["_ingestion_timestamp"] = time.Now().UTC().Format(time.RFC3339)
		rec["_content_hash_basic"] = basicHash

		rawData, err := json.Marshal(rec)
		if err != nil {
			stats.AddError(fmt.Sprintf("marshaling record %s: %v", externalID, err))
			continue
		}

		row := model.BronzeRow{
			EntityType:        def.EntityType,
			SourceSystem:      def.SourceSystem,
			ExternalID:        externalID,
			RawData:           rawData,
			IngestionRunID:    runID,
			IngestionMetadata: json.RawMessage(`{"full_data":true}`),
		}

		if _, err := e.insertRow(ctx, row); err != nil {
			stats.AddError(fmt.Sprintf("inserting bronze row %s: %v", externalID, err))
			continue
		}

		if existed {
			stats.Updated++
		} else {
			stats.Created++
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

func (e *Engine) insertRow(ctx context.Context, row model.BronzeRow) (int64, error) {
	var rawID int64
	err := e.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		id, err := e.db.InsertBronzeRow(ctx, tx, row)
		if err != nil {
			return err
		}
		rawID = id
		return nil
	})
	return rawID, err
}
