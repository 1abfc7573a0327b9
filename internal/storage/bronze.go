package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lsats/databridge/internal/model"
)

// ExistingHashes loads the most recent _content_hash_basic per external_id
// for change detection, per spec.md §4.3 step 3:
//
//	SELECT DISTINCT ON (external_id) external_id,
//	       raw_data->>'_content_hash_basic'
//	FROM bronze.raw_entities
//	WHERE entity_type = $1 AND source_system = $2
//	ORDER BY external_id, ingested_at DESC
func (db *DB) ExistingHashes(ctx context.Context, entityType model.EntityType, source model.SourceSystem) (map[string]string, error) {
	const query = `
		SELECT DISTINCT ON (external_id)
			external_id,
			raw_data->>'_content_hash_basic' AS content_hash_basic
		FROM bronze.raw_entities
		WHERE entity_type = $1 AND source_system = $2
		ORDER BY external_id, ingested_at DESC`

	rows, err := db.QueryxContext(ctx, query, entityType, source)
	if err != nil {
		return nil, fmt.Errorf("loading existing hashes: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var externalID string
		var hash *string
		if err := rows.Scan(&externalID, &hash); err != nil {
			return nil, fmt.Errorf("scanning existing hash row: %w", err)
		}
		if hash != nil {
			out[externalID] = *hash
		}
	}
	return out, rows.Err()
}

// InsertBronzeRow appends a new Bronze row within an existing transaction,
// matching the append-only invariant in spec.md §3.
func (db *DB) InsertBronzeRow(ctx context.Context, tx *sqlx.Tx, row model.BronzeRow) (int64, error) {
	const query = `
		INSERT INTO bronze.raw_entities
			(entity_type, source_system, external_id, raw_data, ingestion_run_id, ingestion_metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING raw_id`

	var rawID int64
	err := tx.QueryRowxContext(ctx, query,
		row.EntityType, row.SourceSystem, row.ExternalID, row.RawData, row.IngestionRunID, row.IngestionMetadata,
	).Scan(&rawID)
	if err != nil {
		return 0, fmt.Errorf("inserting bronze row for %s/%s/%s: %w", row.EntityType, row.SourceSystem, row.ExternalID, err)
	}
	return rawID, nil
}

// LatestBronzeRows batch-fetches the most recent Bronze row per
// external_id using a single windowed query per chunk of ~1000 ids
// (spec.md §4.5 step 3), replacing N single-row queries with
// ceil(N/chunkSize).
func (db *DB) LatestBronzeRows(ctx context.Context, entityType model.EntityType, source model.SourceSystem, externalIDs []string, chunkSize int) ([]model.BronzeRow, error) {
	var out []model.BronzeRow
	for _, chunk := range Chunk(externalIDs, chunkSize) {
		const query = `
			SELECT raw_id, entity_type, source_system, external_id, raw_data,
			       ingested_at, ingestion_run_id, ingestion_metadata
			FROM (
				SELECT *, ROW_NUMBER() OVER (
					PARTITION BY external_id ORDER BY ingested_at DESC
				) AS rn
				FROM bronze.raw_entities
				WHERE entity_type = $1 AND source_system = $2 AND external_id = ANY($3)
			) ranked
			WHERE rn = 1`

		var rows []model.BronzeRow
		err := db.SelectContext(ctx, &rows, query, entityType, source, pq.Array(chunk))
		if err != nil {
			return nil, fmt.Errorf("batch-fetching latest bronze rows: %w", err)
		}
		out = append(out, rows...)
	}
	return out, nil
}

// ExternalIDsInScope returns the distinct external_ids for this
// (entity, source) that have been ingested since `since` (or all, when
// since is nil / fullSync), per spec.md §4.5 step 1-2.
func (db *DB) ExternalIDsInScope(ctx context.Context, entityType model.EntityType, source model.SourceSystem, since *time.Time) ([]string, error) {
	var ids []string
	var err error
	if since == nil {
		const query = `
			SELECT DISTINCT external_id FROM bronze.raw_entities
			WHERE entity_type = $1 AND source_system = $2`
		err = db.SelectContext(ctx, &ids, query, entityType, source)
	} else {
		const query = `
			SELECT DISTINCT external_id FROM bronze.raw_entities
			WHERE entity_type = $1 AND source_system = $2 AND ingested_at > $3`
		err = db.SelectContext(ctx, &ids, query, entityType, source, *since)
	}
	if err != nil {
		return nil, fmt.Errorf("listing external ids in scope: %w", err)
	}
	return ids, nil
}

// RowsMissingEnrichedHash selects Bronze rows for entityType lacking
// _content_hash_enriched (optionally scoped to ingested_at > since),
// per spec.md §4.4.
func (db *DB) RowsMissingEnrichedHash(ctx context.Context, entityType model.EntityType, source model.SourceSystem, since *time.Time) ([]model.BronzeRow, error) {
	// Only the latest row per external_id is a candidate: an older row
	// lacking the enriched hash is moot once a newer basic-only row
	// superseded it.
	const latestQuery = `
		SELECT raw_id, entity_type, source_system, external_id, raw_data,
		       ingested_at, ingestion_run_id, ingestion_metadata
		FROM (
			SELECT *, ROW_NUMBER() OVER (
				PARTITION BY external_id ORDER BY ingested_at DESC
			) AS rn
			FROM bronze.raw_entities
			WHERE entity_type = $1 AND source_system = $2
			  AND ($3::timestamptz IS NULL OR ingested_at > $3)
		) ranked
		WHERE rn = 1 AND (raw_data ->> '_content_hash_enriched') IS NULL`

	var rows []model.BronzeRow
	err := db.SelectContext(ctx, &rows, latestQuery, entityType, source, since)
	if err != nil {
		return nil, fmt.Errorf("listing rows missing enriched hash: %w", err)
	}
	return rows, nil
}

// UpdateBronzeEnriched performs the sole legal in-place Bronze mutation:
// overwriting raw_data with the enriched document, transactionally, per
// spec.md §4.4.
func (db *DB) UpdateBronzeEnriched(ctx context.Context, rawID int64, enrichedData json.RawMessage) error {
	return db.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE bronze.raw_entities SET raw_data = $1 WHERE raw_id = $2`,
			enrichedData, rawID)
		if err != nil {
			return fmt.Errorf("updating enriched bronze row %d: %w", rawID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("enriched update affected no rows for raw_id %d", rawID)
		}
		return nil
	})
}

// RecentChanges lists Bronze rows ingested in the last `days` (supplemented
// per SPEC_FULL.md §5.1 from original_source's get_recent_department_changes).
// The --show-recent-changes flag of `databridge status` does not call it; it
// reports ledger runs via ledger.RecentChanges.
func (db *DB) RecentChanges(ctx context.Context, entityType model.EntityType, source model.SourceSystem, days int) ([]model.BronzeRow, error) {
	const query = `
		SELECT raw_id, entity_type, source_system, external_id, raw_data,
		       ingested_at, ingestion_run_id, ingestion_metadata
		FROM bronze.raw_entities
		WHERE entity_type = $1 AND source_system = $2
		  AND ingested_at > now() - ($3 || ' days')::interval
		ORDER BY ingested_at DESC`

	var rows []model.BronzeRow
	if err := db.SelectContext(ctx, &rows, query, entityType, source, days); err != nil {
		return nil, fmt.Errorf("listing recent changes: %w", err)
	}
	return rows, nil
}
