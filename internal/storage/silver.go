package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ExistingEntityHashes batch-fetches entity_hash values keyed by the
// natural key column, for the hash-gate skip check in spec.md §4.5 step 4
// (`WHERE key = ANY(:ids)`).
func (db *DB) ExistingEntityHashes(ctx context.Context, table, keyColumn string, keys []string) (map[string]string, error) {
	query := fmt.Sprintf(`SELECT %s, entity_hash FROM %s WHERE %s = ANY($1)`, keyColumn, table, keyColumn)
	rows, err := db.QueryxContext(ctx, query, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("loading existing entity hashes from %s: %w", table, err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var key, hash string
		if err := rows.Scan(&key, &hash); err != nil {
			return nil, fmt.Errorf("scanning entity hash row from %s: %w", table, err)
		}
		out[key] = hash
	}
	return out, rows.Err()
}

// UpsertBatch performs one parameterized
// `INSERT ... ON CONFLICT (keyColumn) DO UPDATE SET ... WHERE
// table.entity_hash != EXCLUDED.entity_hash` per chunk of rows
// (spec.md §4.5 step 6 / §9 "batched upsert with skip-on-equal-hash").
// Each element of rows is a column-name -> value map; rows need not share
// the same key set (e.g. the TDX asset projector only emits attribute
// columns present on that asset) — the column list is the union across the
// whole batch, with any row missing a column bound as NULL for it.
// Returns the number of rows actually written (created-or-updated
// conflated, since a bulk upsert cannot cheaply distinguish them).
func (db *DB) UpsertBatch(ctx context.Context, table, keyColumn string, rows []map[string]any, chunkSize int) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if chunkSize <= 0 {
		chunkSize = 500
	}

	columns := unionColumns(rows)
	updateSet := buildUpdateSet(columns, keyColumn)

	written := 0
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		query, args := buildUpsertSQL(table, keyColumn, columns, updateSet, batch)
		res, err := db.ExecContext(ctx, query, args...)
		if err != nil {
			return written, fmt.Errorf("upserting batch into %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return written, err
		}
		written += int(n)
	}
	return written, nil
}

// unionColumns collects every column key across the whole batch, not just
// the first row: per-row projections (e.g. the TDX asset attribute
// extraction) emit a heterogeneous key set, so a row missing a column
// present elsewhere in the batch must still get that column bound as NULL
// rather than silently dropping it from the INSERT.
func unionColumns(rows []map[string]any) []string {
	seen := map[string]bool{}
	var cols []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func buildUpdateSet(columns []string, keyColumn string) string {
	var sb strings.Builder
	first := true
	for _, c := range columns {
		if c == keyColumn {
			continue
		}
		if !first {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s = EXCLUDED.%s", c, c)
		first = false
	}
	return sb.String()
}

func buildUpsertSQL(table, keyColumn string, columns []string, updateSet string, batch []map[string]any) (string, []any) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))

	var args []any
	placeholder := 1
	for i, row := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j, col := range columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", placeholder)
			args = append(args, row[col])
			placeholder++
		}
		sb.WriteString(")")
	}

	fmt.Fprintf(&sb, " ON CONFLICT (%s) DO UPDATE SET %s WHERE %s.entity_hash != EXCLUDED.entity_hash",
		keyColumn, updateSet, table)

	return sb.String(), args
}

// UpdateColumns applies a per-row partial update of the given columns
// (plus keyColumn in the WHERE clause), one statement per row in a single
// transaction. Used for propagating derived fields (e.g. the lab
// associator's primary_lab_id/primary_lab_method/lab_association_count)
// back onto an already-consolidated table without disturbing its
// entity_hash (spec.md §4.9).
func (db *DB) UpdateColumns(ctx context.Context, table, keyColumn string, rows []map[string]any, columns []string) error {
	if len(rows) == 0 {
		return nil
	}
	return db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, row := range rows {
			var sb strings.Builder
			fmt.Fprintf(&sb, "UPDATE %s SET ", table)
			args := make([]any, 0, len(columns)+1)
			for i, col := range columns {
				if i > 0 {
					sb.WriteString(", ")
				}
				fmt.Fprintf(&sb, "%s = $%d", col, i+1)
				args = append(args, row[col])
			}
			fmt.Fprintf(&sb, " WHERE %s = $%d", keyColumn, len(columns)+1)
			args = append(args, row[keyColumn])
			if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
				return fmt.Errorf("updating columns on %s: %w", table, err)
			}
		}
		return nil
	})
}

// SelectAllAsMaps reads every row of table (optionally scoped by a WHERE
// clause fragment in whereSQL, empty for none) as column-name -> value
// maps, for the cross-source consolidation and lab-association readers
// that need the whole Silver-source table rather than a single key lookup.
// Uses sqlx's MapScan so callers don't need per-entity Go structs.
func (db *DB) SelectAllAsMaps(ctx context.Context, table, whereSQL string, args ...any) ([]map[string]any, error) {
	query := fmt.Sprintf("SELECT * FROM %s", table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}
	rows, err := db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting all rows from %s: %w", table, err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("map-scanning row from %s: %w", table, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// TruncateAndInsert rebuilds a link table in one run: TRUNCATE followed by
// chunked INSERTs, per spec.md §3 ("Link tables are rebuilt by TRUNCATE+
// INSERT on each consolidation run") and §4.9's associator strategy note.
// The TRUNCATE and all insert chunks run in a single transaction so a
// failure partway through leaves the previous (not a half-rebuilt) table.
func (db *DB) TruncateAndInsert(ctx context.Context, table string, columns []string, rows []map[string]any, chunkSize int) (int, error) {
	if chunkSize <= 0 {
		chunkSize = 5000
	}

	inserted := 0
	err := db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("TRUNCATE %s", table)); err != nil {
			return fmt.Errorf("truncating %s: %w", table, err)
		}
		for start := 0; start < len(rows); start += chunkSize {
			end := start + chunkSize
			if end > len(rows) {
				end = len(rows)
			}
			batch := rows[start:end]
			if len(batch) == 0 {
				continue
			}
			query, args := buildInsertSQL(table, columns, batch)
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("inserting batch into %s: %w", table, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			inserted += int(n)
		}
		return nil
	})
	return inserted, err
}

func buildInsertSQL(table string, columns []string, batch []map[string]any) (string, []any) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))

	var args []any
	placeholder := 1
	for i, row := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j, col := range columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", placeholder)
			args = append(args, row[col])
			placeholder++
		}
		sb.WriteString(")")
	}
	return sb.String(), args
}
