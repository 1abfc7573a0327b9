// Package storage is the typed access façade over the Bronze/Silver/Meta
// schemas: pooled connections, batched writes, and dataframe-style result
// iteration (spec.md §2). Grounded on the *shape* of the teacher's
// internal/storage/sqlite package (per-entity query files plus a shared
// queries.go), with the backend itself swapped to Postgres — jackc/pgx/v5
// via its database/sql driver, wrapped in jmoiron/sqlx for struct
// scanning — since the spec's bronze.*/silver.*/meta.* schemas and JSONB
// columns have no analogue in the teacher's SQLite/Dolt/MySQL backends.
package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/lsats/databridge/internal/config"
)

// DB wraps a pooled Postgres connection for the Bronze/Silver/Meta schemas.
type DB struct {
	*sqlx.DB
}

// Open connects to Postgres via pgx's database/sql driver and configures
// the pool per spec.md §5 (default size 5, overflow 10).
func Open(cfg *config.Config) (*DB, error) {
	sqlDB, err := sqlx.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 5
	}
	overflow := cfg.PoolOverflow
	if overflow < 0 {
		overflow = 0
	}
	sqlDB.SetMaxOpenConns(poolSize + overflow)
	sqlDB.SetMaxIdleConns(poolSize)

	if err := sqlDB.PingContext(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &DB{DB: sqlDB}, nil
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on any error (including a panic, which is re-raised after rollback).
// Transactions are kept short per spec.md §5 ("never spanning source I/O").
func (db *DB) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
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

// Chunk splits ids into slices of at most size, used throughout for the
// ~1000-row batched-read and ~500-row batched-write chunking spec.md §4.5
// specifies.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = 1000
	}
	var chunks [][]string
	for len(ids) > 0 {
		n := size
		if n > len(ids) {
			n = len(ids)
		}
		chunks = append(chunks, ids[:n])
		ids = ids[n:]
	}
	return chunks
}
