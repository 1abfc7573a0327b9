// Package model holds the shared entity/source enums and the Bronze raw-row
// type that every stage of the pipeline (ingest, enrich, transform,
// consolidate) passes around.
package model

import (
	"encoding/json"
	"time"
)

// EntityType identifies the kind of thing a Bronze/Silver row represents.
type EntityType string

const (
	EntityUser       EntityType = "user"
	EntityGroup      EntityType = "group"
	EntityDepartment EntityType = "department"
	EntityComputer   EntityType = "computer"
	EntityAsset      EntityType = "asset"
	EntityLabAward   EntityType = "lab_award"
)

// SourceSystem identifies the upstream system a row was extracted from.
type SourceSystem string

const (
	SourceTDX             SourceSystem = "tdx"
	SourceActiveDirectory SourceSystem = "active_directory"
	SourceMCommunityLDAP  SourceSystem = "mcommunity_ldap"
	SourceUMichAPI        SourceSystem = "umich_api"
	SourceKeyClient       SourceSystem = "key_client"
	SourceLabAwards       SourceSystem = "lab_awards"
)

// RunStatus is the lifecycle state of a meta.ingestion_runs row.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// IngestionMethod records how a Bronze row's raw_data was produced.
type IngestionMethod string

const (
	MethodBasic    IngestionMethod = "basic"
	MethodEnriched IngestionMethod = "enriched"
)

// Metadata fields embedded under "_"-prefixed keys in raw_data, per spec.md §3.
const (
	FieldContentHashBasic    = "_content_hash_basic"
	FieldContentHashEnriched = "_content_hash_enriched"
	FieldIngestionMethod     = "_ingestion_method"
	FieldIngestionSource     = "_ingestion_source"
	FieldIngestionTimestamp  = "_ingestion_timestamp"
	FieldEnrichmentTimestamp = "_enrichment_timestamp"
)

// NullUUID is the sentinel Postgres/TDX "empty" UUID, treated as null
// throughout normalization (spec.md §4.2, §9 open question).
const NullUUID = "00000000-0000-0000-0000-000000000000"

// BronzeRow is one row of bronze.raw_entities.
type BronzeRow struct {
	RawID              int64           `db:"raw_id"`
	EntityType         EntityType      `db:"entity_type"`
	SourceSystem       SourceSystem    `db:"source_system"`
	ExternalID         string          `db:"external_id"`
	RawData            json.RawMessage `db:"raw_data"`
	IngestedAt         time.Time       `db:"ingested_at"`
	IngestionRunID     string          `db:"ingestion_run_id"`
	IngestionMetadata  json.RawMessage `db:"ingestion_metadata"`
}

// Doc unmarshals RawData into a generic field map for hashing/normalization.
func (b *BronzeRow) Doc() (map[string]any, error) {
	var doc map[string]any
	if len(b.RawData) == 0 {
		return map[string]any{}, nil
	}
	if err := json.Unmarshal(b.RawData, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// JobOptions are the common flags every job (ingest/enrich/transform/
// consolidate/associate) accepts, per spec.md §6.
type JobOptions struct {
	FullSync      bool
	DryRun        bool
	BatchSize     int
	APIDelay      time.Duration
	MaxWorkers    int
	StopOnErrors  bool
}

// DefaultJobOptions mirrors the spec's stated defaults (batch 500/1000,
// max_workers 10).
func DefaultJobOptions() JobOptions {
	return JobOptions{
		BatchSize:  500,
		MaxWorkers: 10,
	}
}

// Stats is the counts block every job reports, per spec.md §7.
type Stats struct {
	Processed       int
	Created         int
	Updated         int
	SkippedUnchanged int
	Errors          int
	ErrorSummary    []string
}

// AddError records a per-record error without failing the whole run.
func (s *Stats) AddError(msg string) {
	s.Errors++
	s.ErrorSummary = append(s.ErrorSummary, msg)
}

// Failed reports whether the accumulated errors should mark the run failed.
func (s *Stats) Failed(stopOnErrors bool) bool {
	return stopOnErrors && s.Errors > 0
}
