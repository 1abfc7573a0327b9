// Package sourceclient defines the external-source boundary the Bronze
// ingesters and enricher call through: TDX, LDAP (AD and MCommunity),
// the institutional identity API, the inventory agent, and the lab-awards
// CSV export. Fetching raw records is a "collaborator" concern (spec.md
// §2) — out of the ingest/enrich scope proper — so this package is
// interfaces plus thin concrete clients, grounded on the list+detail
// two-stage shape of the teacher's internal/github client and the
// single-struct-plus-base-URL shape of internal/jira/client.go.
package sourceclient

import (
	"context"
	"time"
)

// Record is a single raw document fetched from an upstream source, destined
// for bronze.raw_entities.raw_data after the ingester stamps metadata onto
// it. Keys mirror the source's own field names; the projection rules in
// internal/transform map them onto typed Silver columns.
type Record map[string]any

// ExternalID returns the value of the source-native key field, or "" if
// absent. Callers pass the field name (e.g. "ID", "sAMAccountName",
// "uniqname") since it differs per source.
func (r Record) ExternalID(keyField string) string {
	v, ok := r[keyField]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Lister fetches the list-endpoint records for an entity, for Bronze
// ingestion step 4 (spec.md §4.3). Sources that can filter server-side on
// modification time should honor `since`; sources that cannot (most TDX
// list endpoints, LDAP searches) return everything and let the ingester
// filter client-side via the record's own modified-date field.
type Lister interface {
	List(ctx context.Context, since *time.Time) ([]Record, error)
}

// DetailFetcher fetches the full per-ID detail document for Bronze
// enrichment (spec.md §4.4). Not every source has one (LDAP searches
// already return full entries; CSV has no detail endpoint at all).
type DetailFetcher interface {
	Detail(ctx context.Context, externalID string) (Record, error)
}

// Source bundles both capabilities. Sources lacking a detail endpoint
// implement DetailFetcher with ErrNoDetailEndpoint.
type Source interface {
	Lister
	DetailFetcher
}
