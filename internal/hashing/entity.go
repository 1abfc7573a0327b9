package hashing

// MetadataExclusions is the set of Silver-row fields excluded from the
// entity-hash computation (spec.md §4.2): pointers/provenance/timestamps
// that change without representing a meaningful data update. Every caller
// of EntityHash MUST exclude exactly this set, or else hash comparisons
// between the transformer and a future re-run will spuriously disagree.
var MetadataExclusions = map[string]bool{
	"raw_id":           true,
	"entity_hash":      true,
	"ingestion_run_id": true,
	"created_at":       true,
	"updated_at":       true,
	"source_system":    true,
}

// EntityHash computes the Silver entity_hash over a typed row represented
// as a field map, after stripping the metadata exclusions. Callers build
// the map once per record (e.g. via a struct-to-map helper) and may extend
// MetadataExclusions-style filtering with extra per-entity exclusions
// (rare; none of the current projections need it).
func EntityHash(fields map[string]any) string {
	kept := make(map[string]any, len(fields))
	for k, v := range fields {
		if MetadataExclusions[k] {
			continue
		}
		kept[k] = v
	}
	return hashJSON(kept)
}
