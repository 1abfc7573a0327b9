// Package hashing implements the content-hash and entity-hash primitives
// used for change detection (spec.md §4.2). Both hashes are SHA-256 over a
// sorted-key, compact-separator JSON serialization of a field subset. The
// serialization is an array of single-key objects ([{"a":1},{"b":"x"}]),
// so the digests differ from a hash of the original Python implementation's
// `json.dumps(fields, sort_keys=True, separators=(",", ":"))` output.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// FieldSet computes the basic or enriched content hash over an explicit
// whitelist of field names pulled from doc. Missing fields are represented
// as nil (JSON null), matching spec.md's "absent fields MUST be represented
// as empty string or null consistently" invariant — the ingester and the
// enricher's verification step must use the same FieldSet call.
func FieldSet(doc map[string]any, fields []string) string {
	significant := make(map[string]any, len(fields))
	for _, f := range fields {
		significant[f] = normalizeValue(doc[f])
	}
	return hashJSON(significant)
}

// normalizeValue trims strings so that whitespace-only differences never
// change the hash; all other types pass through unchanged.
func normalizeValue(v any) any {
	if s, ok := v.(string); ok {
		return SafeTrim(s)
	}
	return v
}

// SafeTrim trims a string, treating a single space as equivalent to empty
// (spec.md §4.2 normalization rule).
func SafeTrim(s string) string {
	trimmed := trimSpace(s)
	if trimmed == " " {
		return ""
	}
	return trimmed
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func hashJSON(fields map[string]any) string {
	// json.Marshal on a map sorts keys already, but we re-derive the key
	// order explicitly to document the invariant and to keep this
	// independent of any future switch away from encoding/json's default.
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]keyValue, 0, len(keys))
	for _, k := range keys {
		ordered = append(ordered, keyValue{Key: k, Value: fields[k]})
	}

	buf, err := json.Marshal(ordered)
	if err != nil {
		// Fields are drawn from decoded JSON plus strings; marshaling back
		// cannot fail in practice.
		panic(err)
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

type keyValue struct {
	Key   string
	Value any
}

// MarshalJSON renders {"key":value} compactly so the overall array encodes
// as [{"k1":v1},{"k2":v2},...] in sorted key order with no whitespace. That
// is not the single object Python's json.dumps(d, sort_keys=True,
// separators=(",", ":")) emits.
func (kv keyValue) MarshalJSON() ([]byte, error) {
	keyJSON, err := json.Marshal(kv.Key)
	if err != nil {
		return nil, err
	}
	valJSON, err := json.Marshal(kv.Value)
	if err != nil {
		return nil, err
	}
	out := append([]byte{}, keyJSON...)
	out = append(out, ':')
	out = append(out, valJSON...)
	return append([]byte{'{'}, append(out, '}')...), nil
}
