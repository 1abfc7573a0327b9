package hashing

import "testing"

func TestFieldSetStable(t *testing.T) {
	fields := []string{"ID", "Name", "Code", "IsActive", "ParentID"}
	doc1 := map[string]any{"ID": 1.0, "Name": "Bio ", "Code": "B", "IsActive": true, "ParentID": nil, "ModifiedDate": "2025-01-01"}
	doc2 := map[string]any{"ID": 1.0, "Name": "Bio", "Code": "B", "IsActive": true, "ParentID": nil, "ModifiedDate": "2099-12-31"}

	h1 := FieldSet(doc1, fields)
	h2 := FieldSet(doc2, fields)
	if h1 != h2 {
		t.Fatalf("expected hashes to match across whitespace + excluded ModifiedDate, got %s vs %s", h1, h2)
	}
}

func TestFieldSetChangesOnBusinessField(t *testing.T) {
	fields := []string{"Name"}
	h1 := FieldSet(map[string]any{"Name": "Bio"}, fields)
	h2 := FieldSet(map[string]any{"Name": "Biology"}, fields)
	if h1 == h2 {
		t.Fatal("expected hash to change when a whitelisted field changes")
	}
}

func TestEntityHashExcludesMetadata(t *testing.T) {
	base := map[string]any{"uniqname": "jdoe", "first_name": "Jane"}
	withMeta := map[string]any{
		"uniqname": "jdoe", "first_name": "Jane",
		"raw_id": int64(5), "entity_hash": "stale", "ingestion_run_id": "r1",
		"created_at": "t1", "updated_at": "t2", "source_system": "tdx",
	}
	if EntityHash(base) != EntityHash(withMeta) {
		t.Fatal("entity hash must be invariant to metadata fields")
	}
}

func TestNormalizeMAC(t *testing.T) {
	if got := NormalizeMAC("aa:bb:cc:dd:ee:ff"); got != "AABBCCDDEEFF" {
		t.Fatalf("got %q", got)
	}
	if got := NormalizeMAC("AA-BB-CC-DD-EE-FF"); got != "AABBCCDDEEFF" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeUUIDSentinel(t *testing.T) {
	if got := NormalizeUUID("00000000-0000-0000-0000-000000000000"); got != "" {
		t.Fatalf("expected sentinel UUID to normalize to empty, got %q", got)
	}
	if got := NormalizeUUID(" abc-123 "); got != "abc-123" {
		t.Fatalf("got %q", got)
	}
}

func TestStringSliceHandlesSingleAndArray(t *testing.T) {
	if got := StringSlice("cn=a,dc=x"); len(got) != 1 {
		t.Fatalf("expected single-value to become 1-element slice, got %v", got)
	}
	if got := StringSlice([]any{"a", "b", ""}); len(got) != 2 {
		t.Fatalf("expected blanks dropped, got %v", got)
	}
}
