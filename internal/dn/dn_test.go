package dn

import "testing"

func TestParseLeafObject(t *testing.T) {
	p := Parse("CN=host1,OU=Workstations,OU=LSA,OU=Division,OU=Category,OU=Organization,OU=OrgType,OU=UMICH,DC=umich,DC=edu")
	if p.Root != "UMICH" {
		t.Fatalf("root = %q", p.Root)
	}
	if p.OrganizationType != "OrgType" {
		t.Fatalf("org type = %q", p.OrganizationType)
	}
	if p.ImmediateParent != "Workstations" {
		t.Fatalf("immediate parent = %q, full=%v", p.ImmediateParent, p.Full)
	}
	if p.IsOU {
		t.Fatal("leaf CN object should not be IsOU")
	}
	if p.Depth != 7 {
		t.Fatalf("depth = %d", p.Depth)
	}
}

func TestParseOUObject(t *testing.T) {
	p := Parse("OU=Workstations,OU=LSA,OU=UMICH,DC=umich,DC=edu")
	if !p.IsOU {
		t.Fatal("expected IsOU")
	}
	// Object itself is at index 0 (Workstations); immediate parent is LSA.
	if p.ImmediateParent != "LSA" {
		t.Fatalf("immediate parent = %q", p.ImmediateParent)
	}
}

func TestExtractUID(t *testing.T) {
	if uid, ok := ExtractUID("uid=jdoe,ou=People,dc=umich,dc=edu"); !ok || uid != "jdoe" {
		t.Fatalf("uid=%q ok=%v", uid, ok)
	}
	if uid, ok := ExtractUID("cn=Some Group,ou=Groups,dc=umich,dc=edu"); !ok || uid != "Some Group" {
		t.Fatalf("uid=%q ok=%v", uid, ok)
	}
}

func TestContainsOUPathSegment(t *testing.T) {
	if !ContainsOUPathSegment("uid=jdoe,ou=People,dc=umich,dc=edu", "people", "accounts") {
		t.Fatal("expected match")
	}
	if ContainsOUPathSegment("cn=x,ou=Groups,dc=umich,dc=edu", "people") {
		t.Fatal("unexpected match")
	}
}
