// Package relate implements the relationship extractor (spec.md §4.6):
// parsing membership identifiers (DNs or bare strings) into (id, type)
// pairs and populating silver.group_members / silver.group_owners as a
// full refresh per run.
package relate

import (
	"strings"

	"github.com/lsats/databridge/internal/dn"
)

// MemberType classifies a parsed group-membership identifier.
type MemberType string

const (
	MemberUser    MemberType = "user"
	MemberGroup   MemberType = "group"
	MemberUnknown MemberType = "unknown"
)

// groupPrefixes are bare-string prefixes recognized as groups without a
// DN (spec.md §4.6.1's "known group-prefix pattern (e.g. lsa-)" example).
var groupPrefixes = []string{"lsa-", "grp-", "mcomm-"}

// ParseIdentifier classifies a group_members/group_owners/member/owner
// string per spec.md §4.6.1.
func ParseIdentifier(identifier string) (id string, memberType MemberType) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", MemberUnknown
	}

	if strings.Contains(identifier, "=") {
		return parseDNIdentifier(identifier)
	}
	return parseBareIdentifier(identifier)
}

func parseDNIdentifier(identifier string) (string, MemberType) {
	switch {
	case dn.ContainsOUPathSegment(identifier, "people", "accounts", "privileged"):
		if uid, ok := dn.ExtractUID(identifier); ok {
			return uid, MemberUser
		}
		return "", MemberUnknown
	case dn.ContainsOUPathSegment(identifier, "groups", "user groups", "mcommadsync"):
		if cn, ok := extractCN(identifier); ok {
			return cn, MemberGroup
		}
		return "", MemberUnknown
	default:
		return "", MemberUnknown
	}
}

func extractCN(distinguishedName string) (string, bool) {
	rdns := strings.Split(distinguishedName, ",")
	if len(rdns) == 0 {
		return "", false
	}
	leaf := strings.TrimSpace(rdns[0])
	if strings.HasPrefix(strings.ToUpper(leaf), "CN=") {
		return strings.TrimSpace(leaf[3:]), true
	}
	return "", false
}

func parseBareIdentifier(identifier string) (string, MemberType) {
	lower := strings.ToLower(identifier)
	if strings.ContainsAny(identifier, " \t") {
		return identifier, MemberGroup
	}
	for _, prefix := range groupPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return identifier, MemberGroup
		}
	}
	// Ambiguous bare strings lean user (spec.md §4.6.1).
	return identifier, MemberUser
}
