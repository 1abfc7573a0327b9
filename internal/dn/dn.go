// Package dn parses LDAP distinguished names into the OU hierarchy arrays
// used by the Silver-source transformer (spec.md §4.5.2).
package dn

import "strings"

// Path is the leaf-to-root array of OU components extracted from a DN,
// along with the named positional fields spec.md calls out explicitly.
type Path struct {
	Full               []string // leaf -> root, full OU path
	Root               string
	OrganizationType   string
	Organization       string
	Category           string
	Division           string
	Department         string
	Subdepartment      string
	ImmediateParent    string
	Depth              int
	IsOU               bool // true if the DN's leaf RDN is itself OU=...
}

// Parse strips a leading "CN=...," leaf (an "OU=..." leaf is kept, so an
// OU object lands at Full[0]) and trailing ",DC=..." segments from an LDAP
// DN, keeps the OU= segments, and extracts the named positions from the
// root end, per spec.md §4.5.2.
func Parse(distinguishedName string) Path {
	var p Path
	rdns := strings.Split(distinguishedName, ",")
	if len(rdns) == 0 {
		return p
	}

	leafIsOU := strings.HasPrefix(strings.ToUpper(strings.TrimSpace(rdns[0])), "OU=")
	p.IsOU = leafIsOU

	// Drop the leaf RDN and any trailing DC=... RDNs. A CN=... leaf is
	// never part of the OU path and is always dropped; an OU=... leaf
	// *is* an OU segment and is kept so it lands at Full[0] — the object
	// itself occupies position 0 per spec.md §4.5.2.
	body := rdns
	if len(body) > 0 && !leafIsOU {
		body = body[1:]
	}
	end := len(body)
	for end > 0 && strings.HasPrefix(strings.ToUpper(strings.TrimSpace(body[end-1])), "DC=") {
		end--
	}
	body = body[:end]

	full := make([]string, 0, len(body))
	for _, rdn := range body {
		rdn = strings.TrimSpace(rdn)
		if idx := strings.Index(strings.ToUpper(rdn), "OU="); idx == 0 {
			full = append(full, strings.TrimSpace(rdn[3:]))
		}
	}
	p.Full = full
	p.Depth = len(full)

	at := func(fromEnd int) string {
		idx := len(full) - fromEnd
		if idx < 0 || idx >= len(full) {
			return ""
		}
		return full[idx]
	}

	p.Root = at(1)
	p.OrganizationType = at(2)
	p.Organization = at(3)
	p.Category = at(4)
	p.Division = at(5)
	p.Department = at(6)
	p.Subdepartment = at(7)

	// Leaf objects (computers, groups, users) take the nearest enclosing OU
	// (index 0); OU-typed objects take the OU enclosing *them* (index 1),
	// since the object itself occupies position 0 of the parsed path.
	if leafIsOU {
		if len(full) > 1 {
			p.ImmediateParent = full[1]
		}
	} else if len(full) > 0 {
		p.ImmediateParent = full[0]
	}

	return p
}

// ExtractUID parses a user DN's leaf RDN for a uid= or cn= value, used by
// the relationship identifier parser (spec.md §4.6.1).
func ExtractUID(distinguishedName string) (string, bool) {
	rdns := strings.Split(distinguishedName, ",")
	if len(rdns) == 0 {
		return "", false
	}
	leaf := strings.TrimSpace(rdns[0])
	upper := strings.ToUpper(leaf)
	switch {
	case strings.HasPrefix(upper, "UID="):
		return strings.TrimSpace(leaf[4:]), true
	case strings.HasPrefix(upper, "CN="):
		return strings.TrimSpace(leaf[3:]), true
	default:
		return "", false
	}
}

// ContainsOUPathSegment reports whether the DN's path (case-insensitively)
// contains any of the given OU names, used by the identifier parser to
// classify "ou=people|accounts|privileged" vs "ou=groups|user groups|mcommadsync".
func ContainsOUPathSegment(distinguishedName string, names ...string) bool {
	upper := strings.ToUpper(distinguishedName)
	for _, n := range names {
		if strings.Contains(upper, "OU="+strings.ToUpper(n)) {
			return true
		}
	}
	return false
}
