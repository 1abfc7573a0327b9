package consolidate

import (
	"strings"

	"github.com/lsats/databridge/internal/hashing"
	"github.com/lsats/databridge/internal/quality"
)

// GroupSources buckets one canonical group's contributing rows by source,
// keyed by lowercased distinguished_name (groups have no cross-source
// natural key other than DN). An AD row and an MCommunity row whose DNs
// match case-insensitively land in the same bucket and merge into one
// silver.groups row; every other group is a single-source row.
type GroupSources struct {
	DistinguishedName string
	AD                map[string]any
	MCommunity        map[string]any
}

// GroupGroups buckets AD and MCommunity group rows by distinguished_name.
func GroupGroups(adGroups, mcommunityGroups []map[string]any) map[string]*GroupSources {
	out := map[string]*GroupSources{}
	get := func(dn string) *GroupSources {
		dn = strings.ToLower(dn)
		g, ok := out[dn]
		if !ok {
			g = &GroupSources{DistinguishedName: dn}
			out[dn] = g
		}
		return g
	}
	for _, row := range adGroups {
		g := get(stringVal(row, "distinguished_name"))
		g.AD = row
	}
	for _, row := range mcommunityGroups {
		g := get(stringVal(row, "distinguished_name"))
		g.MCommunity = row
	}
	return out
}

// MergeGroup builds one silver.groups row from its contributing sources.
// AD members carry no direct/transitive distinction, so
// relate.ExtractMembers treats every member of an AD-only row as direct;
// MCommunity additionally distinguishes direct_members from the full
// (possibly nested) members list. A merged AD+MCommunity row has
// source_system "active_directory+mcommunity_ldap", so only its
// direct_members entries are marked direct.
func MergeGroup(s *GroupSources) map[string]any {
	name := firstNonEmpty(stringVal(s.AD, "common_name"), stringVal(s.MCommunity, "common_name"))
	description := firstNonEmpty(stringVal(s.AD, "description"), stringVal(s.MCommunity, "description"))

	var members, directMembers, owners []string
	sourceSystem := ""
	if s.AD != nil {
		members = append(members, hashing.StringSlice(s.AD["members"])...)
		owners = append(owners, hashing.StringSlice(s.AD["owners"])...)
		sourceSystem = "active_directory"
	}
	if s.MCommunity != nil {
		members = append(members, hashing.StringSlice(s.MCommunity["members"])...)
		directMembers = append(directMembers, hashing.StringSlice(s.MCommunity["direct_members"])...)
		owners = append(owners, hashing.StringSlice(s.MCommunity["owners"])...)
		if sourceSystem != "" {
			sourceSystem = "active_directory+mcommunity_ldap"
		} else {
			sourceSystem = "mcommunity_ldap"
		}
	}

	score := quality.NewScore()
	if name == "" {
		score.Subtract(0.30, "missing_name")
	}
	if len(members) == 0 && len(directMembers) == 0 {
		score.Subtract(0.15, "no_members")
	}
	if s.AD == nil || s.MCommunity == nil {
		score.Subtract(0.10, "single_source")
	}
	final, flags := score.Finish()

	return map[string]any{
		"distinguished_name": s.DistinguishedName,
		"common_name":        name,
		"description":        description,
		"members":            dedupeGroupStrings(members),
		"direct_members":     dedupeGroupStrings(directMembers),
		"owners":              dedupeGroupStrings(owners),
		"source_system":      sourceSystem,
		"quality_score":      final,
		"quality_flags":      flags,
	}
}

func dedupeGroupStrings(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range in {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
