package relate

import (
	"context"
	"fmt"

	"github.com/lsats/databridge/internal/storage"
)

// GroupInput is one silver.groups row's membership data, as loaded by the
// caller (the consolidate package owns silver.groups itself; this package
// only derives the link tables from it per spec.md §4.6).
type GroupInput struct {
	GroupID       string
	Members       []string
	DirectMembers []string
	Owners        []string
	SourceSystem  string
}

// MemberRow is one deduplicated silver.group_members row.
type MemberRow struct {
	GroupID      string
	MemberType   MemberType
	MemberID     string
	IsDirect     bool
	SourceSystem string
}

// OwnerRow is one deduplicated silver.group_owners row. Ownership carries
// no direct/transitive distinction in the spec, unlike membership.
type OwnerRow struct {
	GroupID      string
	MemberType   MemberType
	MemberID     string
	SourceSystem string
}

const activeDirectorySource = "active_directory"

// ExtractMembers parses every group's members/direct_members list,
// classifies each identifier, and deduplicates by
// (group_id, member_type, id, source_system) per spec.md §4.6 steps 2-4.
// Unknown-type identifiers are discarded.
func ExtractMembers(groups []GroupInput) []MemberRow {
	type key struct {
		groupID, memberType, memberID, source string
	}
	seen := make(map[key]int, len(groups)*4)
	var rows []MemberRow

	directSet := func(g GroupInput) map[string]bool {
		set := make(map[string]bool, len(g.DirectMembers))
		for _, d := range g.DirectMembers {
			set[d] = true
		}
		return set
	}

	for _, g := range groups {
		direct := directSet(g)
		for _, raw := range g.Members {
			id, mtype := ParseIdentifier(raw)
			if mtype == MemberUnknown {
				continue
			}

			isDirect := g.SourceSystem == activeDirectorySource || direct[raw]

			k := key{g.GroupID, string(mtype), id, g.SourceSystem}
			if idx, ok := seen[k]; ok {
				// AD direct membership and an MCommunity match both being
				// true for the same key should still record is_direct=true.
				if isDirect {
					rows[idx].IsDirect = true
				}
				continue
			}
			seen[k] = len(rows)
			rows = append(rows, MemberRow{
				GroupID:      g.GroupID,
				MemberType:   mtype,
				MemberID:     id,
				IsDirect:     isDirect,
				SourceSystem: g.SourceSystem,
			})
		}
	}
	return rows
}

// ExtractOwners parses every group's owners list analogously to
// ExtractMembers, without the direct/transitive distinction.
func ExtractOwners(groups []GroupInput) []OwnerRow {
	type key struct {
		groupID, memberType, memberID, source string
	}
	seen := make(map[key]bool, len(groups)*2)
	var rows []OwnerRow

	for _, g := range groups {
		for _, raw := range g.Owners {
			id, mtype := ParseIdentifier(raw)
			if mtype == MemberUnknown {
				continue
			}
			k := key{g.GroupID, string(mtype), id, g.SourceSystem}
			if seen[k] {
				continue
			}
			seen[k] = true
			rows = append(rows, OwnerRow{
				GroupID:      g.GroupID,
				MemberType:   mtype,
				MemberID:     id,
				SourceSystem: g.SourceSystem,
			})
		}
	}
	return rows
}

// Engine writes the extracted link tables with a TRUNCATE+INSERT refresh
// per spec.md §4.6 step 5 (chunks of ~5000).
type Engine struct {
	db *storage.DB
}

func New(db *storage.DB) *Engine {
	return &Engine{db: db}
}

// Run extracts and rewrites both link tables from the given groups.
func (e *Engine) Run(ctx context.Context, groups []GroupInput) (memberCount, ownerCount int, err error) {
	members := ExtractMembers(groups)
	owners := ExtractOwners(groups)

	memberRows := make([]map[string]any, 0, len(members))
	for _, m := range members {
		row := map[string]any{
			"group_id":      m.GroupID,
			"member_type":   string(m.MemberType),
			"is_direct_member": m.IsDirect,
			"source_system": m.SourceSystem,
		}
		if m.MemberType == MemberGroup {
			row["member_group_id"] = m.MemberID
			row["member_uniqname"] = nil
		} else {
			row["member_uniqname"] = m.MemberID
			row["member_group_id"] = nil
		}
		memberRows = append(memberRows, row)
	}

	memberCount, err = e.db.TruncateAndInsert(ctx, "silver.group_members",
		[]string{"group_id", "member_type", "member_uniqname", "member_group_id", "is_direct_member", "source_system"},
		memberRows, 5000)
	if err != nil {
		return 0, 0, fmt.Errorf("rebuilding silver.group_members: %w", err)
	}

	ownerRows := make([]map[string]any, 0, len(owners))
	for _, o := range owners {
		row := map[string]any{
			"group_id":      o.GroupID,
			"member_type":   string(o.MemberType),
			"source_system": o.SourceSystem,
		}
		if o.MemberType == MemberGroup {
			row["member_group_id"] = o.MemberID
			row["member_uniqname"] = nil
		} else {
			row["member_uniqname"] = o.MemberID
			row["member_group_id"] = nil
		}
		ownerRows = append(ownerRows, row)
	}

	ownerCount, err = e.db.TruncateAndInsert(ctx, "silver.group_owners",
		[]string{"group_id", "member_type", "member_uniqname", "member_group_id", "source_system"},
		ownerRows, 5000)
	if err != nil {
		return memberCount, 0, fmt.Errorf("rebuilding silver.group_owners: %w", err)
	}
	return memberCount, ownerCount, nil
}
