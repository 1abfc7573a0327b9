// Package consolidate merges per-source Silver tables into the canonical
// Silver-consolidated entities (spec.md §4.7), scoring each with
// internal/quality.
package consolidate

import (
	"sort"
	"strings"

	"github.com/lsats/databridge/internal/quality"
)

// UserSources groups a single uniqname's rows across the four source
// tables. Each slice holds every row for that uniqname from its table
// (identity-API carries one row per empl_rcd, spec.md §4.7).
type UserSources struct {
	Uniqname     string
	TDX          []map[string]any
	Identity     []map[string]any
	MCommunity   []map[string]any
	AD           []map[string]any
}

// GroupUsersByUniqname buckets rows from the four Silver-source tables by
// lowercased uniqname, in preparation for per-user merge.
func GroupUsersByUniqname(tdx, identity, mcommunity, ad []map[string]any) map[string]*UserSources {
	out := map[string]*UserSources{}
	get := func(uniqname string) *UserSources {
		key := strings.ToLower(strings.TrimSpace(uniqname))
		if key == "" {
			return nil
		}
		s, ok := out[key]
		if !ok {
			s = &UserSources{Uniqname: key}
			out[key] = s
		}
		return s
	}
	for _, r := range tdx {
		if s := get(stringVal(r, "username")); s != nil {
			s.TDX = append(s.TDX, r)
		}
	}
	for _, r := range identity {
		if s := get(stringVal(r, "uniqname")); s != nil {
			s.Identity = append(s.Identity, r)
		}
	}
	for _, r := range mcommunity {
		if s := get(stringVal(r, "uid")); s != nil {
			s.MCommunity = append(s.MCommunity, r)
		}
	}
	for _, r := range ad {
		if s := get(stringVal(r, "sam_account_name")); s != nil {
			s.AD = append(s.AD, r)
		}
	}
	return out
}

// MergeUser merges one uniqname's rows into a canonical silver.users row,
// applying the field-precedence table and coverage-based quality scoring
// of spec.md §4.7/§4.8. isPI reports whether the uniqname is in the
// precomputed PI set (spec.md §4.7's is_pi rule).
func MergeUser(s *UserSources, isPI bool) map[string]any {
	identityPrimary := lowestEmplRcd(s.Identity)

	firstName := firstNonEmpty(
		stringVal(pick(s.TDX), "first_name"),
		stringVal(identityPrimary, "first_name"),
		stringVal(pick(s.MCommunity), "first_name"),
		stringVal(pick(s.AD), "first_name"),
	)
	lastName := firstNonEmpty(
		stringVal(pick(s.TDX), "last_name"),
		stringVal(identityPrimary, "last_name"),
		stringVal(pick(s.MCommunity), "last_name"),
		stringVal(pick(s.AD), "last_name"),
	)

	fullName := ""
	if firstName != "" || lastName != "" {
		fullName = strings.TrimSpace(lastName + ", " + firstName)
	}
	fullName = firstNonEmpty(
		fullName,
		stringVal(pick(s.MCommunity), "common_name"),
		stringVal(pick(s.AD), "common_name"),
	)

	email := firstNonEmpty(
		stringVal(pick(s.TDX), "primary_email"),
		stringVal(pick(s.MCommunity), "primary_email"),
		stringVal(pick(s.AD), "primary_email"),
	)
	workPhone := firstNonEmpty(
		stringVal(identityPrimary, "work_phone"),
		stringVal(pick(s.MCommunity), "work_phone"),
	)
	deptID := firstNonEmpty(
		stringVal(identityPrimary, "department_id"),
		stringVal(pick(s.TDX), "default_account_id"),
	)
	deptName := firstNonEmpty(
		stringVal(identityPrimary, "department_name"),
		stringVal(pick(s.TDX), "default_account_name"),
	)
	jobTitle := firstNonEmpty(
		stringVal(identityPrimary, "job_title"),
		stringVal(pick(s.MCommunity), "job_title"),
		stringVal(pick(s.TDX), "job_title"),
	)

	isActive := boolVal(pick(s.TDX), "is_active") ||
		(len(s.AD) > 0 && boolVal(pick(s.AD), "is_enabled")) ||
		len(s.Identity) > 0 ||
		len(s.MCommunity) > 0

	sources := contributingSources(s)

	row := map[string]any{
		"uniqname":            s.Uniqname,
		"first_name":          firstName,
		"last_name":           lastName,
		"full_name":           fullName,
		"primary_email":       email,
		"work_phone":          workPhone,
		"department_id":       deptID,
		"department_name":     deptName,
		"job_title":           jobTitle,
		"is_active":           isActive,
		"is_pi":               isPI,
		"source_system":       strings.Join(sources, "+"),
		"department_ids":      collectStrings(s.Identity, "department_id"),
		"job_codes":           collectStrings(s.Identity, "job_code"),
		"supervisor_ids":      collectStrings(s.Identity, "supervisor_id"),
		"umich_empl_ids":      collectStrings(s.Identity, "umich_empl_id"),
	}

	score := quality.NewScore()
	if email == "" {
		score.Subtract(0.15, "missing_email")
	}
	if firstName == "" || lastName == "" {
		score.Subtract(0.10, "missing_name_parts")
	}
	if deptID == "" {
		score.Subtract(0.20, "missing_department")
	}
	if jobTitle == "" {
		score.Subtract(0.10, "missing_job_title")
	}
	coverage := len(sources)
	if coverage == 1 {
		score.Subtract(0.15, "single_source")
	}
	if coverage == 4 {
		score.Add(0.10)
	}
	value, flags := score.Finish()
	row["quality_score"] = value
	row["quality_flags"] = flags
	return row
}

func lowestEmplRcd(rows []map[string]any) map[string]any {
	var best map[string]any
	bestRcd := ""
	for _, r := range rows {
		rcd := stringVal(r, "empl_rcd")
		if best == nil || len(rcd) < len(bestRcd) || (len(rcd) == len(bestRcd) && rcd < bestRcd) {
			best = r
			bestRcd = rcd
		}
	}
	return best
}

func pick(rows []map[string]any) map[string]any {
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

// contributingSources returns the abbreviated source tags spec.md §8
// scenario 4 asserts verbatim ("ad+mcom+tdx+umapi"), sorted so the joined
// source_system value is deterministic regardless of merge order.
func contributingSources(s *UserSources) []string {
	var sources []string
	if len(s.TDX) > 0 {
		sources = append(sources, "tdx")
	}
	if len(s.Identity) > 0 {
		sources = append(sources, "umapi")
	}
	if len(s.MCommunity) > 0 {
		sources = append(sources, "mcom")
	}
	if len(s.AD) > 0 {
		sources = append(sources, "ad")
	}
	sort.Strings(sources)
	return sources
}

func collectStrings(rows []map[string]any, field string) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range rows {
		v := stringVal(r, field)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func stringVal(row map[string]any, field string) string {
	if row == nil {
		return ""
	}
	s, _ := row[field].(string)
	return s
}

func boolVal(row map[string]any, field string) bool {
	if row == nil {
		return false
	}
	b, _ := row[field].(bool)
	return b
}
