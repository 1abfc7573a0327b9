package consolidate

import "strings"

// adOUMinDepth is the AD OU nesting depth spec.md §4.7's is_pi rule treats
// as "deep enough" to imply PI status for an extracted uniqname.
const adOUMinDepth = 8

// ComputePISet unions uniqnames from lab-awards rows whose role mentions
// "Principal Investigator" with AD rows whose OU path is at least
// adOUMinDepth deep and whose sam_account_name is set (lowercased as the
// uniqname), per spec.md §4.7.
func ComputePISet(labAwardRows []map[string]any, adRows []map[string]any) map[string]bool {
	pis := map[string]bool{}
	for _, r := range labAwardRows {
		role := stringVal(r, "role")
		if !strings.Contains(strings.ToLower(role), "principal investigator") {
			continue
		}
		uniqname := strings.ToLower(stringVal(r, "person_uniqname"))
		if uniqname != "" {
			pis[uniqname] = true
		}
	}
	for _, r := range adRows {
		ouPath, _ := r["ou_path"].([]string)
		if len(ouPath) < adOUMinDepth {
			continue
		}
		uniqname := strings.ToLower(stringVal(r, "sam_account_name"))
		if uniqname != "" {
			pis[uniqname] = true
		}
	}
	return pis
}
