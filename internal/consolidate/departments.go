package consolidate

import (
	"strings"

	"github.com/lsats/databridge/internal/quality"
)

// DepartmentSources groups one canonical department's TDX and identity-API
// Silver-source rows (spec.md §4.7).
type DepartmentSources struct {
	CanonicalID string
	TDX         map[string]any
	Identity    map[string]any
}

// GroupDepartments keys TDX and identity-API department rows by the
// canonical id: identity-API's DeptID when present, otherwise TDX's id
// (spec.md §4.7's "use identity-API DeptID as canonical when present").
func GroupDepartments(tdx, identity []map[string]any) map[string]*DepartmentSources {
	out := map[string]*DepartmentSources{}
	tdxByID := map[string]map[string]any{}
	for _, r := range tdx {
		if id := stringVal(r, "tdx_department_id"); id != "" {
			tdxByID[id] = r
		}
	}

	for _, r := range identity {
		id := stringVal(r, "department_id")
		if id == "" {
			continue
		}
		s := &DepartmentSources{CanonicalID: id, Identity: r}
		if tdxRow, ok := tdxByID[id]; ok {
			s.TDX = tdxRow
			delete(tdxByID, id)
		}
		out[id] = s
	}
	// Remaining unmatched TDX rows become their own canonical department.
	for id, r := range tdxByID {
		out[id] = &DepartmentSources{CanonicalID: id, TDX: r}
	}
	return out
}

// MergeDepartment merges TDX (hierarchy/manager source of truth) and
// identity-API (campus/college/VP-area source of truth) into a canonical
// silver.departments row, with the slash-joined hierarchical path of
// spec.md §4.7.
func MergeDepartment(s *DepartmentSources) map[string]any {
	name := firstNonEmpty(stringVal(s.Identity, "department_name"), stringVal(s.TDX, "department_name"))
	code := firstNonEmpty(stringVal(s.Identity, "department_code"), stringVal(s.TDX, "department_code"))
	description := firstNonEmpty(stringVal(s.TDX, "department_description"), stringVal(s.Identity, "department_description"))
	parentID := stringVal(s.TDX, "parent_department_id")
	managerUID := stringVal(s.TDX, "manager_uid")
	managerName := stringVal(s.TDX, "manager_name")

	campus := stringVal(s.Identity, "campus")
	vpArea := stringVal(s.Identity, "vp_area")
	college := stringVal(s.Identity, "college")

	var pathParts []string
	for _, p := range []string{campus, vpArea, college, description} {
		if p != "" {
			pathParts = append(pathParts, p)
		}
	}
	hierarchicalPath := strings.Join(pathParts, "/")

	sources := []string{}
	if s.TDX != nil {
		sources = append(sources, "tdx")
	}
	if s.Identity != nil {
		sources = append(sources, "identity_api")
	}

	row := map[string]any{
		"department_id":       s.CanonicalID,
		"department_name":     name,
		"department_code":     code,
		"department_description": description,
		"parent_department_id": parentID,
		"manager_uid":          managerUID,
		"manager_name":         managerName,
		"campus":               campus,
		"vp_area":              vpArea,
		"college":              college,
		"hierarchical_path":    hierarchicalPath,
		"source_system":        strings.Join(sources, "+"),
	}

	score := quality.NewScore()
	if code == "" {
		score.Subtract(0.30, "missing_dept_code")
	}
	if description == "" {
		score.Subtract(0.30, "missing_dept_description")
	}
	if len(sources) == 1 {
		score.Subtract(0.15, "single_source")
	}
	value, flags := score.Finish()
	row["quality_score"] = value
	row["quality_flags"] = flags
	return row
}
