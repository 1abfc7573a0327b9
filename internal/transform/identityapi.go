package transform

import (
	"fmt"
	"strings"
)

// IdentityPersonProjector projects bronze identity_api/person rows into
// silver.identity_people. A person may carry several job appointments
// (empl_rcd), each yielding its own Silver-source row keyed by
// "<uniqname>-<empl_rcd>"; cross-record aggregation into one canonical
// person happens later, in consolidation (spec.md §4.5.1, §4.7).
type IdentityPersonProjector struct{}

func (IdentityPersonProjector) Table() string     { return "silver.identity_people" }
func (IdentityPersonProjector) KeyColumn() string { return "person_key" }
func (IdentityPersonProjector) HashFields() []string {
	return []string{"uniqname", "empl_rcd", "job_title", "department_id", "appointment_status", "full_name"}
}

func (IdentityPersonProjector) Project(doc map[string]any, rawID int64) ([]map[string]any, error) {
	uniqname := stringField(doc, "Uniqname")
	records, _ := doc["Appointments"].([]any)
	if len(records) == 0 {
		return []map[string]any{identityRow(doc, uniqname, doc, rawID)}, nil
	}

	rows := make([]map[string]any, 0, len(records))
	for _, r := range records {
		appt, ok := r.(map[string]any)
		if !ok {
			continue
		}
		rows = append(rows, identityRow(doc, uniqname, appt, rawID))
	}
	return rows, nil
}

func identityRow(person map[string]any, uniqname string, appt map[string]any, rawID int64) map[string]any {
	emplRcd := stringField(appt, "EmplRcd")
	return map[string]any{
		"person_key":         fmt.Sprintf("%s-%s", uniqname, emplRcd),
		"uniqname":           uniqname,
		"empl_rcd":           emplRcd,
		"full_name":          stringField(person, "FullName"),
		"primary_email":      stringField(person, "PrimaryEmail"),
		"job_title":          stringField(appt, "JobTitle"),
		"department_id":      stringField(appt, "DepartmentID"),
		"appointment_status": stringField(appt, "Status"),
		"raw_id":             rawID,
		"source_system":      "identity_api",
	}
}

// IdentityDepartmentProjector projects bronze identity_api/department rows
// into silver.identity_departments, the single-source hierarchy table
// (campus/VP area/college) consolidation merges with TDX's department
// hierarchy (spec.md §4.7; original_source's
// silver/005_transform_umapi_departments.py).
type IdentityDepartmentProjector struct{}

func (IdentityDepartmentProjector) Table() string     { return "silver.identity_departments" }
func (IdentityDepartmentProjector) KeyColumn() string { return "department_id" }
func (IdentityDepartmentProjector) HashFields() []string {
	return []string{"department_name", "department_code", "department_description", "campus", "vp_area", "college", "hierarchical_path"}
}

func (IdentityDepartmentProjector) Project(doc map[string]any, rawID int64) ([]map[string]any, error) {
	campus := stringField(doc, "DeptGroupCampusDescr")
	vpArea := stringField(doc, "DeptGroupVPAreaDescr")
	college := stringField(doc, "DeptGroupDescription")
	description := stringField(doc, "DeptDescription")

	var pathParts []string
	for _, p := range []string{campus, vpArea, college, description} {
		if p != "" {
			pathParts = append(pathParts, p)
		}
	}

	row := map[string]any{
		"department_id":          stringField(doc, "DeptId"),
		"department_name":        description,
		"department_code":        stringField(doc, "DeptGroup"),
		"department_description": description,
		"campus":                 campus,
		"vp_area":                vpArea,
		"college":                college,
		"hierarchical_path":      strings.Join(pathParts, "/"),
		"raw_id":                 rawID,
		"source_system":          "identity_api",
	}
	return []map[string]any{row}, nil
}
