package transform

import "fmt"

// LabAwardProjector projects bronze lab_awards/award rows (from the CSV
// source) into silver.lab_awards. Each row is its own entity: the natural
// key is the composite "<AwardID>-<PersonUniqname>-<PersonApptDeptID>"
// (spec.md §4.5.1), since one award can be split across multiple
// appointing departments for the same person.
type LabAwardProjector struct{}

func (LabAwardProjector) Table() string     { return "silver.lab_awards" }
func (LabAwardProjector) KeyColumn() string { return "award_key" }
func (LabAwardProjector) HashFields() []string {
	return []string{"award_id", "person_uniqname", "person_appt_dept_id", "award_title",
		"role", "sponsor", "direct_costs", "indirect_costs", "project_start_date", "project_end_date"}
}

func (LabAwardProjector) Project(doc map[string]any, rawID int64) ([]map[string]any, error) {
	awardID := stringField(doc, "AwardID")
	uniqname := stringField(doc, "PersonUniqname")
	deptID := stringField(doc, "PersonApptDeptID")
	key := fmt.Sprintf("%s-%s-%s", awardID, uniqname, deptID)

	row := map[string]any{
		"award_key":            key,
		"award_id":             awardID,
		"person_uniqname":      uniqname,
		"person_appt_dept_id":  deptID,
		"award_title":          stringField(doc, "AwardTitle"),
		"role":                 stringField(doc, "Role"),
		"sponsor":              stringField(doc, "Sponsor"),
		"direct_costs":         doc["DirectCosts"],
		"indirect_costs":       doc["IndirectCosts"],
		"project_start_date":   parseISO8601OrNil(doc["ProjectStartDate"]),
		"project_end_date":     parseISO8601OrNil(doc["ProjectEndDate"]),
		"raw_id":               rawID,
		"source_system":        "lab_awards",
	}
	return []map[string]any{row}, nil
}
