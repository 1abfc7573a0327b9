package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityPersonProjectorExpandsAppointments(t *testing.T) {
	doc := map[string]any{
		"Uniqname": "asmith",
		"FullName": "Smith, Alice",
		"Appointments": []any{
			map[string]any{"EmplRcd": "0", "JobTitle": "Research Fellow", "DepartmentID": "123456", "Status": "Active"},
			map[string]any{"EmplRcd": "1", "JobTitle": "Lecturer", "DepartmentID": "654321", "Status": "Active"},
		},
	}
	rows, err := IdentityPersonProjector{}.Project(doc, 9)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "asmith-0", rows[0]["person_key"])
	assert.Equal(t, "Research Fellow", rows[0]["job_title"])
	assert.Equal(t, "asmith-1", rows[1]["person_key"])
	assert.Equal(t, "Lecturer", rows[1]["job_title"])
}

func TestIdentityPersonProjectorFallsBackWithoutAppointments(t *testing.T) {
	doc := map[string]any{"Uniqname": "bwong", "FullName": "Wong, Bob"}
	rows, err := IdentityPersonProjector{}.Project(doc, 9)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "bwong-", rows[0]["person_key"])
}

func TestIdentityDepartmentProjectorBuildsHierarchicalPath(t *testing.T) {
	doc := map[string]any{
		"DeptId":               "123456",
		"DeptGroup":            "PSYCH",
		"DeptDescription":      "Psychology",
		"DeptGroupCampusDescr": "Ann Arbor",
		"DeptGroupVPAreaDescr": "Academic Affairs",
		"DeptGroupDescription": "LSA",
	}
	rows, err := IdentityDepartmentProjector{}.Project(doc, 4)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "123456", row["department_id"])
	assert.Equal(t, "PSYCH", row["department_code"])
	assert.Equal(t, "Ann Arbor/Academic Affairs/LSA/Psychology", row["hierarchical_path"])
}

func TestIdentityDepartmentProjectorSkipsEmptyHierarchyParts(t *testing.T) {
	doc := map[string]any{
		"DeptId":          "999",
		"DeptDescription": "Unassigned",
	}
	rows, err := IdentityDepartmentProjector{}.Project(doc, 4)
	require.NoError(t, err)
	assert.Equal(t, "Unassigned", rows[0]["hierarchical_path"])
}
