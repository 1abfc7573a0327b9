package consolidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupDepartmentsPrefersIdentityDeptIDAsCanonical(t *testing.T) {
	tdx := []map[string]any{{"tdx_department_id": "100", "department_name": "Physics"}}
	identity := []map[string]any{{"department_id": "100", "campus": "Ann Arbor"}}

	grouped := GroupDepartments(tdx, identity)
	require.Contains(t, grouped, "100")
	s := grouped["100"]
	assert.NotNil(t, s.TDX)
	assert.NotNil(t, s.Identity)
}

func TestGroupDepartmentsKeepsTDXOnlyDepartments(t *testing.T) {
	tdx := []map[string]any{{"tdx_department_id": "200", "department_name": "Chemistry"}}
	grouped := GroupDepartments(tdx, nil)
	require.Contains(t, grouped, "200")
	assert.Nil(t, grouped["200"].Identity)
}

func TestMergeDepartmentBuildsHierarchicalPath(t *testing.T) {
	s := &DepartmentSources{
		CanonicalID: "100",
		TDX:         map[string]any{"department_description": "Physics Dept"},
		Identity:    map[string]any{"campus": "Ann Arbor", "vp_area": "Provost", "college": "LSA"},
	}
	row := MergeDepartment(s)
	assert.Equal(t, "Ann Arbor/Provost/LSA/Physics Dept", row["hierarchical_path"])
}

func TestMergeDepartmentMissingCodeAndDescriptionPenalized(t *testing.T) {
	s := &DepartmentSources{CanonicalID: "300", TDX: map[string]any{}}
	row := MergeDepartment(s)
	assert.Contains(t, row["quality_flags"], "missing_dept_code")
	assert.Contains(t, row["quality_flags"], "missing_dept_description")
}
