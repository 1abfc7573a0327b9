package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabAwardProjectorBuildsCompositeKey(t *testing.T) {
	doc := map[string]any{
		"AwardID":          "AW100",
		"PersonUniqname":   "jdoe",
		"PersonApptDeptID": "D200",
		"AwardTitle":       "Research Grant",
	}
	rows, err := LabAwardProjector{}.Project(doc, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "AW100-jdoe-D200", rows[0]["award_key"])
}

func TestIdentityPersonProjectorFansOutPerAppointment(t *testing.T) {
	doc := map[string]any{
		"Uniqname": "jdoe",
		"FullName": "Jane Doe",
		"Appointments": []any{
			map[string]any{"EmplRcd": "0", "JobTitle": "Researcher", "DepartmentID": "D1"},
			map[string]any{"EmplRcd": "1", "JobTitle": "Lecturer", "DepartmentID": "D2"},
		},
	}
	rows, err := IdentityPersonProjector{}.Project(doc, 11)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "jdoe-0", rows[0]["person_key"])
	assert.Equal(t, "jdoe-1", rows[1]["person_key"])
}

func TestIdentityPersonProjectorFallsBackWithoutAppointments(t *testing.T) {
	doc := map[string]any{"Uniqname": "jdoe", "FullName": "Jane Doe"}
	rows, err := IdentityPersonProjector{}.Project(doc, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "jdoe-", rows[0]["person_key"])
}
