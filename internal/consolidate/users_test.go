package consolidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupUsersByUniqnameBucketsAcrossSources(t *testing.T) {
	tdx := []map[string]any{{"username": "JDoe", "first_name": "Jane"}}
	identity := []map[string]any{{"uniqname": "jdoe", "empl_rcd": "0", "job_title": "Researcher"}}
	ad := []map[string]any{{"sam_account_name": "jdoe", "is_enabled": true}}

	grouped := GroupUsersByUniqname(tdx, identity, nil, ad)
	require.Contains(t, grouped, "jdoe")
	s := grouped["jdoe"]
	assert.Len(t, s.TDX, 1)
	assert.Len(t, s.Identity, 1)
	assert.Len(t, s.AD, 1)
}

func TestMergeUserAppliesFieldPrecedence(t *testing.T) {
	s := &UserSources{
		Uniqname: "jdoe",
		TDX:      []map[string]any{{"first_name": "TDXJane", "last_name": "Doe", "primary_email": "jdoe@tdx.example"}},
		Identity: []map[string]any{{"empl_rcd": "0", "first_name": "", "job_title": "Researcher", "department_id": "D1"}},
		MCommunity: []map[string]any{{"common_name": "Jane Q Doe"}},
	}
	row := MergeUser(s, false)
	assert.Equal(t, "TDXJane", row["first_name"])
	assert.Equal(t, "jdoe@tdx.example", row["primary_email"])
	assert.Equal(t, "Researcher", row["job_title"])
	assert.Equal(t, "mcom+tdx+umapi", row["source_system"])
}

func TestMergeUserSingleSourcePenalized(t *testing.T) {
	s := &UserSources{Uniqname: "solo", AD: []map[string]any{{"is_enabled": true}}}
	row := MergeUser(s, false)
	assert.Less(t, row["quality_score"].(float64), 1.0)
	assert.Contains(t, row["quality_flags"], "single_source")
}

func TestMergeUserIsPIPropagates(t *testing.T) {
	s := &UserSources{Uniqname: "pi1", TDX: []map[string]any{{}}}
	row := MergeUser(s, true)
	assert.Equal(t, true, row["is_pi"])
}
