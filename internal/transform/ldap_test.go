package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestADUserProjectorParsesOUAndEnabledFlag(t *testing.T) {
	doc := map[string]any{
		"distinguishedName":  "CN=Jane Doe,OU=Staff,OU=Engineering,DC=umich,DC=edu",
		"sAMAccountName":     "jdoe",
		"cn":                 "Jane Doe",
		"userAccountControl": float64(512),
		"memberOf":           []any{"CN=Eng-All,OU=Groups,DC=umich,DC=edu"},
	}
	rows, err := ADUserProjector{}.Project(doc, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "jdoe", row["sam_account_name"])
	assert.Equal(t, "Staff", row["immediate_parent_ou"])
	assert.Equal(t, true, row["is_enabled"])
	assert.Equal(t, []string{"CN=Eng-All,OU=Groups,DC=umich,DC=edu"}, row["member_of"])
}

func TestADUserProjectorDisabledBitClearsEnabled(t *testing.T) {
	doc := map[string]any{
		"distinguishedName":  "CN=Jane Doe,OU=Staff,DC=umich,DC=edu",
		"userAccountControl": float64(514), // 512 | 2 (disabled)
	}
	rows, err := ADUserProjector{}.Project(doc, 1)
	require.NoError(t, err)
	assert.Equal(t, false, rows[0]["is_enabled"])
}

func TestADComputerProjectorParsesWhenChanged(t *testing.T) {
	doc := map[string]any{
		"distinguishedName": "CN=LAB-PC-01,OU=Computers,DC=umich,DC=edu",
		"cn":                "LAB-PC-01",
		"whenChanged":       "20250103120000.0Z",
	}
	rows, err := ADComputerProjector{}.Project(doc, 7)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "CN=LAB-PC-01,OU=Computers,DC=umich,DC=edu", row["distinguished_name"])
	assert.Equal(t, "LAB-PC-01", row["common_name"])
	assert.False(t, row["when_changed"].(interface{ IsZero() bool }).IsZero())
}

func TestMCommunityGroupProjectorSeparatesDirectMembers(t *testing.T) {
	doc := map[string]any{
		"dn":                "cn=lsa-research,ou=User Groups,dc=umich,dc=edu",
		"cn":                "lsa-research",
		"member":            []any{"uid=asmith,ou=People,dc=umich,dc=edu", "uid=bwong,ou=People,dc=umich,dc=edu"},
		"mcommDirectMember": []any{"uid=asmith,ou=People,dc=umich,dc=edu"},
	}
	rows, err := MCommunityGroupProjector{}.Project(doc, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0]["members"], 2)
	assert.Len(t, rows[0]["direct_members"], 1)
}
