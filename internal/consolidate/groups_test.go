package consolidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupGroupsBucketsByDN(t *testing.T) {
	ad := []map[string]any{{"distinguished_name": "CN=lab-staff,OU=Groups,DC=umich,DC=edu", "common_name": "lab-staff", "members": []string{"uid=a,dc=umich,dc=edu"}}}
	mcomm := []map[string]any{{"distinguished_name": "cn=lab-staff,ou=Groups,dc=umich,dc=edu", "common_name": "lab-staff", "direct_members": []string{"uid=b,dc=umich,dc=edu"}}}

	grouped := GroupGroups(ad, mcomm)
	require.Len(t, grouped, 1)
	for _, g := range grouped {
		assert.NotNil(t, g.AD)
		assert.NotNil(t, g.MCommunity)
	}
}

func TestMergeGroupCombinesMembersAcrossSources(t *testing.T) {
	s := &GroupSources{
		DistinguishedName: "cn=lab-staff,dc=umich,dc=edu",
		AD:                map[string]any{"common_name": "lab-staff", "members": []string{"a"}},
		MCommunity:        map[string]any{"common_name": "lab-staff", "direct_members": []string{"b"}, "members": []string{"a", "b"}},
	}
	row := MergeGroup(s)
	assert.Equal(t, "lab-staff", row["common_name"])
	assert.ElementsMatch(t, []string{"a", "b"}, row["members"])
	assert.Equal(t, "active_directory+mcommunity_ldap", row["source_system"])
}

func TestMergeGroupSingleSourcePenalized(t *testing.T) {
	s := &GroupSources{DistinguishedName: "cn=solo,dc=umich,dc=edu", AD: map[string]any{"common_name": "solo", "members": []string{"a"}}}
	row := MergeGroup(s)
	assert.Contains(t, row["quality_flags"], "single_source")
}
