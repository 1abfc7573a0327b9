package labassoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverFindsOwnerIsPI(t *testing.T) {
	computers := []Computer{{ComputerID: "c1", OwnerUniqname: "jdoe", ComputerName: "LABPC-01"}}
	labs := []Lab{{LabID: "l1", PIUniqname: "jdoe"}}

	assocs := Discover(computers, labs, nil, nil)
	require.Len(t, assocs, 1)
	assert.Equal(t, MethodOwnerIsPI, assocs[0].Method)
	assert.Equal(t, Tier1, assocs[0].Tier)
}

func TestDiscoverDedupesToHighestBase(t *testing.T) {
	// Owner is PI (0.85) should win over name-contains-PI (0.70) for the
	// same (computer, lab) pair.
	computers := []Computer{{ComputerID: "c1", OwnerUniqname: "jdoe", ComputerName: "jdoe-labpc"}}
	labs := []Lab{{LabID: "l1", PIUniqname: "jdoe"}}

	assocs := Discover(computers, labs, nil, nil)
	require.Len(t, assocs, 1)
	assert.Equal(t, MethodOwnerIsPI, assocs[0].Method)
}

func TestScoreTier1ClampedToHighRange(t *testing.T) {
	c := Computer{ComputerID: "c1", OwnerUniqname: "jdoe", FunctionName: "Administrative"}
	lab := Lab{LabID: "l1", PIUniqname: "jdoe"}
	a := Score(c, lab, MethodOwnerIsPI, "", nil)
	assert.GreaterOrEqual(t, a.FinalConfidence, 0.70)
	assert.LessOrEqual(t, a.FinalConfidence, 1.00)
}

func TestScoreTier2NeverEscalatesAboveCap(t *testing.T) {
	c := Computer{ComputerID: "c1", OwnerUniqname: "member1", FunctionName: "Research"}
	lab := Lab{LabID: "l1", PIUniqname: "jdoe"}
	members := map[string]bool{"member1": true}
	a := Score(c, lab, MethodOwnerIsMember, "", members)
	assert.LessOrEqual(t, a.FinalConfidence, 0.50)
	assert.GreaterOrEqual(t, a.FinalConfidence, 0.20)
}

func TestScoreFlagsAdminFunctionAndLowConfidence(t *testing.T) {
	c := Computer{ComputerID: "c1", OwnerUniqname: "stranger", FunctionName: "Administrative"}
	lab := Lab{LabID: "l1", PIUniqname: "jdoe"}
	a := Score(c, lab, MethodOwnerIsMember, "", map[string]bool{})
	assert.Contains(t, a.QualityFlags, "admin_function")
	assert.Contains(t, a.QualityFlags, "owner_not_affiliated")
	assert.Contains(t, a.QualityFlags, "low_confidence")
}

func TestSelectPrimaryPicksMaxConfidenceTieBrokenByLabID(t *testing.T) {
	assocs := []Association{
		{ComputerID: "c1", LabID: "lb", FinalConfidence: 0.80},
		{ComputerID: "c1", LabID: "la", FinalConfidence: 0.80},
	}
	withPrimary, primaryByComputer, countByComputer := SelectPrimary(assocs)
	require.Len(t, withPrimary, 2)
	assert.Equal(t, "la", primaryByComputer["c1"].LabID)
	assert.Equal(t, 2, countByComputer["c1"])
}
