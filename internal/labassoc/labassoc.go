// Package labassoc implements the lab-computer associator (spec.md §4.9):
// multi-method discovery, additive confidence scoring with tier bounds,
// and primary-association selection.
package labassoc

import (
	"sort"
	"strings"

	"github.com/lsats/databridge/internal/quality"
)

// Tier is the discovery-method strength class controlling the final
// confidence clamp (spec.md §4.9's "hierarchical tier bounds").
type Tier int

const (
	Tier1 Tier = iota
	Tier2
)

// Method identifies a discovery method, each with a fixed base confidence
// and tier (spec.md §4.9's method table).
type Method string

const (
	MethodADOUNested       Method = "ad_ou_nested"
	MethodOwnerIsPI        Method = "owner_is_pi"
	MethodFinOwnerIsPI     Method = "fin_owner_is_pi"
	MethodNameContainsPI   Method = "name_contains_pi"
	MethodOwnerIsMember    Method = "owner_is_member"
	MethodLastUserIsMember Method = "last_user_is_member"
)

var methodBase = map[Method]struct {
	base float64
	tier Tier
}{
	MethodADOUNested:       {0.80, Tier1},
	MethodOwnerIsPI:        {0.85, Tier1},
	MethodFinOwnerIsPI:     {0.80, Tier1},
	MethodNameContainsPI:   {0.70, Tier1},
	MethodOwnerIsMember:    {0.35, Tier2},
	MethodLastUserIsMember: {0.30, Tier2},
}

// Computer is the subset of silver.computers fields the associator needs.
type Computer struct {
	ComputerID          string
	ComputerName        string
	DistinguishedName   string // AD DN, for the OU-nested method
	OwnerUniqname       string
	FinancialOwnerUID   string
	LastUser            string
	FunctionName        string
}

// Lab is the subset of silver.labs fields the associator needs.
type Lab struct {
	LabID      string
	PIUniqname string
	ADOUDN     string
	HasADOU    bool
}

// Association is one (computer, lab) discovery result, post-scoring.
type Association struct {
	ComputerID string
	LabID      string
	Method     Method
	Tier       Tier
	BaseConfidence  float64
	FinalConfidence float64
	IsPrimary       bool

	OwnerIsPI          bool
	FinOwnerIsPI       bool
	OwnerIsMember      bool
	FinOwnerIsMember   bool
	FunctionIsResearch bool
	FunctionIsClassroom bool

	QualityFlags []string
}

// Discover runs every discovery method for every (computer, lab) pair,
// deduplicating to the highest-base method per pair (spec.md §4.9).
func Discover(computers []Computer, labs []Lab, finOwnerByComputer map[string]string, labMembers map[string]map[string]bool) []Association {
	type candidate struct {
		computerID string
		labID      string
		method     Method
		base       float64
	}
	best := map[string]candidate{}
	keyOf := func(computerID, labID string) string { return computerID + "\x00" + labID }

	consider := func(computerID, labID string, method Method) {
		base := methodBase[method].base
		key := keyOf(computerID, labID)
		if existing, ok := best[key]; !ok || base > existing.base {
			best[key] = candidate{computerID, labID, method, base}
		}
	}

	for _, c := range computers {
		finOwner := finOwnerByComputer[c.ComputerID]
		for _, lab := range labs {
			if lab.HasADOU && c.DistinguishedName != "" && containsOU(c.DistinguishedName, lab.ADOUDN) {
				consider(c.ComputerID, lab.LabID, MethodADOUNested)
			}
			if lab.PIUniqname != "" && strings.EqualFold(c.OwnerUniqname, lab.PIUniqname) {
				consider(c.ComputerID, lab.LabID, MethodOwnerIsPI)
			}
			if lab.PIUniqname != "" && strings.EqualFold(finOwner, lab.PIUniqname) {
				consider(c.ComputerID, lab.LabID, MethodFinOwnerIsPI)
			}
			if lab.PIUniqname != "" && c.ComputerName != "" &&
				strings.Contains(strings.ToLower(c.ComputerName), strings.ToLower(lab.PIUniqname)) {
				consider(c.ComputerID, lab.LabID, MethodNameContainsPI)
			}
			members := labMembers[lab.LabID]
			if members != nil && c.OwnerUniqname != "" && !strings.EqualFold(c.OwnerUniqname, lab.PIUniqname) &&
				members[strings.ToLower(c.OwnerUniqname)] {
				consider(c.ComputerID, lab.LabID, MethodOwnerIsMember)
			}
			if members != nil && c.LastUser != "" && members[strings.ToLower(c.LastUser)] {
				consider(c.ComputerID, lab.LabID, MethodLastUserIsMember)
			}
		}
	}

	out := make([]candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].computerID != out[j].computerID {
			return out[i].computerID < out[j].computerID
		}
		return out[i].labID < out[j].labID
	})

	computerByID := map[string]Computer{}
	for _, c := range computers {
		computerByID[c.ComputerID] = c
	}
	labByID := map[string]Lab{}
	for _, l := range labs {
		labByID[l.LabID] = l
	}

	assocs := make([]Association, 0, len(out))
	for _, cand := range out {
		c := computerByID[cand.computerID]
		lab := labByID[cand.labID]
		finOwner := finOwnerByComputer[cand.computerID]
		members := labMembers[cand.labID]
		assocs = append(assocs, Score(c, lab, cand.method, finOwner, members))
	}
	return assocs
}

func containsOU(computerDN, labOUDN string) bool {
	if labOUDN == "" {
		return false
	}
	return strings.Contains(strings.ToUpper(computerDN), strings.ToUpper(labOUDN))
}

// Score computes the additive score, tier clamp, criteria flags, and
// quality flags for one discovered (computer, lab) pair, per spec.md
// §4.9's bonus/penalty table.
func Score(c Computer, lab Lab, method Method, financialOwnerUID string, labMembers map[string]bool) Association {
	spec := methodBase[method]
	score2 := scoreAccumulator{value: spec.base}

	ownerIsPI := lab.PIUniqname != "" && strings.EqualFold(c.OwnerUniqname, lab.PIUniqname)
	finOwnerIsPI := lab.PIUniqname != "" && strings.EqualFold(financialOwnerUID, lab.PIUniqname)
	inOU := lab.HasADOU && containsOU(c.DistinguishedName, lab.ADOUDN)
	nameContainsPI := lab.PIUniqname != "" && c.ComputerName != "" &&
		strings.Contains(strings.ToLower(c.ComputerName), strings.ToLower(lab.PIUniqname))
	ownerIsMember := labMembers != nil && c.OwnerUniqname != "" && !ownerIsPI && labMembers[strings.ToLower(c.OwnerUniqname)]
	finOwnerIsMember := labMembers != nil && financialOwnerUID != "" && !finOwnerIsPI && labMembers[strings.ToLower(financialOwnerUID)]

	if finOwnerIsPI && method != MethodFinOwnerIsPI {
		score2.value += 0.15
	}
	if ownerIsPI && method != MethodOwnerIsPI {
		score2.value += 0.12
	}
	if inOU && method != MethodADOUNested {
		score2.value += 0.10
	}
	if nameContainsPI && method != MethodNameContainsPI {
		score2.value += 0.08
	}

	functionIsResearch := strings.EqualFold(c.FunctionName, "Research")
	functionIsClassroom := strings.EqualFold(c.FunctionName, "Classroom")
	functionIsAdmin := strings.EqualFold(c.FunctionName, "Administrative") || strings.EqualFold(c.FunctionName, "Staff")
	functionIsDev := strings.EqualFold(c.FunctionName, "Development") || strings.EqualFold(c.FunctionName, "Testing")
	functionKnown := functionIsResearch || functionIsClassroom || functionIsAdmin || functionIsDev || c.FunctionName == ""

	if functionIsResearch {
		score2.value += 0.05
	} else if functionIsClassroom {
		score2.value += 0.03
	}

	if c.OwnerUniqname != "" && !ownerIsPI && !ownerIsMember {
		score2.value -= 0.10
	}
	if financialOwnerUID != "" && !finOwnerIsPI && !finOwnerIsMember {
		score2.value -= 0.08
	}
	switch {
	case functionIsAdmin:
		score2.value -= 0.12
	case functionIsDev:
		score2.value -= 0.12
	case !functionKnown:
		score2.value -= 0.05
	}

	final := score2.value
	switch spec.tier {
	case Tier1:
		final = quality.ClampRange(final, 0.70, 1.00)
	case Tier2:
		final = quality.ClampRange(final, 0.20, 0.50)
	}

	var flags []string
	if final < 0.40 {
		flags = append(flags, "low_confidence")
	}
	if final >= 0.90 {
		flags = append(flags, "high_confidence")
	}
	if ownerIsPI && finOwnerIsPI {
		flags = append(flags, "fully_pi_owned")
	}
	if c.OwnerUniqname != "" && !ownerIsPI && !ownerIsMember {
		flags = append(flags, "owner_not_affiliated")
	}
	if financialOwnerUID != "" && !finOwnerIsPI && !finOwnerIsMember {
		flags = append(flags, "fin_owner_not_affiliated")
	}
	if functionIsAdmin {
		flags = append(flags, "admin_function")
	}
	if functionIsDev {
		flags = append(flags, "dev_function")
	}
	if c.FunctionName == "" {
		flags = append(flags, "no_function")
	}

	return Association{
		ComputerID:          c.ComputerID,
		LabID:               lab.LabID,
		Method:              method,
		Tier:                spec.tier,
		BaseConfidence:       spec.base,
		FinalConfidence:      final,
		OwnerIsPI:            ownerIsPI,
		FinOwnerIsPI:         finOwnerIsPI,
		OwnerIsMember:        ownerIsMember,
		FinOwnerIsMember:     finOwnerIsMember,
		FunctionIsResearch:   functionIsResearch,
		FunctionIsClassroom:  functionIsClassroom,
		QualityFlags:         flags,
	}
}

// scoreAccumulator is a bare running total; internal/quality.Score isn't
// used here because the bonus/penalty table mixes unconditional additions
// and the tier clamp happens once at the end rather than per-step.
type scoreAccumulator struct {
	value float64
}

// SelectPrimary marks, for each computer, the association with the
// maximum final confidence as primary, ties broken by lab_id ordering
// (spec.md §4.9), and returns the per-computer primary method and
// association count for propagation back to silver.computers.
func SelectPrimary(assocs []Association) (withPrimary []Association, primaryByComputer map[string]Association, countByComputer map[string]int) {
	countByComputer = map[string]int{}
	best := map[string]int{} // computer_id -> index into assocs of current best
	for i, a := range assocs {
		countByComputer[a.ComputerID]++
		bi, ok := best[a.ComputerID]
		if !ok {
			best[a.ComputerID] = i
			continue
		}
		current := assocs[bi]
		if a.FinalConfidence > current.FinalConfidence ||
			(a.FinalConfidence == current.FinalConfidence && a.LabID < current.LabID) {
			best[a.ComputerID] = i
		}
	}

	withPrimary = make([]Association, len(assocs))
	copy(withPrimary, assocs)
	primaryByComputer = map[string]Association{}
	for computerID, idx := range best {
		withPrimary[idx].IsPrimary = true
		primaryByComputer[computerID] = withPrimary[idx]
	}
	return withPrimary, primaryByComputer, countByComputer
}
