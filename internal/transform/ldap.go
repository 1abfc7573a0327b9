package transform

import (
	"strconv"

	"github.com/lsats/databridge/internal/dn"
	"github.com/lsats/databridge/internal/hashing"
)

// userAccountControlDisabled is the AD userAccountControl bit that marks an
// account disabled (bit 2, value 2), per spec.md §4.5.1.
const userAccountControlDisabled = 2

// ADUserProjector projects bronze active_directory/user rows into
// silver.ad_users.
type ADUserProjector struct{}

func (ADUserProjector) Table() string     { return "silver.ad_users" }
func (ADUserProjector) KeyColumn() string { return "distinguished_name" }
func (ADUserProjector) HashFields() []string {
	return []string{"sam_account_name", "common_name", "description", "is_enabled",
		"member_of", "proxy_addresses", "immediate_parent_ou", "when_changed"}
}

func (ADUserProjector) Project(doc map[string]any, rawID int64) ([]map[string]any, error) {
	dnValue := stringField(doc, "distinguishedName")
	path := dn.Parse(dnValue)

	row := map[string]any{
		"distinguished_name":   dnValue,
		"sam_account_name":     stringField(doc, "sAMAccountName"),
		"common_name":          stringField(doc, "cn"),
		"description":          stringField(doc, "description"),
		"is_enabled":           isADEnabled(doc),
		"member_of":            hashing.StringSlice(doc["memberOf"]),
		"proxy_addresses":      hashing.StringSlice(doc["proxyAddresses"]),
		"service_principal_names": hashing.StringSlice(doc["servicePrincipalName"]),
		"ou_path":              path.Full,
		"immediate_parent_ou":  path.ImmediateParent,
		"when_changed":         parseADGeneralizedTime(doc["whenChanged"]),
		"when_created":         parseADGeneralizedTime(doc["whenCreated"]),
		"raw_id":               rawID,
		"source_system":        "active_directory",
	}
	return []map[string]any{row}, nil
}

func isADEnabled(doc map[string]any) bool {
	raw := doc["userAccountControl"]
	var uac int64
	switch v := raw.(type) {
	case float64:
		uac = int64(v)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return true
		}
		uac = n
	default:
		return true
	}
	return uac&userAccountControlDisabled == 0
}

// ADGroupProjector projects bronze active_directory/group rows into
// silver.ad_groups.
type ADGroupProjector struct{}

func (ADGroupProjector) Table() string     { return "silver.ad_groups" }
func (ADGroupProjector) KeyColumn() string { return "distinguished_name" }
func (ADGroupProjector) HashFields() []string {
	return []string{"common_name", "description", "members", "owners", "immediate_parent_ou"}
}

func (ADGroupProjector) Project(doc map[string]any, rawID int64) ([]map[string]any, error) {
	dnValue := stringField(doc, "distinguishedName")
	path := dn.Parse(dnValue)
	row := map[string]any{
		"distinguished_name":  dnValue,
		"common_name":         stringField(doc, "cn"),
		"description":         stringField(doc, "description"),
		"members":             hashing.StringSlice(doc["member"]),
		"owners":              hashing.StringSlice(doc["managedBy"]),
		"ou_path":             path.Full,
		"immediate_parent_ou": path.ImmediateParent,
		"raw_id":              rawID,
		"source_system":       "active_directory",
	}
	return []map[string]any{row}, nil
}

// ADComputerProjector projects bronze active_directory/computer rows
// (objectCategory=computer) into silver.ad_computers, the AD leg of the
// computer match in spec.md §4.7 (AD contributes name and when_changed
// only; it carries no MAC or serial number).
type ADComputerProjector struct{}

func (ADComputerProjector) Table() string     { return "silver.ad_computers" }
func (ADComputerProjector) KeyColumn() string { return "distinguished_name" }
func (ADComputerProjector) HashFields() []string {
	return []string{"common_name", "when_changed"}
}

func (ADComputerProjector) Project(doc map[string]any, rawID int64) ([]map[string]any, error) {
	dnValue := stringField(doc, "distinguishedName")
	row := map[string]any{
		"distinguished_name": dnValue,
		"common_name":        stringField(doc, "cn"),
		"when_changed":       parseADGeneralizedTime(doc["whenChanged"]),
		"raw_id":             rawID,
		"source_system":      "active_directory",
	}
	return []map[string]any{row}, nil
}

// MCommunityPersonProjector projects bronze mcommunity_ldap/person rows
// into silver.mcommunity_people.
type MCommunityPersonProjector struct{}

func (MCommunityPersonProjector) Table() string     { return "silver.mcommunity_people" }
func (MCommunityPersonProjector) KeyColumn() string { return "distinguished_name" }
func (MCommunityPersonProjector) HashFields() []string {
	return []string{"uid", "common_name", "description", "affiliation", "immediate_parent_ou"}
}

func (MCommunityPersonProjector) Project(doc map[string]any, rawID int64) ([]map[string]any, error) {
	dnValue := stringField(doc, "dn")
	path := dn.Parse(dnValue)
	row := map[string]any{
		"distinguished_name":  dnValue,
		"uid":                 stringField(doc, "uid"),
		"common_name":         stringField(doc, "cn"),
		"description":         stringField(doc, "description"),
		"affiliation":         hashing.StringSlice(doc["umichAffiliation"]),
		"immediate_parent_ou": path.ImmediateParent,
		"raw_id":              rawID,
		"source_system":       "mcommunity_ldap",
	}
	return []map[string]any{row}, nil
}

// MCommunityGroupProjector projects bronze mcommunity_ldap/group rows into
// silver.mcommunity_groups, preserving both the full member list and the
// subset considered "direct" (spec.md §4.6's AD-vs-MCommunity distinction).
type MCommunityGroupProjector struct{}

func (MCommunityGroupProjector) Table() string     { return "silver.mcommunity_groups" }
func (MCommunityGroupProjector) KeyColumn() string { return "distinguished_name" }
func (MCommunityGroupProjector) HashFields() []string {
	return []string{"common_name", "description", "members", "direct_members", "owners"}
}

func (MCommunityGroupProjector) Project(doc map[string]any, rawID int64) ([]map[string]any, error) {
	dnValue := stringField(doc, "dn")
	row := map[string]any{
		"distinguished_name": dnValue,
		"common_name":        stringField(doc, "cn"),
		"description":        stringField(doc, "description"),
		"members":            hashing.StringSlice(doc["member"]),
		"direct_members":     hashing.StringSlice(doc["mcommDirectMember"]),
		"owners":             hashing.StringSlice(doc["owner"]),
		"raw_id":             rawID,
		"source_system":      "mcommunity_ldap",
	}
	return []map[string]any{row}, nil
}
