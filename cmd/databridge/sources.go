package main

import (
	"strings"
	"time"

	"github.com/lsats/databridge/internal/enrich"
	"github.com/lsats/databridge/internal/ingest"
	"github.com/lsats/databridge/internal/model"
	"github.com/lsats/databridge/internal/sourceclient"
)

// ingestDefs builds one ingest.EntityDef per (source, entity) pair, wiring
// cfg's per-source credentials into the matching sourceclient. Grounded on
// original_source's one-script-per-(source,entity) layout, collapsed here
// into one table since ingest.Engine is itself generic.
func ingestDefs() []ingest.EntityDef {
	return []ingest.EntityDef{
		{
			EntityType:      model.EntityUser,
			SourceSystem:    model.SourceTDX,
			Source:          sourceclient.NewTDXClient(cfg.TDX, "/people", "/people/%s", "ID", "ModifiedDate"),
			KeyField:        "ID",
			BasicHashFields: []string{"Username", "FullName", "PrimaryEmail", "DefaultAccountID"},
			ModifiedField:   "ModifiedDate",
			ParseModified:   parseTDXTimestamp,
		},
		{
			EntityType:      model.EntityDepartment,
			SourceSystem:    model.SourceTDX,
			Source:          sourceclient.NewTDXClient(cfg.TDX, "/accounts", "/accounts/%s", "ID", "ModifiedDate"),
			KeyField:        "ID",
			BasicHashFields: []string{"Name", "Code", "IsActive"},
			ModifiedField:   "ModifiedDate",
			ParseModified:   parseTDXTimestamp,
		},
		{
			EntityType:      model.EntityAsset,
			SourceSystem:    model.SourceTDX,
			Source:          sourceclient.NewTDXClient(cfg.TDX, "/assets", "/assets/%s", "ID", "ModifiedDate"),
			KeyField:        "ID",
			BasicHashFields: []string{"Name", "SerialNumber", "Attributes"},
			ModifiedField:   "ModifiedDate",
			ParseModified:   parseTDXTimestamp,
		},
		{
			EntityType:      model.EntityUser,
			SourceSystem:    model.SourceActiveDirectory,
			Source:          sourceclient.NewLDAPClient(cfg.AD, "(&(objectClass=user)(objectCategory=person))"),
			KeyField:        "dn",
			BasicHashFields: []string{"sAMAccountName", "cn", "userAccountControl", "memberOf"},
			ModifiedField:   "whenChanged",
			ParseModified:   parseADGeneralizedTimeField,
		},
		{
			EntityType:      model.EntityGroup,
			SourceSystem:    model.SourceActiveDirectory,
			Source:          sourceclient.NewLDAPClient(cfg.AD, "(objectClass=group)"),
			KeyField:        "dn",
			BasicHashFields: []string{"cn", "member", "managedBy"},
		},
		{
			EntityType:      model.EntityComputer,
			SourceSystem:    model.SourceActiveDirectory,
			Source:          sourceclient.NewLDAPClient(cfg.AD, "(objectClass=computer)"),
			KeyField:        "dn",
			BasicHashFields: []string{"cn", "whenChanged"},
			ModifiedField:   "whenChanged",
			ParseModified:   parseADGeneralizedTimeField,
		},
		{
			EntityType:      model.EntityUser,
			SourceSystem:    model.SourceMCommunityLDAP,
			Source:          sourceclient.NewLDAPClient(cfg.MCommunity, "(objectClass=inetOrgPerson)"),
			KeyField:        "dn",
			BasicHashFields: []string{"uid", "cn", "umichAffiliation"},
		},
		{
			EntityType:      model.EntityGroup,
			SourceSystem:    model.SourceMCommunityLDAP,
			Source:          sourceclient.NewLDAPClient(cfg.MCommunity, "(objectClass=groupOfUniqueNames)"),
			KeyField:        "dn",
			BasicHashFields: []string{"cn", "member", "mcommDirectMember", "owner"},
		},
		{
			EntityType:      model.EntityUser,
			SourceSystem:    model.SourceUMichAPI,
			Source:          sourceclient.NewIdentityAPIClient(cfg.IdentityAPI, "/people"),
			KeyField:        "uniqname",
			BasicHashFields: []string{"uniqname", "Appointments"},
		},
		{
			EntityType:      model.EntityDepartment,
			SourceSystem:    model.SourceUMichAPI,
			Source:          sourceclient.NewIdentityAPIClient(cfg.IdentityAPI, "/departments"),
			KeyField:        "DeptId",
			BasicHashFields: []string{"DeptId", "DeptDescription", "DeptGroup", "DeptGroupCampus", "DeptGroupVPArea"},
		},
		{
			EntityType:      model.EntityComputer,
			SourceSystem:    model.SourceKeyClient,
			Source:          sourceclient.NewInventoryClient(cfg.Inventory),
			KeyField:        "mac_address",
			BasicHashFields: []string{"computer_name", "serial_number", "mac_address"},
		},
		{
			EntityType:      model.EntityLabAward,
			SourceSystem:    model.SourceLabAwards,
			Source:          sourceclient.NewCSVSource(cfg.CSV),
			KeyField:        "AwardID",
			BasicHashFields: []string{"AwardID", "PersonUniqname", "Role"},
		},
	}
}

// enrichDefs builds one enrich.EntityDef per (source, entity) pair whose
// list endpoint is thin and needs a detail fetch (spec.md §4.4). Only TDX
// exposes both shapes here: LDAP searches, the identity API, the
// inventory feed, and the lab-awards CSV already return full records from
// List, so they are not enrichment targets.
func enrichDefs() []enrich.EntityDef {
	tdxDetail := func(listPath, detailPath, keyField, modifiedParam string) *sourceclient.TDXClient {
		return sourceclient.NewTDXClient(cfg.TDX, listPath, detailPath, keyField, modifiedParam)
	}
	return []enrich.EntityDef{
		{
			EntityType:         model.EntityUser,
			SourceSystem:       model.SourceTDX,
			Detail:             tdxDetail("/people", "/people/%s", "ID", "ModifiedDate"),
			BasicHashFields:    []string{"Username", "FullName", "PrimaryEmail", "DefaultAccountID"},
			EnrichedHashFields: []string{"Username", "FullName", "PrimaryEmail", "DefaultAccountID", "CustomAttributes"},
		},
		{
			EntityType:         model.EntityDepartment,
			SourceSystem:       model.SourceTDX,
			Detail:             tdxDetail("/accounts", "/accounts/%s", "ID", "ModifiedDate"),
			BasicHashFields:    []string{"Name", "Code", "IsActive"},
			EnrichedHashFields: []string{"Name", "Code", "IsActive", "ManagerID", "ParentID"},
		},
		{
			EntityType:         model.EntityAsset,
			SourceSystem:       model.SourceTDX,
			Detail:             tdxDetail("/assets", "/assets/%s", "ID", "ModifiedDate"),
			BasicHashFields:    []string{"Name", "SerialNumber", "Attributes"},
			EnrichedHashFields: []string{"Name", "SerialNumber", "Attributes", "OwningCustomerID", "OwningDepartmentID"},
		},
	}
}

// parseTDXTimestamp parses a TDX record's ModifiedDate field (an ISO-8601
// string), for client-side since-filtering when the TDX endpoint lacks a
// reliable server-side filter.
func parseTDXTimestamp(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseADGeneralizedTimeField parses an LDAP generalized-time string
// ("20240102030405.0Z") for client-side since-filtering.
func parseADGeneralizedTimeField(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok || len(s) < 14 {
		return time.Time{}, false
	}
	layout := "20060102150405"
	if t, err := time.Parse(layout+"Z", s); err == nil {
		return t, true
	}
	if idx := strings.IndexByte(s, '.'); idx > 0 {
		if t, err := time.Parse(layout, s[:idx]); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(layout, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
