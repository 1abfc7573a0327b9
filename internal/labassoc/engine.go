package labassoc

import (
	"context"
	"fmt"
	"strings"

	"github.com/lsats/databridge/internal/ledger"
	"github.com/lsats/databridge/internal/model"
	"github.com/lsats/databridge/internal/storage"
)

// Engine reads silver.computers/labs/lab_members and the computer
// function-attribute map, runs discovery+scoring+primary-selection, then
// rebuilds silver.lab_computers (TRUNCATE+INSERT) and propagates
// primary_lab_id/primary_lab_method/lab_association_count back onto
// silver.computers, per spec.md §4.9's strategy note ("associations are
// fully derivable from current state").
type Engine struct {
	db     *storage.DB
	ledger *ledger.Ledger
}

func New(db *storage.DB, l *ledger.Ledger) *Engine {
	return &Engine{db: db, ledger: l}
}

const associationSource = "lab_association"

func (e *Engine) Run(ctx context.Context, opts model.JobOptions) (model.Stats, error) {
	var stats model.Stats
	runID, err := e.ledger.Begin(ctx, associationSource, "lab_computer", map[string]any{"full_sync": opts.FullSync})
	if err != nil {
		return stats, fmt.Errorf("beginning lab association run: %w", err)
	}

	computerRows, err := e.db.SelectAllAsMaps(ctx, "silver.computers", "")
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, err
	}
	labRows, err := e.db.SelectAllAsMaps(ctx, "silver.labs", "")
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, err
	}
	memberRows, err := e.db.SelectAllAsMaps(ctx, "silver.lab_members", "")
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, err
	}

	computers := toComputers(computerRows)
	labs := toLabs(labRows)
	labMembers := toLabMembers(memberRows)
	finOwners := toFinancialOwners(computerRows)

	assocs := Discover(computers, labs, finOwners, labMembers)
	withPrimary, primaryByComputer, countByComputer := SelectPrimary(assocs)
	stats.Processed = len(withPrimary)
	stats.Created = len(withPrimary)

	if opts.DryRun {
		_ = e.ledger.Complete(ctx, runID, model.Stats{}, "")
		return stats, nil
	}

	columns := []string{"computer_id", "lab_id", "method", "tier", "base_confidence", "final_confidence",
		"is_primary", "owner_is_pi", "fin_owner_is_pi", "owner_is_member", "fin_owner_is_member",
		"function_is_research", "function_is_classroom", "quality_flags"}
	rows := make([]map[string]any, 0, len(withPrimary))
	for _, a := range withPrimary {
		tier := "tier_1"
		if a.Tier == Tier2 {
			tier = "tier_2"
		}
		rows = append(rows, map[string]any{
			"computer_id":           a.ComputerID,
			"lab_id":                a.LabID,
			"method":                string(a.Method),
			"tier":                  tier,
			"base_confidence":       a.BaseConfidence,
			"final_confidence":      a.FinalConfidence,
			"is_primary":            a.IsPrimary,
			"owner_is_pi":           a.OwnerIsPI,
			"fin_owner_is_pi":       a.FinOwnerIsPI,
			"owner_is_member":       a.OwnerIsMember,
			"fin_owner_is_member":   a.FinOwnerIsMember,
			"function_is_research":  a.FunctionIsResearch,
			"function_is_classroom": a.FunctionIsClassroom,
			"quality_flags":         a.QualityFlags,
		})
	}

	if _, err := e.db.TruncateAndInsert(ctx, "silver.lab_computers", columns, rows, 5000); err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, err
	}

	updateRows := make([]map[string]any, 0, len(countByComputer))
	for computerID, count := range countByComputer {
		primary := primaryByComputer[computerID]
		updateRows = append(updateRows, map[string]any{
			"computer_id":            computerID,
			"primary_lab_id":         primary.LabID,
			"primary_lab_method":     string(primary.Method),
			"lab_association_count":  count,
		})
	}
	if err := e.db.UpdateColumns(ctx, "silver.computers", "computer_id", updateRows,
		[]string{"primary_lab_id", "primary_lab_method", "lab_association_count"}); err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, err
	}

	if err := e.ledger.Complete(ctx, runID, stats, ""); err != nil {
		return stats, err
	}
	return stats, nil
}

func toComputers(rows []map[string]any) []Computer {
	out := make([]Computer, 0, len(rows))
	for _, r := range rows {
		out = append(out, Computer{
			ComputerID:        str(r, "computer_id"),
			ComputerName:      str(r, "computer_name"),
			DistinguishedName: str(r, "distinguished_name"),
			OwnerUniqname:     str(r, "owner_uniqname"),
			LastUser:          str(r, "last_user"),
			FunctionName:      str(r, "function_name"),
		})
	}
	return out
}

func toLabs(rows []map[string]any) []Lab {
	out := make([]Lab, 0, len(rows))
	for _, r := range rows {
		out = append(out, Lab{
			LabID:      str(r, "lab_id"),
			PIUniqname: str(r, "pi_uniqname"),
			ADOUDN:     str(r, "ad_ou_dn"),
			HasADOU:    boolVal(r, "has_ad_ou"),
		})
	}
	return out
}

func toLabMembers(rows []map[string]any) map[string]map[string]bool {
	out := map[string]map[string]bool{}
	for _, r := range rows {
		labID := str(r, "lab_id")
		member := strings.ToLower(str(r, "member_uniqname"))
		if labID == "" || member == "" {
			continue
		}
		if out[labID] == nil {
			out[labID] = map[string]bool{}
		}
		out[labID][member] = true
	}
	return out
}

func toFinancialOwners(rows []map[string]any) map[string]string {
	out := map[string]string{}
	for _, r := range rows {
		if id := str(r, "computer_id"); id != "" {
			out[id] = str(r, "financial_owner_uniqname")
		}
	}
	return out
}

func str(row map[string]any, field string) string {
	s, _ := row[field].(string)
	return s
}

func boolVal(row map[string]any, field string) bool {
	b, _ := row[field].(bool)
	return b
}
