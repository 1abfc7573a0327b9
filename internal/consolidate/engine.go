package consolidate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lsats/databridge/internal/hashing"
	"github.com/lsats/databridge/internal/ledger"
	"github.com/lsats/databridge/internal/model"
	"github.com/lsats/databridge/internal/storage"
)

// Engine reads per-source Silver tables, merges them via the package's
// pure merge functions, and upserts canonical Silver-consolidated rows.
// Single-threaded, all joins in memory after bulk reads (spec.md §5).
type Engine struct {
	db     *storage.DB
	ledger *ledger.Ledger
}

func New(db *storage.DB, l *ledger.Ledger) *Engine {
	return &Engine{db: db, ledger: l}
}

const consolidationSource = "silver_consolidation"

// RunUsers consolidates silver.tdx_users/identity_people/mcommunity_people/
// ad_users into silver.users.
func (e *Engine) RunUsers(ctx context.Context, opts model.JobOptions) (model.Stats, error) {
	var stats model.Stats
	runID, err := e.ledger.Begin(ctx, consolidationSource, "user", map[string]any{"full_sync": opts.FullSync})
	if err != nil {
		return stats, fmt.Errorf("beginning users consolidation run: %w", err)
	}

	tdx, err := e.db.SelectAllAsMaps(ctx, "silver.tdx_users", "")
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, err
	}
	identity, err := e.db.SelectAllAsMaps(ctx, "silver.identity_people", "")
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, err
	}
	mcommunity, err := e.db.SelectAllAsMaps(ctx, "silver.mcommunity_people", "")
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, err
	}
	ad, err := e.db.SelectAllAsMaps(ctx, "silver.ad_users", "")
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, err
	}
	labAwards, err := e.db.SelectAllAsMaps(ctx, "silver.lab_awards", "")
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, err
	}

	piSet := ComputePISet(labAwards, ad)
	grouped := GroupUsersByUniqname(tdx, identity, mcommunity, ad)

	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	existing, err := e.db.ExistingEntityHashes(ctx, "silver.users", "uniqname", keys)
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, err
	}

	var toUpsert []map[string]any
	for _, s := range grouped {
		stats.Processed++
		row := MergeUser(s, piSet[s.Uniqname])
		hash := hashing.FieldSet(row, []string{"first_name", "last_name", "primary_email", "work_phone",
			"department_id", "job_title", "is_active", "is_pi", "source_system"})
		if existing[s.Uniqname] == hash {
			stats.SkippedUnchanged++
			continue
		}
		row["entity_hash"] = hash
		toUpsert = append(toUpsert, row)
	}

	if opts.DryRun {
		_ = e.ledger.Complete(ctx, runID, model.Stats{}, "")
		return stats, nil
	}

	written, err := e.db.UpsertBatch(ctx, "silver.users", "uniqname", toUpsert, batchSizeOrDefault(opts.BatchSize))
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, err
	}
	stats.Updated += written

	errMsg := ""
	if stats.Failed(opts.StopOnErrors) {
		errMsg = fmt.Sprintf("%d record error(s)", stats.Errors)
	}
	if err := e.ledger.Complete(ctx, runID, stats, errMsg); err != nil {
		return stats, err
	}
	return stats, nil
}

// RunDepartments consolidates silver.tdx_departments/identity_departments
// into silver.departments.
func (e *Engine) RunDepartments(ctx context.Context, opts model.JobOptions) (model.Stats, error) {
	var stats model.Stats
	runID, err := e.ledger.Begin(ctx, consolidationSource, "department", map[string]any{"full_sync": opts.FullSync})
	if err != nil {
		return stats, fmt.Errorf("beginning departments consolidation run: %w", err)
	}

	tdx, err := e.db.SelectAllAsMaps(ctx, "silver.tdx_departments", "")
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, err
	}
	identity, err := e.db.SelectAllAsMaps(ctx, "silver.identity_departments", "")
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, err
	}

	grouped := GroupDepartments(tdx, identity)
	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	existing, err := e.db.ExistingEntityHashes(ctx, "silver.departments", "department_id", keys)
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, err
	}

	var toUpsert []map[string]any
	for id, s := range grouped {
		stats.Processed++
		row := MergeDepartment(s)
		hash := hashing.FieldSet(row, []string{"department_name", "department_code", "department_description",
			"parent_department_id", "manager_uid", "hierarchical_path"})
		if existing[id] == hash {
			stats.SkippedUnchanged++
			continue
		}
		row["entity_hash"] = hash
		toUpsert = append(toUpsert, row)
	}

	if opts.DryRun {
		_ = e.ledger.Complete(ctx, runID, model.Stats{}, "")
		return stats, nil
	}

	written, err := e.db.UpsertBatch(ctx, "silver.departments", "department_id", toUpsert, batchSizeOrDefault(opts.BatchSize))
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, err
	}
	stats.Updated += written

	errMsg := ""
	if stats.Failed(opts.StopOnErrors) {
		errMsg = fmt.Sprintf("%d record error(s)", stats.Errors)
	}
	if err := e.ledger.Complete(ctx, runID, stats, errMsg); err != nil {
		return stats, err
	}
	return stats, nil
}

// RunComputers consolidates silver.ad_computers, silver.tdx_assets, and silver.inventory_computers into silver.computers,
// then hands the result to the caller for lab-computer association
// (internal/labassoc), per spec.md §4.7 step 6.
func (e *Engine) RunComputers(ctx context.Context, opts model.JobOptions, now time.Time) (model.Stats, []map[string]any, error) {
	var stats model.Stats
	runID, err := e.ledger.Begin(ctx, consolidationSource, "computer", map[string]any{"full_sync": opts.FullSync})
	if err != nil {
		return stats, nil, fmt.Errorf("beginning computers consolidation run: %w", err)
	}

	ad, err := e.db.SelectAllAsMaps(ctx, "silver.ad_computers", "")
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, nil, err
	}
	tdx, err := e.db.SelectAllAsMaps(ctx, "silver.tdx_assets", "")
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, nil, err
	}
	inventory, err := e.db.SelectAllAsMaps(ctx, "silver.inventory_computers", "")
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, nil, err
	}
	users, err := e.db.SelectAllAsMaps(ctx, "silver.users", "")
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, nil, err
	}

	owners := map[string]string{}
	validUniqnames := map[string]bool{}
	for _, u := range users {
		if tdxUID := stringVal(u, "tdx_user_uid"); tdxUID != "" {
			owners[tdxUID] = stringVal(u, "uniqname")
		}
		if uniqname := stringVal(u, "uniqname"); uniqname != "" {
			validUniqnames[strings.ToLower(uniqname)] = true
		}
	}

	groups := MatchComputers(ad, tdx, inventory)
	keys := make([]string, 0, len(groups))
	for _, g := range groups {
		keys = append(keys, g.ComputerID)
	}
	existing, err := e.db.ExistingEntityHashes(ctx, "silver.computers", "computer_id", keys)
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, nil, err
	}

	var merged []map[string]any
	var toUpsert []map[string]any
	for _, g := range groups {
		stats.Processed++
		row := MergeComputer(g, owners, validUniqnames, now)
		merged = append(merged, row)
		hash := hashing.FieldSet(row, []string{"computer_name", "mac_addresses", "serial_numbers", "owner_uniqname", "last_seen"})
		if existing[g.ComputerID] == hash {
			stats.SkippedUnchanged++
			continue
		}
		row["entity_hash"] = hash
		toUpsert = append(toUpsert, row)
	}

	if opts.DryRun {
		_ = e.ledger.Complete(ctx, runID, model.Stats{}, "")
		return stats, merged, nil
	}

	written, err := e.db.UpsertBatch(ctx, "silver.computers", "computer_id", toUpsert, batchSizeOrDefault(opts.BatchSize))
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, nil, err
	}
	stats.Updated += written

	errMsg := ""
	if stats.Failed(opts.StopOnErrors) {
		errMsg = fmt.Sprintf("%d record error(s)", stats.Errors)
	}
	if err := e.ledger.Complete(ctx, runID, stats, errMsg); err != nil {
		return stats, merged, err
	}
	return stats, merged, nil
}

// RunGroups consolidates silver.ad_groups/mcommunity_groups into
// silver.groups, the table internal/relate reads to rebuild the group
// membership/ownership link tables (spec.md §4.6).
func (e *Engine) RunGroups(ctx context.Context, opts model.JobOptions) (model.Stats, error) {
	var stats model.Stats
	runID, err := e.ledger.Begin(ctx, consolidationSource, "group", map[string]any{"full_sync": opts.FullSync})
	if err != nil {
		return stats, fmt.Errorf("beginning groups consolidation run: %w", err)
	}

	ad, err := e.db.SelectAllAsMaps(ctx, "silver.ad_groups", "")
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, err
	}
	mcommunity, err := e.db.SelectAllAsMaps(ctx, "silver.mcommunity_groups", "")
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, err
	}

	grouped := GroupGroups(ad, mcommunity)
	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	existing, err := e.db.ExistingEntityHashes(ctx, "silver.groups", "distinguished_name", keys)
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, err
	}

	var toUpsert []map[string]any
	for dn, s := range grouped {
		stats.Processed++
		row := MergeGroup(s)
		hash := hashing.FieldSet(row, []string{"common_name", "description", "members", "direct_members", "owners"})
		if existing[dn] == hash {
			stats.SkippedUnchanged++
			continue
		}
		row["entity_hash"] = hash
		toUpsert = append(toUpsert, row)
	}

	if opts.DryRun {
		_ = e.ledger.Complete(ctx, runID, model.Stats{}, "")
		return stats, nil
	}

	written, err := e.db.UpsertBatch(ctx, "silver.groups", "distinguished_name", toUpsert, batchSizeOrDefault(opts.BatchSize))
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, err
	}
	stats.Updated += written

	errMsg := ""
	if stats.Failed(opts.StopOnErrors) {
		errMsg = fmt.Sprintf("%d record error(s)", stats.Errors)
	}
	if err := e.ledger.Complete(ctx, runID, stats, errMsg); err != nil {
		return stats, err
	}
	return stats, nil
}

func batchSizeOrDefault(n int) int {
	if n <= 0 {
		return 500
	}
	return n
}
