package transform

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lsats/databridge/internal/hashing"
	"github.com/lsats/databridge/internal/model"
)

// InventoryNICProjector projects one bronze inventory_agent row (one NIC)
// into silver.inventory_nics, keyed by normalized MAC address.
type InventoryNICProjector struct{}

func (InventoryNICProjector) Table() string     { return "silver.inventory_nics" }
func (InventoryNICProjector) KeyColumn() string { return "mac_address" }
func (InventoryNICProjector) HashFields() []string {
	return []string{"computer_name", "serial_number", "ip_address", "last_session"}
}

func (InventoryNICProjector) Project(doc map[string]any, rawID int64) ([]map[string]any, error) {
	mac := hashing.NormalizeMAC(stringField(doc, "mac_address"))
	if mac == "" {
		return nil, nil
	}
	row := map[string]any{
		"mac_address":    mac,
		"computer_name":  stringField(doc, "computer_name"),
		"serial_number":  stringField(doc, "serial_number"),
		"ip_address":     stringField(doc, "ip_address"),
		"last_session":   parseISO8601OrNil(doc["last_session"]),
		"base_audit":     parseISO8601OrNil(doc["base_audit"]),
		"raw_id":         rawID,
		"source_system":  "inventory_agent",
	}
	return []map[string]any{row}, nil
}

// ConsolidateInventoryComputers groups already-projected NIC rows (as
// produced by InventoryNICProjector) sharing (computer_name, serial_number)
// into one silver.inventory_computers row each, per spec.md §4.5.1: MAC/IP
// collected into arrays, scalar fields taken from the most-recently-seen
// NIC (max last_session), MAX over activity timestamps, MIN over
// base_audit, the NIC count, and the list of contributing raw_ids
// preserved for audit.
func ConsolidateInventoryComputers(nicRows []map[string]any) []map[string]any {
	type group struct {
		computerName string
		serialNumber string
		macs         []string
		ips          []string
		rawIDs       []int64
		nicCount     int
		latest       map[string]any
		latestTime   time.Time
		maxActivity  time.Time
		minAudit     time.Time
		hasAudit     bool
	}
	groups := map[string]*group{}
	order := []string{}

	for _, row := range nicRows {
		key := stringField(row, "computer_name") + "\x00" + stringField(row, "serial_number")
		g, ok := groups[key]
		if !ok {
			g = &group{computerName: stringField(row, "computer_name"), serialNumber: stringField(row, "serial_number")}
			groups[key] = g
			order = append(order, key)
		}
		g.nicCount++
		if mac, _ := row["mac_address"].(string); mac != "" {
			g.macs = append(g.macs, mac)
		}
		if ip, _ := row["ip_address"].(string); ip != "" {
			g.ips = append(g.ips, ip)
		}
		if rawID, ok := row["raw_id"].(int64); ok {
			g.rawIDs = append(g.rawIDs, rawID)
		}

		session, _ := row["last_session"].(time.Time)
		if g.latest == nil || session.After(g.latestTime) {
			g.latestTime = session
			g.latest = row
		}
		if session.After(g.maxActivity) {
			g.maxActivity = session
		}
		if audit, ok := row["base_audit"].(time.Time); ok {
			if !g.hasAudit || audit.Before(g.minAudit) {
				g.minAudit = audit
				g.hasAudit = true
			}
		}
	}

	out := make([]map[string]any, 0, len(order))
	for _, key := range order {
		g := groups[key]
		sort.Strings(g.macs)
		sort.Strings(g.ips)
		row := map[string]any{
			"computer_name":        g.computerName,
			"serial_number":        g.serialNumber,
			"mac_addresses":        dedupeStrings(g.macs),
			"ip_addresses":         dedupeStrings(g.ips),
			"primary_mac_address":  stringField(g.latest, "mac_address"),
			"nic_count":            g.nicCount,
			"last_session":         g.latestTime,
			"last_activity_at":     g.maxActivity,
			"contributing_raw_ids": g.rawIDs,
			"source_system":        "inventory_agent",
		}
		if g.hasAudit {
			row["first_audited_at"] = g.minAudit
		}
		out = append(out, row)
	}
	return out
}

// TransformInventoryComputers reads every projected silver.inventory_nics
// row, consolidates by (computer_name, serial_number) via
// ConsolidateInventoryComputers, and upserts the result into
// silver.inventory_computers. Run after the per-NIC Transform so the NIC
// table reflects the current run's data before consolidation reads it.
func (e *Engine) TransformInventoryComputers(ctx context.Context, opts model.JobOptions) (model.Stats, error) {
	var stats model.Stats
	const entityKey = "inventory_agent_computer"

	runID, err := e.ledger.Begin(ctx, silverTransformationSource, entityKey, map[string]any{
		"full_sync": opts.FullSync,
		"dry_run":   opts.DryRun,
	})
	if err != nil {
		return stats, fmt.Errorf("beginning inventory computer consolidation run: %w", err)
	}

	nicRows, err := e.db.SelectAllAsMaps(ctx, "silver.inventory_nics", "")
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, fmt.Errorf("reading inventory nics: %w", err)
	}

	computers := ConsolidateInventoryComputers(nicRows)
	existing, err := e.db.ExistingEntityHashes(ctx, "silver.inventory_computers", "computer_name", keysOf(computers, "computer_name"))
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, fmt.Errorf("loading existing inventory computer hashes: %w", err)
	}

	var toUpsert []map[string]any
	for _, row := range computers {
		stats.Processed++
		hash := hashing.FieldSet(row, []string{"mac_addresses", "ip_addresses", "primary_mac_address", "nic_count", "last_session"})
		key, _ := row["computer_name"].(string)
		if existing[key] == hash {
			stats.SkippedUnchanged++
			continue
		}
		if opts.DryRun {
			if _, ok := existing[key]; ok {
				stats.Updated++
			} else {
				stats.Created++
			}
			continue
		}
		row["entity_hash"] = hash
		toUpsert = append(toUpsert, row)
	}

	if opts.DryRun {
		_ = e.ledger.Complete(ctx, runID, model.Stats{}, "")
		return stats, nil
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	written, err := e.db.UpsertBatch(ctx, "silver.inventory_computers", "computer_name", toUpsert, batchSize)
	if err != nil {
		_ = e.ledger.Complete(ctx, runID, stats, err.Error())
		return stats, fmt.Errorf("upserting inventory computers: %w", err)
	}
	stats.Updated += written

	errMsg := ""
	if stats.Failed(opts.StopOnErrors) {
		errMsg = fmt.Sprintf("%d record error(s), stop_on_errors set", stats.Errors)
	}
	if err := e.ledger.Complete(ctx, runID, stats, errMsg); err != nil {
		return stats, fmt.Errorf("completing inventory computer consolidation run: %w", err)
	}
	return stats, nil
}

func keysOf(rows []map[string]any, col string) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if s, ok := r[col].(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func dedupeStrings(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
