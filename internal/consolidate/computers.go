package consolidate

import (
	"sort"
	"strings"
	"time"

	"github.com/lsats/databridge/internal/hashing"
	"github.com/lsats/databridge/internal/quality"
)

// ComputerGroup accumulates the per-source rows matched to one canonical
// computer by the three-phase match in MatchComputers.
type ComputerGroup struct {
	ComputerID string
	AD         []map[string]any
	TDX        []map[string]any
	Inventory  []map[string]any
}

// MatchComputers implements spec.md §4.7's three-phase match: normalized
// name first (AD is the authoritative name source but a TDX/inventory name
// match not involving AD still unifies), then normalized MAC among rows
// still unmatched in inventory-agent/TDX, then normalized serial among
// rows still unmatched after that. Rows matched by nothing become their
// own singleton computer. AD never participates in phases 2/3 (it carries
// neither MAC nor serial).
func MatchComputers(ad, tdx, inventory []map[string]any) []*ComputerGroup {
	groups := map[string]*ComputerGroup{}
	order := []string{}
	ensure := func(id string) *ComputerGroup {
		g, ok := groups[id]
		if !ok {
			g = &ComputerGroup{ComputerID: id}
			groups[id] = g
			order = append(order, id)
		}
		return g
	}
	normalize := func(r map[string]any, field string) string {
		return strings.ToLower(strings.TrimSpace(stringVal(r, field)))
	}

	byName := map[string]string{}
	for _, r := range ad {
		name := normalize(r, "common_name")
		if name == "" {
			continue
		}
		id := "name:" + name
		byName[name] = id
		ensure(id).AD = append(ensure(id).AD, r)
	}

	tdxMatched := make([]bool, len(tdx))
	invMatched := make([]bool, len(inventory))

	for i, r := range tdx {
		name := normalize(r, "asset_name")
		if name == "" {
			continue
		}
		if id, ok := byName[name]; ok {
			ensure(id).TDX = append(ensure(id).TDX, r)
			tdxMatched[i] = true
		}
	}
	for j, r := range inventory {
		name := normalize(r, "computer_name")
		if name == "" {
			continue
		}
		if id, ok := byName[name]; ok {
			ensure(id).Inventory = append(ensure(id).Inventory, r)
			invMatched[j] = true
		}
	}
	// Name matches between TDX and inventory that don't involve AD at all.
	for i, r := range tdx {
		if tdxMatched[i] {
			continue
		}
		name := normalize(r, "asset_name")
		if name == "" {
			continue
		}
		for j, r2 := range inventory {
			if invMatched[j] || normalize(r2, "computer_name") != name {
				continue
			}
			id := "name:" + name
			ensure(id).TDX = append(ensure(id).TDX, r)
			ensure(id).Inventory = append(ensure(id).Inventory, r2)
			tdxMatched[i] = true
			invMatched[j] = true
			break
		}
	}

	// Phase 2: normalized MAC.
	invByMAC := map[string][]int{}
	for j, r := range inventory {
		if invMatched[j] {
			continue
		}
		for _, mac := range hashing.StringSlice(r["mac_addresses"]) {
			if n := hashing.NormalizeMAC(mac); n != "" {
				invByMAC[n] = append(invByMAC[n], j)
			}
		}
	}
	for i, r := range tdx {
		if tdxMatched[i] {
			continue
		}
		mac := hashing.NormalizeMAC(stringVal(r, "mac_address"))
		if mac == "" {
			continue
		}
		js, ok := invByMAC[mac]
		if !ok {
			continue
		}
		id := "mac:" + mac
		ensure(id).TDX = append(ensure(id).TDX, r)
		tdxMatched[i] = true
		for _, j := range js {
			if invMatched[j] {
				continue
			}
			ensure(id).Inventory = append(ensure(id).Inventory, inventory[j])
			invMatched[j] = true
		}
	}

	// Phase 3: normalized serial, among rows still unmatched after phase 2.
	invBySerial := map[string][]int{}
	for j, r := range inventory {
		if invMatched[j] {
			continue
		}
		serial := strings.ToUpper(strings.TrimSpace(stringVal(r, "serial_number")))
		if serial != "" {
			invBySerial[serial] = append(invBySerial[serial], j)
		}
	}
	for i, r := range tdx {
		if tdxMatched[i] {
			continue
		}
		serial := strings.ToUpper(strings.TrimSpace(stringVal(r, "serial_number")))
		if serial == "" {
			continue
		}
		js, ok := invBySerial[serial]
		if !ok {
			continue
		}
		id := "serial:" + serial
		ensure(id).TDX = append(ensure(id).TDX, r)
		tdxMatched[i] = true
		for _, j := range js {
			if invMatched[j] {
				continue
			}
			ensure(id).Inventory = append(ensure(id).Inventory, inventory[j])
			invMatched[j] = true
		}
	}

	// Still-unmatched rows become their own singleton computer.
	for i, r := range tdx {
		if tdxMatched[i] {
			continue
		}
		ensure("tdx:" + stringVal(r, "tdx_asset_id")).TDX = append(ensure("tdx:"+stringVal(r, "tdx_asset_id")).TDX, r)
	}
	for j, r := range inventory {
		if invMatched[j] {
			continue
		}
		id := "inv:" + stringVal(r, "computer_name") + ":" + stringVal(r, "serial_number")
		ensure(id).Inventory = append(ensure(id).Inventory, r)
	}

	out := make([]*ComputerGroup, 0, len(order))
	for _, id := range order {
		out = append(out, groups[id])
	}
	return out
}

// MergeComputer merges one matched group's rows into a canonical
// silver.computers row, per spec.md §4.7. owners maps tdx_user_uid ->
// uniqname (silver.users) for the owner_uniqname FK-disciplined lookup.
// validUniqnames is the set of uniqnames actually present in silver.users:
// step 4 requires owner_uniqname only ever hold a value that resolves
// there, so the inventory last_user fallback is discarded otherwise.
func MergeComputer(g *ComputerGroup, owners map[string]string, validUniqnames map[string]bool, now time.Time) map[string]any {
	ad, tdx, inv := pick(g.AD), pick(g.TDX), pick(g.Inventory)

	name := firstNonEmpty(stringVal(ad, "common_name"), stringVal(tdx, "asset_name"), stringVal(inv, "computer_name"))

	macs := map[string]bool{}
	for _, r := range g.Inventory {
		for _, m := range hashing.StringSlice(r["mac_addresses"]) {
			if n := hashing.NormalizeMAC(m); n != "" {
				macs[n] = true
			}
		}
	}
	if tdx != nil {
		if n := hashing.NormalizeMAC(stringVal(tdx, "mac_address")); n != "" {
			macs[n] = true
		}
	}
	serials := map[string]bool{}
	for _, r := range append(append([]map[string]any{}, g.TDX...), g.Inventory...) {
		if s := strings.ToUpper(strings.TrimSpace(stringVal(r, "serial_number"))); s != "" {
			serials[s] = true
		}
	}

	lastSeen := latestTimestamp(g)
	hasRecentActivity := !lastSeen.IsZero() && now.Sub(lastSeen) <= 90*24*time.Hour

	ownerUniqname := ""
	if tdxUID := stringVal(tdx, "owning_customer_id"); tdxUID != "" {
		ownerUniqname = owners[tdxUID]
	}
	if ownerUniqname == "" {
		if candidate := strings.ToLower(strings.TrimSpace(stringVal(inv, "last_user"))); validUniqnames[candidate] {
			ownerUniqname = candidate
		}
	}

	row := map[string]any{
		"computer_id":         g.ComputerID,
		"computer_name":       name,
		"mac_addresses":       sortedKeys(macs),
		"serial_numbers":      sortedKeys(serials),
		"last_seen":           lastSeen,
		"has_recent_activity": hasRecentActivity,
		"owner_uniqname":      ownerUniqname,
		"source_system":       computerSources(g),
	}

	score := quality.NewScore()
	if len(serials) == 0 {
		score.Subtract(0.50, "missing_serial")
	}
	if name == "" {
		score.Subtract(0.25, "missing_name")
	}
	if !hasRecentActivity {
		score.Subtract(0.10, "stale")
	}
	if computerSourceCount(g) == 1 {
		score.Subtract(0.15, "single_source")
	}
	value, flags := score.Finish()
	row["quality_score"] = value
	row["quality_flags"] = flags
	return row
}

func computerSources(g *ComputerGroup) string {
	var sources []string
	if len(g.AD) > 0 {
		sources = append(sources, "active_directory")
	}
	if len(g.TDX) > 0 {
		sources = append(sources, "tdx")
	}
	if len(g.Inventory) > 0 {
		sources = append(sources, "inventory_agent")
	}
	sort.Strings(sources)
	return strings.Join(sources, "+")
}

func computerSourceCount(g *ComputerGroup) int {
	count := 0
	if len(g.AD) > 0 {
		count++
	}
	if len(g.TDX) > 0 {
		count++
	}
	if len(g.Inventory) > 0 {
		count++
	}
	return count
}

func latestTimestamp(g *ComputerGroup) time.Time {
	var latest time.Time
	consider := func(rows []map[string]any, field string) {
		for _, r := range rows {
			if t, ok := r[field].(time.Time); ok && t.After(latest) {
				latest = t
			}
		}
	}
	consider(g.Inventory, "last_session")
	consider(g.Inventory, "last_activity_at")
	consider(g.AD, "when_changed")
	return latest
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
