package consolidate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchComputersPhase1MatchesByName(t *testing.T) {
	ad := []map[string]any{{"common_name": "LABPC-01"}}
	tdx := []map[string]any{{"asset_name": "LabPC-01", "tdx_asset_id": "a1"}}
	inv := []map[string]any{{"computer_name": "labpc-01", "serial_number": "SN1"}}

	groups := MatchComputers(ad, tdx, inv)
	require.Len(t, groups, 1)
	g := groups[0]
	assert.Len(t, g.AD, 1)
	assert.Len(t, g.TDX, 1)
	assert.Len(t, g.Inventory, 1)
}

func TestMatchComputersPhase2MatchesByMAC(t *testing.T) {
	tdx := []map[string]any{{"asset_name": "Unnamed1", "mac_address": "aa:bb:cc:dd:ee:ff", "tdx_asset_id": "a2"}}
	inv := []map[string]any{{"computer_name": "Different-Name", "mac_addresses": []any{"AABBCCDDEEFF"}, "serial_number": "SN2"}}

	groups := MatchComputers(nil, tdx, inv)
	require.Len(t, groups, 1)
	g := groups[0]
	assert.Len(t, g.TDX, 1)
	assert.Len(t, g.Inventory, 1)
}

func TestMatchComputersPhase3MatchesBySerial(t *testing.T) {
	tdx := []map[string]any{{"asset_name": "UnnamedA", "serial_number": "sn-99", "tdx_asset_id": "a3"}}
	inv := []map[string]any{{"computer_name": "UnnamedB", "serial_number": "SN-99"}}

	groups := MatchComputers(nil, tdx, inv)
	require.Len(t, groups, 1)
	g := groups[0]
	assert.Len(t, g.TDX, 1)
	assert.Len(t, g.Inventory, 1)
}

func TestMergeComputerComputesRecentActivity(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	g := &ComputerGroup{
		ComputerID: "labpc-01",
		Inventory: []map[string]any{
			{"computer_name": "LABPC-01", "last_session": now.Add(-24 * time.Hour), "last_activity_at": now.Add(-24 * time.Hour)},
		},
	}
	row := MergeComputer(g, map[string]string{}, map[string]bool{}, now)
	assert.Equal(t, true, row["has_recent_activity"])
}

func TestMergeComputerStaleFlagged(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	g := &ComputerGroup{
		ComputerID: "labpc-02",
		Inventory: []map[string]any{
			{"computer_name": "LABPC-02", "last_session": now.Add(-200 * 24 * time.Hour), "last_activity_at": now.Add(-200 * 24 * time.Hour)},
		},
	}
	row := MergeComputer(g, map[string]string{}, map[string]bool{}, now)
	assert.Equal(t, false, row["has_recent_activity"])
	assert.Contains(t, row["quality_flags"], "stale")
}

func TestMergeComputerResolvesOwnerViaTDXUIDThenFK(t *testing.T) {
	now := time.Now
	_ = now
	g := &ComputerGroup{
		ComputerID: "labpc-03",
		TDX:        []map[string]any{{"asset_name": "LABPC-03", "owning_customer_id": "uid-1"}},
	}
	row := MergeComputer(g, map[string]string{"uid-1": "jdoe"}, map[string]bool{"jdoe": true}, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "jdoe", row["owner_uniqname"])
}

func TestMergeComputerDropsLastUserFallbackWhenNotAKnownUniqname(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	g := &ComputerGroup{
		ComputerID: "labpc-04",
		Inventory:  []map[string]any{{"computer_name": "LABPC-04", "last_user": "ghost"}},
	}
	row := MergeComputer(g, map[string]string{}, map[string]bool{"jdoe": true}, now)
	assert.Equal(t, "", row["owner_uniqname"])
}

func TestMergeComputerAcceptsLastUserFallbackWhenKnownUniqname(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	g := &ComputerGroup{
		ComputerID: "labpc-05",
		Inventory:  []map[string]any{{"computer_name": "LABPC-05", "last_user": "JDoe"}},
	}
	row := MergeComputer(g, map[string]string{}, map[string]bool{"jdoe": true}, now)
	assert.Equal(t, "jdoe", row["owner_uniqname"])
}
