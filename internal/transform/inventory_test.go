package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryNICProjectorNormalizesMAC(t *testing.T) {
	doc := map[string]any{
		"mac_address":   "aa:bb:cc:dd:ee:ff",
		"computer_name": "LABPC-01",
		"serial_number": "SN123",
		"ip_address":    "10.0.0.5",
	}
	rows, err := InventoryNICProjector{}.Project(doc, 9)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "AABBCCDDEEFF", rows[0]["mac_address"])
}

func TestInventoryNICProjectorSkipsRowsWithoutMAC(t *testing.T) {
	rows, err := InventoryNICProjector{}.Project(map[string]any{"computer_name": "x"}, 1)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestConsolidateInventoryComputersGroupsAndPicksLatest(t *testing.T) {
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	nicRows := []map[string]any{
		{
			"computer_name": "LABPC-01", "serial_number": "SN123",
			"mac_address": "AABBCCDDEEFF", "ip_address": "10.0.0.5",
			"last_session": older, "base_audit": older, "raw_id": int64(1),
		},
		{
			"computer_name": "LABPC-01", "serial_number": "SN123",
			"mac_address": "112233445566", "ip_address": "10.0.0.6",
			"last_session": newer, "base_audit": newer, "raw_id": int64(2),
		},
	}

	out := ConsolidateInventoryComputers(nicRows)
	require.Len(t, out, 1)
	row := out[0]
	assert.Equal(t, "LABPC-01", row["computer_name"])
	assert.ElementsMatch(t, []string{"AABBCCDDEEFF", "112233445566"}, row["mac_addresses"])
	assert.ElementsMatch(t, []string{"10.0.0.5", "10.0.0.6"}, row["ip_addresses"])
	assert.Equal(t, newer, row["last_activity_at"])
	assert.Equal(t, older, row["first_audited_at"])
	assert.Equal(t, "112233445566", row["primary_mac_address"])
	assert.Equal(t, 2, row["nic_count"])
}
