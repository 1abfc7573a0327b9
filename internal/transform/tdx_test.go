package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTDXUserProjectorMapsFields(t *testing.T) {
	doc := map[string]any{
		"UID":      "u-1",
		"Username": "jdoe",
		"FullName": "Jane Doe",
		"IsActive": true,
	}
	rows, err := TDXUserProjector{}.Project(doc, 42)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "u-1", rows[0]["tdx_user_uid"])
	assert.Equal(t, "jdoe", rows[0]["username"])
	assert.Equal(t, int64(42), rows[0]["raw_id"])
}

func TestTDXAssetProjectorExtractsAttributes(t *testing.T) {
	doc := map[string]any{
		"ID":   "a-1",
		"Name": "LABPC-01",
		"Attributes": []any{
			map[string]any{"Name": "MAC Address", "Value": "AA:BB:CC:DD:EE:FF"},
			map[string]any{"Name": "Memory", "Value": "32GB"},
			map[string]any{"Name": "Last Inventoried Date", "Value": "2025-06-01T00:00:00"},
			map[string]any{"Name": "Unrelated Attribute", "Value": "ignored"},
		},
	}
	rows, err := TDXAssetProjector{}.Project(doc, 7)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", row["mac_address"])
	assert.Equal(t, "32GB", row["memory"])
	assert.NotNil(t, row["last_inventoried_date"])
	assert.NotContains(t, row, "ignored")
}

func TestTDXAssetProjectorNullsSentinelOwningCustomer(t *testing.T) {
	doc := map[string]any{
		"ID":               "a-2",
		"OwningCustomerID": "00000000-0000-0000-0000-000000000000",
	}
	rows, err := TDXAssetProjector{}.Project(doc, 1)
	require.NoError(t, err)
	assert.Nil(t, rows[0]["owning_customer_id"])
}
