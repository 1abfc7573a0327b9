package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnionColumnsCoversHeterogeneousRows(t *testing.T) {
	rows := []map[string]any{
		{"asset_id": "1", "memory": "16GB"},
		{"asset_id": "2", "storage": "512GB"},
	}
	cols := unionColumns(rows)
	assert.Equal(t, []string{"asset_id", "memory", "storage"}, cols)
}

func TestBuildUpsertSQLBindsMissingColumnsAsNull(t *testing.T) {
	rows := []map[string]any{
		{"asset_id": "1", "memory": "16GB"},
		{"asset_id": "2", "storage": "512GB"},
	}
	columns := unionColumns(rows)
	updateSet := buildUpdateSet(columns, "asset_id")

	query, args := buildUpsertSQL("silver.tdx_assets", "asset_id", columns, updateSet, rows)

	assert.Contains(t, query, "asset_id, memory, storage")
	assert.Len(t, args, 6)
	assert.Equal(t, "1", args[0])
	assert.Equal(t, "16GB", args[1])
	assert.Nil(t, args[2])
	assert.Equal(t, "2", args[3])
	assert.Nil(t, args[4])
	assert.Equal(t, "512GB", args[5])
}
