package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquafloor/projectguard/internal/model"
)

func TestFromRowsHeaderLayout(t *testing.T) {
	cat, err := FromRows([][]string{
		{"sku", "collection", "type"},
		{"AF2506", "Quartz", "adhesive"},
		{"AF3511", "Quartz", "lock"},
		{"", "Quartz", "lock"}, // blank sku dropped
		{"AF2506", "Quartz", "adhesive"}, // duplicate dropped
	})
	require.NoError(t, err)
	require.Equal(t, 2, cat.Len())

	items := cat.Items("")
	assert.Equal(t, "AF2506", items[0].SKU)
	assert.Equal(t, model.TypeAdhesive, items[0].Type)
	assert.Equal(t, "AF3511", items[1].SKU)
	assert.Equal(t, model.TypeLock, items[1].Type)
}

func TestFromRowsMatrixLayout(t *testing.T) {
	cat, err := FromRows([][]string{
		{"Quartz", "Stone"},
		{"adhesive", "lock"},
		{"AF2506", "ST100"},
		{"AF2507", "ST101"},
		{"AF2508", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, cat.Len())

	locks := cat.Items(model.TypeLock)
	require.Len(t, locks, 2)
	assert.Equal(t, "Stone", locks[0].Collection)

	adhesives := cat.Items(model.TypeAdhesive)
	assert.Len(t, adhesives, 3)
}

func TestFromRowsSortsByCollectionThenSKU(t *testing.T) {
	cat, err := FromRows([][]string{
		{"sku", "collection", "type"},
		{"B2", "Beta", "lock"},
		{"A9", "Alpha", "adhesive"},
		{"B1", "Beta", "lock"},
	})
	require.NoError(t, err)
	items := cat.Items("")
	require.Len(t, items, 3)
	assert.Equal(t, []string{"A9", "B1", "B2"}, []string{items[0].SKU, items[1].SKU, items[2].SKU})
}

func TestFromRowsUnknownTypeDefaultsToAdhesive(t *testing.T) {
	cat, err := FromRows([][]string{
		{"sku", "type"},
		{"AF1", "click"},
		{"AF2", "whatever"},
	})
	require.NoError(t, err)
	assert.Len(t, cat.Items(model.TypeLock), 1)
	assert.Len(t, cat.Items(model.TypeAdhesive), 1)
}

func TestFromRowsEmpty(t *testing.T) {
	cat, err := FromRows(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, cat.Len())
	assert.Empty(t, cat.Items(""))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "skus.csv")
	data := "sku,collection,type\nAF2506,Quartz,adhesive\nAF3511,Quartz,lock\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cat, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())

	_, err = Load(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}
