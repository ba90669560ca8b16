package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quoteintake/internal"
	"quoteintake/internal/util"
)

func TestResolveWithMapping(t *testing.T) {
	rows := rowsOf(
		[]string{"c1", "c2", "c3"},
		[]string{"12.5", "Paracetamol", "06/2026"},
		[]string{"", "  ", ""},
		[]string{"n/a", "Amoxicillin"},
	)
	m := internal.ColumnMapping{NameColumn: 1, PriceColumn: 0, ExpiryColumn: util.IntPtr(2)}

	items := ResolveWithMapping(rows, m)
	require.Len(t, items, 2)
	assert.Equal(t, "row-2", items[0].ID)
	assert.Equal(t, 12.5, items[0].UnitPrice)
	require.NotNil(t, items[0].ExpiryLabel)
	assert.Equal(t, "06/2026", *items[0].ExpiryLabel)

	assert.Equal(t, "row-4", items[1].ID)
	assert.Zero(t, items[1].UnitPrice)
	assert.Nil(t, items[1].ExpiryLabel, "short rows read as empty cells")

	assert.Equal(t, items, ResolveWithMapping(rows, m), "same input, same output")
}

func TestResolveWithMappingOutOfRange(t *testing.T) {
	rows := rowsOf(
		[]string{"a", "b"},
		[]string{"x", "1"},
	)

	assert.Empty(t, ResolveWithMapping(rows, internal.ColumnMapping{NameColumn: 7, PriceColumn: 1}))
	assert.Empty(t, ResolveWithMapping(rows, internal.ColumnMapping{NameColumn: -1, PriceColumn: 1}))

	items := ResolveWithMapping(rows, internal.ColumnMapping{NameColumn: 0, PriceColumn: 9, CodeColumn: util.IntPtr(42)})
	require.Len(t, items, 1)
	assert.Zero(t, items[0].UnitPrice)
	assert.Nil(t, items[0].Code)
}

func TestResolveWithMappingHeaderOnly(t *testing.T) {
	assert.Empty(t, ResolveWithMapping(rowsOf([]string{"name", "price"}), internal.ColumnMapping{PriceColumn: 1}))
	assert.Empty(t, ResolveWithMapping(nil, internal.ColumnMapping{}))
}

func TestMappingRequestRowsFeedManualMapping(t *testing.T) {
	rows := rowsOf(
		[]string{"Supplier: Delta Pharma"},
		[]string{"A", "B"},
		[]string{"Cetal", "9"},
	)
	_, req := NewResolver(DefaultKeywords()).Resolve(rows)
	require.NotNil(t, req)

	items := ResolveWithMapping(req.Rows, internal.ColumnMapping{NameColumn: 0, PriceColumn: 1})
	require.Len(t, items, 2)
	assert.Equal(t, "A", items[0].Name, "row 0 of the request is the fallback header, the rest is data")
	assert.Equal(t, "Cetal", items[1].Name)
	assert.Equal(t, 9.0, items[1].UnitPrice)
}
