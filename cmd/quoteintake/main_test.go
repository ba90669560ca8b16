package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quoteintake/internal"
	"quoteintake/internal/util"
)

func TestParseMapping(t *testing.T) {
	m, err := parseMapping("name=1, price=3,expiry=0")
	require.NoError(t, err)
	assert.Equal(t, internal.ColumnMapping{NameColumn: 1, PriceColumn: 3, ExpiryColumn: util.IntPtr(0)}, m)

	m, err = parseMapping("price=2,name=0,code=4")
	require.NoError(t, err)
	assert.Equal(t, 4, *m.CodeColumn)
	assert.Nil(t, m.ExpiryColumn)

	for _, bad := range []string{"", "name=0", "name=0,price=x", "name=0,price=-1", "name=0,price=1,qty=2", "name:0,price=1"} {
		_, err := parseMapping(bad)
		assert.Error(t, err, bad)
	}
}

func TestReadTranscription(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typed.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,price,expiry\nPanadol,20,03/2027\nBrufen,7.5\n"), 0o644))

	items, err := readTranscription(path)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Panadol", items[0].Name)
	assert.Equal(t, 20.0, items[0].UnitPrice)
	assert.Equal(t, "03/2027", util.Deref(items[0].ExpiryLabel))
	assert.Nil(t, items[1].Code)
}

func TestItemsTable(t *testing.T) {
	out := itemsTable([]internal.CandidateItem{{ID: "row-2", Name: "Paracetamol", UnitPrice: 12.5}})
	assert.Contains(t, out, "Paracetamol")
	assert.Contains(t, out, "12.5")
	assert.Contains(t, out, "unit price")
}
