package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quoteintake/internal"
)

func strp(v string) *string { return &v }

func TestConfirmDropsBlankNamesInOrder(t *testing.T) {
	s := New()
	s.Load([]internal.CandidateItem{
		{ID: "a", Name: "Paracetamol", UnitPrice: 12.5},
		{ID: "b", Name: ""},
		{ID: "c", Name: "   "},
		{ID: "d", Name: "Amoxicillin", UnitPrice: 30},
	})

	got := s.Confirm()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "d", got[1].ID)
	assert.Equal(t, 4, s.Len(), "confirm must not mutate the working set")
}

func TestLoadReplaces(t *testing.T) {
	s := New()
	s.Load([]internal.CandidateItem{{ID: "a", Name: "one"}, {ID: "b", Name: "two"}})
	s.Load([]internal.CandidateItem{{ID: "c", Name: "three"}})

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "c", items[0].ID)
}

func TestUpdateWithoutValidation(t *testing.T) {
	s := New()
	s.Load([]internal.CandidateItem{{ID: "a", Name: "Paracetamol", UnitPrice: 12.5, ExpiryLabel: strp("12/2026")}})

	price := -1.0
	it, err := s.Update("a", Patch{Name: strp(""), UnitPrice: &price, ClearExpiry: true, Code: strp("P-1")})
	require.NoError(t, err)
	assert.Equal(t, "", it.Name)
	assert.Equal(t, -1.0, it.UnitPrice)
	assert.Nil(t, it.ExpiryLabel)
	require.NotNil(t, it.Code)
	assert.Equal(t, "P-1", *it.Code)

	assert.Empty(t, s.Confirm())
}

func TestUpdateAndRemoveUnknownID(t *testing.T) {
	s := New()
	s.Load([]internal.CandidateItem{{ID: "a", Name: "x"}})

	_, err := s.Update("zzz", Patch{Name: strp("y")})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Remove("zzz"), ErrNotFound)

	require.NoError(t, s.Remove("a"))
	assert.Equal(t, 0, s.Len())
}

func TestItemsAreCopies(t *testing.T) {
	s := New()
	src := []internal.CandidateItem{{ID: "a", Name: "x", Code: strp("c1")}}
	s.Load(src)
	src[0].Name = "mutated"
	*src[0].Code = "mutated"

	items := s.Items()
	assert.Equal(t, "x", items[0].Name)
	assert.Equal(t, "c1", *items[0].Code)

	items[0].Name = "again"
	assert.Equal(t, "x", s.Items()[0].Name)
}

func TestDiscard(t *testing.T) {
	s := New()
	s.Load([]internal.CandidateItem{{ID: "a", Name: "x"}})
	s.Discard()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Confirm())
}
