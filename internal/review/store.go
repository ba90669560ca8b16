package review

import (
	"errors"
	"strings"

	"quoteintake/internal"
)

var ErrNotFound = errors.New("item not found")

// Patch carries the fields to change. Nil fields are left alone; ClearExpiry
// and ClearCode remove the optional values.
type Patch struct {
	Name        *string
	UnitPrice   *float64
	ExpiryLabel *string
	Code        *string
	ClearExpiry bool
	ClearCode   bool
}

// Store is the editable working set of one session. It is not safe for
// concurrent use; the owning session serializes access.
type Store struct {
	items []internal.CandidateItem
}

func New() *Store {
	return &Store{}
}

// Load replaces the working set.
func (s *Store) Load(items []internal.CandidateItem) {
	s.items = cloneItems(items)
}

// Items returns a copy of the working set in display order.
func (s *Store) Items() []internal.CandidateItem {
	return cloneItems(s.items)
}

func (s *Store) Len() int { return len(s.items) }

// Update applies a patch without validating it. Blank names and zero prices
// are allowed while editing; Confirm filters what cannot be committed.
func (s *Store) Update(id string, p Patch) (internal.CandidateItem, error) {
	i := s.index(id)
	if i < 0 {
		return internal.CandidateItem{}, ErrNotFound
	}
	it := &s.items[i]
	if p.Name != nil {
		it.Name = *p.Name
	}
	if p.UnitPrice != nil {
		it.UnitPrice = *p.UnitPrice
	}
	if p.ClearExpiry {
		it.ExpiryLabel = nil
	} else if p.ExpiryLabel != nil {
		it.ExpiryLabel = copyString(p.ExpiryLabel)
	}
	if p.ClearCode {
		it.Code = nil
	} else if p.Code != nil {
		it.Code = copyString(p.Code)
	}
	return cloneItem(*it), nil
}

func (s *Store) Remove(id string) error {
	i := s.index(id)
	if i < 0 {
		return ErrNotFound
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

// Confirm returns the items with a non-blank name, in order. The store is
// left untouched so a failed hand-off can be retried.
func (s *Store) Confirm() []internal.CandidateItem {
	out := make([]internal.CandidateItem, 0, len(s.items))
	for _, it := range s.items {
		if strings.TrimSpace(it.Name) == "" {
			continue
		}
		out = append(out, cloneItem(it))
	}
	return out
}

func (s *Store) Discard() {
	s.items = nil
}

func (s *Store) index(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneItems(items []internal.CandidateItem) []internal.CandidateItem {
	out := make([]internal.CandidateItem, len(items))
	for i := range items {
		out[i] = cloneItem(items[i])
	}
	return out
}

func cloneItem(it internal.CandidateItem) internal.CandidateItem {
	it.ExpiryLabel = copyString(it.ExpiryLabel)
	it.Code = copyString(it.Code)
	return it
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
