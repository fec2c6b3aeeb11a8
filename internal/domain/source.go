package domain

import (
	"context"
	"sort"
)

// ItemSource enumerates candidate work items.
type ItemSource interface {
	List(ctx context.Context) (*Listing, error)
}

// KnownIDStore reads the ids of items already processed by a previous run.
// A missing cache is an empty set, not an error.
type KnownIDStore interface {
	KnownIDs(ctx context.Context) (IDSet, error)
}

// WritableIDStore is a KnownIDStore the downstream consumer can append to.
type WritableIDStore interface {
	KnownIDStore
	Add(ctx context.Context, ids ...string) error
}

// IDSet is a set of work item ids.
type IDSet map[string]struct{}

// NewIDSet returns a set holding ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set. A nil set holds nothing.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in ascending order.
func (s IDSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
