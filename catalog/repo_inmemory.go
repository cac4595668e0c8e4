package catalog

import (
	"fmt"
	"sync"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is an in-memory implementation of Repo
type InMemoryRepo struct {
	mu      sync.RWMutex
	entries []Entry
	byID    map[int]int // entry id -> index in entries
}

// NewInMemoryRepo creates a new in-memory catalog repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		byID: make(map[int]int),
	}
}

func (r *InMemoryRepo) Insert(entry Entry) error {
	if entry.ID == 0 {
		return fmt.Errorf("entry id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[entry.ID]; ok {
		return fmt.Errorf("entry %d already catalogued", entry.ID)
	}
	r.byID[entry.ID] = len(r.entries)
	r.entries = append(r.entries, entry)
	return nil
}

func (r *InMemoryRepo) ByOwner(ownerID int64) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owned := make([]Entry, 0)
	for _, e := range r.entries {
		if e.OwnerID == ownerID {
			owned = append(owned, e)
		}
	}
	return owned
}

func (r *InMemoryRepo) ByID(id int) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byID[id]
	if !ok {
		return Entry{}, false
	}
	return r.entries[idx], true
}
