package cache

import (
	"sync"
)

// Store is a process-lifetime, in-memory map of Key to Record.
//
// Records are overwritten on refresh and never evicted. All methods are safe
// for concurrent use; concurrent writers for the same key race and the last
// write wins.
type Store struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]Record),
	}
}

// Get returns the record for key and whether it exists.
func (s *Store) Get(key Key) (Record, bool) {
	s.mu.RLock()
	rec, ok := s.records[key.String()]
	s.mu.RUnlock()

	if !ok {
		CacheMisses.Inc()
	}
	return rec, ok
}

// Set stores rec under key, replacing any previous record.
func (s *Store) Set(key Key, rec Record) {
	s.mu.Lock()
	s.records[key.String()] = rec
	n := len(s.records)
	s.mu.Unlock()

	CacheRecords.Set(float64(n))
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
