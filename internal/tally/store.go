// Package tally provides in-memory label counters and the command attribution entry points built on them.
package tally

import "sync"

// Store counts occurrences per label for the lifetime of the process.
// Counts only grow; there is no reset or removal.
type Store struct {
	mu sync.RWMutex
	m  map[string]uint64
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{m: make(map[string]uint64)}
}

// Increment adds one to label, creating the entry with 1 if absent.
func (s *Store) Increment(label string) {
	s.mu.Lock()
	s.m[label]++
	s.mu.Unlock()
}

// Snapshot returns a copy of the current counts. Later increments never mutate the returned map.
func (s *Store) Snapshot() map[string]uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]uint64, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}

// Len returns the number of distinct labels seen.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
