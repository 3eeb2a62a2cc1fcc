package store

import (
	"sort"
	"sync"
	"time"

	"github.com/nyameri/octreport/internal/analysis"
)

// Entry is an analysis together with the time it was stored.
type Entry struct {
	Analysis  *analysis.Analysis
	UpdatedAt time.Time
}

// Store is a thread-safe in-memory analysis store, keyed by source ID.
type Store struct {
	mu   sync.RWMutex
	data map[string]*Entry
	now  func() time.Time // injectable for deterministic tests
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		data: make(map[string]*Entry),
		now:  time.Now,
	}
}

// Put stores or replaces the analysis for a.SourceID.
// Callers must not modify a after calling Put.
func (s *Store) Put(a *analysis.Analysis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[a.SourceID] = &Entry{
		Analysis:  a,
		UpdatedAt: s.now(),
	}
}

// Get returns the Entry for sourceID and whether one was found.
func (s *Store) Get(sourceID string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[sourceID]
	return e, ok
}

// List returns all entries sorted by source ID.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	out := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		out = append(out, e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Analysis.SourceID < out[j].Analysis.SourceID
	})
	return out
}

// Count returns the number of entries held.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Delete removes the entry for sourceID. It reports whether one existed.
func (s *Store) Delete(sourceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[sourceID]
	delete(s.data, sourceID)
	return ok
}
