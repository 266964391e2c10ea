package pipeline

import "sync"

// Store keeps the result of the most recent completed run in memory so the
// API can serve flags and summaries without re-running detection. Results
// are lost on restart - BigQuery holds the durable history.
type Store struct {
	mu     sync.RWMutex
	latest *RunState
}

// NewStore creates an empty result store.
func NewStore() *Store {
	return &Store{}
}

// SetLatest replaces the stored run result.
func (s *Store) SetLatest(state *RunState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = state
}

// Latest returns the most recent run result, or nil if no run has completed.
func (s *Store) Latest() *RunState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}
