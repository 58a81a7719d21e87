package llmcall

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of calls a Store keeps before evicting the oldest.
const DefaultCapacity = 500

// Store keeps the most recent LLM calls in memory.
type Store struct {
	mu       sync.RWMutex
	calls    []Call
	capacity int
}

// NewStore creates a store holding at most capacity calls.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity}
}

// QueryFilter specifies filters for listing LLM calls.
type QueryFilter struct {
	Stage     string
	PromptKey string
	Backend   string
	Model     string
	After     *time.Time
	Success   *bool
	Limit     int
	Offset    int
}

// Record stores a call, evicting the oldest when full.
func (s *Store) Record(call *Call) {
	if call == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, *call)
	if over := len(s.calls) - s.capacity; over > 0 {
		s.calls = append([]Call(nil), s.calls[over:]...)
	}
}

// Get retrieves a single LLM call by ID.
func (s *Store) Get(id string) (*Call, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.calls {
		if s.calls[i].ID == id {
			c := s.calls[i]
			return &c, true
		}
	}
	return nil, false
}

// List returns calls matching the filter, newest first.
func (s *Store) List(filter QueryFilter) []Call {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Call
	skipped := 0
	for i := len(s.calls) - 1; i >= 0; i-- {
		c := s.calls[i]
		if !filter.matches(c) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, c)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// Len returns the number of stored calls.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.calls)
}

// CountByPromptKey returns the number of stored calls per prompt key.
func (s *Store) CountByPromptKey() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, c := range s.calls {
		counts[c.PromptKey]++
	}
	return counts
}

func (f QueryFilter) matches(c Call) bool {
	if f.Stage != "" && c.Stage != f.Stage {
		return false
	}
	if f.PromptKey != "" && c.PromptKey != f.PromptKey {
		return false
	}
	if f.Backend != "" && c.Backend != f.Backend {
		return false
	}
	if f.Model != "" && c.Model != f.Model {
		return false
	}
	if f.After != nil && !c.Timestamp.After(*f.After) {
		return false
	}
	if f.Success != nil && c.Success != *f.Success {
		return false
	}
	return true
}
