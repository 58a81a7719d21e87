package book

import (
	"sort"
	"sync"

	"github.com/jackzampolin/folio/internal/prompts/style"
)

// Store is the mutex-guarded book state. The zero value is not usable; use NewStore.
type Store struct {
	mu sync.Mutex

	topic            string
	spreads          []Spread
	outstanding      map[string]string // conceptID -> jobID
	generating       bool
	hasGeneratedOnce bool
	styleGuide       *style.Guide

	// run increments whenever the run state is reset; ticks carry the run
	// they were polled for.
	run uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{outstanding: make(map[string]string)}
}

// SetTopic sets the topic. It survives Reset.
func (s *Store) SetTopic(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topic = topic
}

// Reset drops the spreads, outstanding handles and style guide of the current run.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Store) resetLocked() {
	s.spreads = nil
	s.outstanding = make(map[string]string)
	s.styleGuide = nil
	s.run++
}

// BeginRun resets the store and marks a generation in progress in one step.
// It returns false, changing nothing, if a run is already in progress.
func (s *Store) BeginRun(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generating {
		return false
	}
	s.resetLocked()
	s.topic = topic
	s.generating = true
	return true
}

// ReplaceSpreads replaces the spread list.
func (s *Store) ReplaceSpreads(spreads []Spread) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.spreads = make([]Spread, len(spreads))
	for i, sp := range spreads {
		s.spreads[i] = sp.clone()
	}
}

// UpsertImage sets the spread's image and marks it ready. Ready and failed
// spreads are left as they are. It reports whether the spread changed.
func (s *Store) UpsertImage(conceptID, imageURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertImageLocked(conceptID, imageURL)
}

func (s *Store) upsertImageLocked(conceptID, imageURL string) bool {
	i := s.indexLocked(conceptID)
	if i < 0 || s.spreads[i].Status.Terminal() {
		return false
	}
	s.spreads[i].ImageURL = imageURL
	s.spreads[i].Status = StatusReady
	return true
}

// MarkFailed marks the spread failed. Ready and failed spreads are left as
// they are. It reports whether the spread changed.
func (s *Store) MarkFailed(conceptID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markFailedLocked(conceptID)
}

func (s *Store) markFailedLocked(conceptID string) bool {
	i := s.indexLocked(conceptID)
	if i < 0 || s.spreads[i].Status.Terminal() {
		return false
	}
	s.spreads[i].Status = StatusFailed
	return true
}

// DeleteSpread removes the spread and its outstanding handle.
func (s *Store) DeleteSpread(conceptID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(conceptID); i >= 0 {
		s.spreads = append(s.spreads[:i:i], s.spreads[i+1:]...)
	}
	delete(s.outstanding, conceptID)
}

// RegisterHandles merges handles into the outstanding set, replacing any
// previous job for the same concept.
func (s *Store) RegisterHandles(handles []Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range handles {
		s.outstanding[h.ConceptID] = h.JobID
	}
}

// ReplaceOutstanding replaces the whole outstanding set with handles.
func (s *Store) ReplaceOutstanding(handles []Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]string, len(handles))
	for _, h := range handles {
		next[h.ConceptID] = h.JobID
	}
	s.outstanding = next
}

// SetGenerating sets the generation-in-progress flag.
func (s *Store) SetGenerating(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating = v
}

// SetHasGeneratedOnce records that a run produced spreads.
func (s *Store) SetHasGeneratedOnce(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasGeneratedOnce = v
}

// SetStyleGuide stores the run's style guide.
func (s *Store) SetStyleGuide(g *style.Guide) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.styleGuide = g.Clone()
}

// Reconcile applies one poll result atomically: completed spreads become
// ready, failed spreads become failed, and the pending set replaces the
// outstanding set. Pending handles for spreads that no longer exist are
// dropped so deleted spreads are not resurrected. A tick polled for an
// earlier run is discarded and Reconcile returns false.
func (s *Store) Reconcile(t Tick) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.Run != s.run {
		return false
	}

	for _, c := range t.Completed {
		s.upsertImageLocked(c.ConceptID, c.ImageURL)
	}
	for _, f := range t.Failed {
		s.markFailedLocked(f.ConceptID)
	}

	next := make(map[string]string, len(t.Pending))
	for _, h := range t.Pending {
		if s.indexLocked(h.ConceptID) < 0 {
			continue
		}
		next[h.ConceptID] = h.JobID
	}
	s.outstanding = next
	return true
}

// Outstanding returns the outstanding handles sorted by spread order.
func (s *Store) Outstanding() []Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outstandingLocked()
}

// OutstandingRun returns the outstanding handles together with the run they
// belong to. Set the run on the resulting Tick.
func (s *Store) OutstandingRun() (uint64, []Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run, s.outstandingLocked()
}

func (s *Store) outstandingLocked() []Handle {
	handles := make([]Handle, 0, len(s.outstanding))
	seen := make(map[string]bool, len(s.outstanding))
	for _, sp := range s.spreads {
		if jobID, ok := s.outstanding[sp.ID]; ok {
			handles = append(handles, Handle{ConceptID: sp.ID, JobID: jobID})
			seen[sp.ID] = true
		}
	}
	var extra []Handle
	for conceptID, jobID := range s.outstanding {
		if !seen[conceptID] {
			extra = append(extra, Handle{ConceptID: conceptID, JobID: jobID})
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].ConceptID < extra[j].ConceptID })
	return append(handles, extra...)
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Topic:            s.topic,
		Spreads:          make([]Spread, len(s.spreads)),
		Outstanding:      make(map[string]string, len(s.outstanding)),
		Generating:       s.generating,
		HasGeneratedOnce: s.hasGeneratedOnce,
		StyleGuide:       s.styleGuide.Clone(),
	}
	for i, sp := range s.spreads {
		st.Spreads[i] = sp.clone()
	}
	for k, v := range s.outstanding {
		st.Outstanding[k] = v
	}
	return st
}

func (s *Store) indexLocked(conceptID string) int {
	for i := range s.spreads {
		if s.spreads[i].ID == conceptID {
			return i
		}
	}
	return -1
}
