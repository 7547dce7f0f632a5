package orchestrator

import (
	"sync"

	"timelens/internal/domain"
)

// Slot is the single-depth intent holder plus the runner's busy flag, both
// guarded by one mutex. A new intent overwrites the pending one; there is no
// queue. The sequence counter lets FinishRun tell "clear what I took" apart
// from "a newer intent arrived while I was running", which must survive.
type Slot struct {
	mu      sync.Mutex
	pending *domain.Intent
	busy    bool
	seq     uint64
}

// NewSlot returns an empty slot.
func NewSlot() *Slot {
	return &Slot{}
}

// Set stores the intent, replacing any pending one.
func (s *Slot) Set(intent domain.Intent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &intent
	s.seq++
}

// Clear drops the pending intent, if any.
func (s *Slot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	s.seq++
}

// Pending returns the queued intent without consuming it.
func (s *Slot) Pending() (domain.Intent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return domain.Intent{}, false
	}
	return *s.pending, true
}

// BeginRun claims the slot for a run. It fails when a run is already in
// flight or nothing is pending; the caller must not touch FinishRun in that
// case. On success the returned token is passed back to FinishRun.
func (s *Slot) BeginRun() (domain.Intent, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy || s.pending == nil {
		return domain.Intent{}, 0, false
	}
	s.busy = true
	return *s.pending, s.seq, true
}

// FinishRun releases the busy flag. When clear is true the intent taken by
// BeginRun is dropped, unless a newer intent has replaced it in the meantime.
func (s *Slot) FinishRun(token uint64, clear bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if clear && s.seq == token {
		s.pending = nil
		s.seq++
	}
}

// Busy reports whether a run is in flight.
func (s *Slot) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}
