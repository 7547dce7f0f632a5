package quota

import (
	"context"
	"sync"
	"time"
)

// Record tracks one user's consumption counters. A zero Record is a valid
// "never generated" state.
type Record struct {
	UserID          string
	DailyUsage      int
	WeeklyUsage     int
	TotalUsage      int
	LastDailyReset  time.Time
	LastWeeklyReset time.Time
	LastGeneration  time.Time
}

// Store persists per-user quota records and the process-wide capacity pool.
// Implementations must distinguish "record absent" (zero Record, nil error)
// from genuine I/O failures, which are returned as errors and surfaced to
// callers separately from business-rule denials.
type Store interface {
	Get(ctx context.Context, userID string) (Record, error)
	Put(ctx context.Context, rec Record) error
	RemainingCapacity(ctx context.Context) (int, error)
	ConsumeCapacity(ctx context.Context, units int) error
	// ResetExpired zeroes daily counters whose reset boundary has passed and
	// returns how many records were touched. Used by the proactive sweep.
	ResetExpired(ctx context.Context, boundary time.Time) (int, error)
}

// MemoryStore is the in-process Store used in development and tests.
type MemoryStore struct {
	mu       sync.Mutex
	records  map[string]Record
	capacity int
}

// NewMemoryStore creates a store with the given global capacity pool.
func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{records: map[string]Record{}, capacity: capacity}
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		return Record{UserID: userID}, nil
	}
	return rec, nil
}

func (s *MemoryStore) Put(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.UserID] = rec
	return nil
}

func (s *MemoryStore) RemainingCapacity(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity, nil
}

func (s *MemoryStore) ConsumeCapacity(ctx context.Context, units int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capacity -= units
	if s.capacity < 0 {
		s.capacity = 0
	}
	return nil
}

func (s *MemoryStore) ResetExpired(ctx context.Context, boundary time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	touched := 0
	for id, rec := range s.records {
		if rec.DailyUsage > 0 && rec.LastDailyReset.Before(boundary) {
			rec.DailyUsage = 0
			rec.LastDailyReset = boundary
			s.records[id] = rec
			touched++
		}
	}
	return touched, nil
}
