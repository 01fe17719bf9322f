// Package quota enforces the per-visitor daily placement limit.
package quota

import (
	"context"
	"sync"
	"time"
)

// UploadRecord is one accepted placement, attributed to the UTC calendar
// day it was written.
type UploadRecord struct {
	Identity  string    `json:"identity"`
	Date      string    `json:"date"` // YYYY-MM-DD, UTC
	Timestamp time.Time `json:"timestamp"`
}

// DateOf returns the UTC calendar-day string for a timestamp.
func DateOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Store abstracts daily upload accounting. The CountToday/Record pair is
// check-then-act: two racing sessions for one identity can both observe a
// stale count and exceed the quota by the number of racers. That matches
// the source behavior; stores that also implement Acquirer close the
// window.
type Store interface {
	// CountToday returns the number of records for the identity on the
	// given day.
	CountToday(ctx context.Context, identity, date string) (int, error)

	// Record writes one upload record.
	Record(ctx context.Context, rec UploadRecord) error
}

// Acquirer is the strict variant: a single conditional increment that
// either consumes a slot or rejects, with no window between check and
// record. Release undoes an acquire whose placement never committed.
type Acquirer interface {
	// Acquire atomically increments the identity's count for the day and
	// reports the count after the increment. If the increment would exceed
	// limit, it is rolled back and allowed is false.
	Acquire(ctx context.Context, identity, date string, limit int) (used int, allowed bool, err error)

	// Release returns one previously acquired slot.
	Release(ctx context.Context, identity, date string) error
}

// InMemoryStore implements Store and Acquirer with an in-memory map.
// Used for testing and single-node development.
type InMemoryStore struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewInMemoryStore creates a new in-memory quota store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{counts: make(map[string]int)}
}

func bucketKey(identity, date string) string {
	return date + "/" + identity
}

// CountToday returns the number of records for the identity on the day.
func (s *InMemoryStore) CountToday(ctx context.Context, identity, date string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[bucketKey(identity, date)], nil
}

// Record writes one upload record.
func (s *InMemoryStore) Record(ctx context.Context, rec UploadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[bucketKey(rec.Identity, rec.Date)]++
	return nil
}

// Acquire atomically consumes a slot if one is available.
func (s *InMemoryStore) Acquire(ctx context.Context, identity, date string, limit int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := bucketKey(identity, date)
	next := s.counts[key] + 1
	if next > limit {
		return next - 1, false, nil
	}
	s.counts[key] = next
	return next, true, nil
}

// Release returns one previously acquired slot.
func (s *InMemoryStore) Release(ctx context.Context, identity, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := bucketKey(identity, date)
	if s.counts[key] > 0 {
		s.counts[key]--
	}
	return nil
}
