// Package realtime keeps every client's view of the wall converged on the
// shared picture collection: it applies writes and pushes the full
// post-mutation snapshot to all subscribers.
package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/onnwee/thewall/internal/wall"
)

// SnapshotFunc receives the complete current picture collection. Every
// delivery is the authoritative whole state, never a diff; consumers must
// replace their local copy, not merge. Callbacks run on the mutating
// goroutine and must not block.
type SnapshotFunc func(pictures []wall.Picture)

// Store is the live mirror of the shared picture collection. All
// mutations flow through it so that every subscriber observes snapshots
// in an order consistent with the order mutations were applied.
//
// Consistency is eventual and last-write-wins per field: placements are
// independent, never overlap-checked, and each add gets an independent
// store-assigned id, so no client-side locking or version vector is
// needed.
type Store struct {
	repo    wall.PictureRepository
	logger  *slog.Logger
	metrics *Metrics

	// mu serializes mutations with their broadcasts so snapshot order
	// matches mutation order for every subscriber.
	mu          sync.Mutex
	subMu       sync.RWMutex
	subscribers map[uint64]SnapshotFunc
	nextSubID   uint64
}

// NewStore creates a Store over the given repository. metrics may be nil.
func NewStore(repo wall.PictureRepository, logger *slog.Logger, metrics *Metrics) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		repo:        repo,
		logger:      logger,
		metrics:     metrics,
		subscribers: make(map[uint64]SnapshotFunc),
	}
}

// Subscribe registers fn for snapshot deliveries. fn fires once
// immediately with the current snapshot, then after every mutation by any
// client, including the subscriber's own. The returned function
// unsubscribes; it is safe to call more than once.
func (s *Store) Subscribe(ctx context.Context, fn SnapshotFunc) (func(), error) {
	// Hold the mutation lock across registration and the initial delivery
	// so no mutation can slip between them.
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	count := len(s.subscribers)
	s.subMu.Unlock()

	if s.metrics != nil {
		s.metrics.SetSubscribers(count)
	}

	fn(snapshot)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, id)
			count := len(s.subscribers)
			s.subMu.Unlock()
			if s.metrics != nil {
				s.metrics.SetSubscribers(count)
			}
		})
	}, nil
}

// Add durably creates one picture and returns its store-assigned id.
// Quota enforcement is deliberately not here; that is the placement
// session's responsibility.
func (s *Store) Add(ctx context.Context, picture *wall.Picture) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.repo.Insert(ctx, picture)
	if err != nil {
		return "", err
	}
	if s.metrics != nil {
		s.metrics.IncPlacements()
	}
	s.broadcastLocked(ctx)
	return id, nil
}

// UpdatePosition moves a picture; last write wins.
func (s *Store) UpdatePosition(ctx context.Context, id string, pos wall.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.UpdatePosition(ctx, id, pos); err != nil {
		return err
	}
	s.broadcastLocked(ctx)
	return nil
}

// Remove deletes a picture. Removing a nonexistent id is not an error:
// the target state is already reached and no snapshot is pushed for it.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	for _, p := range before {
		if p.ID == id {
			s.broadcastLocked(ctx)
			return nil
		}
	}
	return nil
}

// ClearAll removes every picture and returns the number deleted.
// Privileged; reached only through the admin surface.
func (s *Store) ClearAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	s.broadcastLocked(ctx)
	return n, nil
}

// Snapshot returns the complete current picture collection.
func (s *Store) Snapshot(ctx context.Context) ([]wall.Picture, error) {
	return s.repo.List(ctx)
}

// Has reports whether a picture with the given id is on the wall.
func (s *Store) Has(ctx context.Context, id string) (bool, error) {
	pictures, err := s.repo.List(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range pictures {
		if p.ID == id {
			return true, nil
		}
	}
	return false, nil
}

// broadcastLocked reads the post-mutation snapshot and fans it out.
// Callers must hold s.mu.
func (s *Store) broadcastLocked(ctx context.Context) {
	snapshot, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to read snapshot for broadcast", "error", err)
		return
	}

	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for _, fn := range s.subscribers {
		fn(snapshot)
	}
	if s.metrics != nil {
		s.metrics.IncSnapshots()
	}
}

// SubscriberCount returns the number of active subscribers.
func (s *Store) SubscriberCount() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subscribers)
}
