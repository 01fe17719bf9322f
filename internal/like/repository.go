// Package like tracks per-picture appreciation. A client can like a
// picture once; liking it again takes the like back.
package like

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Like records that an identity liked a picture.
type Like struct {
	PictureID string    `json:"picture_id"`
	Identity  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository stores likes keyed by (picture, identity).
type Repository interface {
	// Add records a like. Adding one that already exists is a no-op
	// and returns false.
	Add(ctx context.Context, pictureID, identity string) (bool, error)
	// Remove deletes a like. Removing one that does not exist is a
	// no-op and returns false.
	Remove(ctx context.Context, pictureID, identity string) (bool, error)
	// Exists reports whether the identity has liked the picture.
	Exists(ctx context.Context, pictureID, identity string) (bool, error)
	// Count returns the number of likes on a picture.
	Count(ctx context.Context, pictureID string) (int, error)
	// Counts returns like totals for all pictures that have any.
	Counts(ctx context.Context) (map[string]int, error)
	// RemoveForPicture drops every like on a picture. Used when the
	// picture itself is removed from the wall.
	RemoveForPicture(ctx context.Context, pictureID string) error
}

// InMemoryRepository is a map-backed Repository for tests and local
// development.
type InMemoryRepository struct {
	mu    sync.Mutex
	likes map[string]map[string]time.Time // pictureID -> identity -> time
}

// NewInMemoryRepository creates an empty in-memory like store.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{likes: make(map[string]map[string]time.Time)}
}

func (r *InMemoryRepository) Add(ctx context.Context, pictureID, identity string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byIdentity, ok := r.likes[pictureID]
	if !ok {
		byIdentity = make(map[string]time.Time)
		r.likes[pictureID] = byIdentity
	}
	if _, exists := byIdentity[identity]; exists {
		return false, nil
	}
	byIdentity[identity] = time.Now().UTC()
	return true, nil
}

func (r *InMemoryRepository) Remove(ctx context.Context, pictureID, identity string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byIdentity, ok := r.likes[pictureID]
	if !ok {
		return false, nil
	}
	if _, exists := byIdentity[identity]; !exists {
		return false, nil
	}
	delete(byIdentity, identity)
	if len(byIdentity) == 0 {
		delete(r.likes, pictureID)
	}
	return true, nil
}

func (r *InMemoryRepository) Exists(ctx context.Context, pictureID, identity string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.likes[pictureID][identity]
	return exists, nil
}

func (r *InMemoryRepository) Count(ctx context.Context, pictureID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.likes[pictureID]), nil
}

func (r *InMemoryRepository) Counts(ctx context.Context) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int, len(r.likes))
	for pictureID, byIdentity := range r.likes {
		counts[pictureID] = len(byIdentity)
	}
	return counts, nil
}

func (r *InMemoryRepository) RemoveForPicture(ctx context.Context, pictureID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.likes, pictureID)
	return nil
}

// sortedPictureIDs is a test helper hook kept unexported.
func (r *InMemoryRepository) pictureIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.likes))
	for id := range r.likes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
