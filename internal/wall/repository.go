package wall

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PictureRepository defines the interface for picture data operations.
// Implementations assign the ID on Insert; callers must never supply one.
type PictureRepository interface {
	// Insert stores a new picture and returns its assigned ID.
	Insert(ctx context.Context, picture *Picture) (string, error)

	// UpdatePosition moves an existing picture. Updating a nonexistent
	// picture returns ErrPictureNotFound.
	UpdatePosition(ctx context.Context, id string, pos Position) error

	// Delete removes a picture. Deleting a nonexistent ID is not an error;
	// the target state (absent) already holds.
	Delete(ctx context.Context, id string) error

	// List returns all pictures ordered by upload time, oldest first.
	List(ctx context.Context) ([]Picture, error)

	// DeleteAll removes every picture and returns the number deleted.
	// Implementations must make this atomic from the caller's perspective.
	DeleteAll(ctx context.Context) (int, error)
}

// InMemoryPictureRepository is an in-memory implementation of
// PictureRepository. Used for testing and development.
type InMemoryPictureRepository struct {
	mu       sync.RWMutex
	pictures map[string]*Picture
}

// NewInMemoryPictureRepository creates a new in-memory picture repository.
func NewInMemoryPictureRepository() *InMemoryPictureRepository {
	return &InMemoryPictureRepository{
		pictures: make(map[string]*Picture),
	}
}

// Insert stores a new picture and returns its assigned ID.
func (r *InMemoryPictureRepository) Insert(ctx context.Context, picture *Picture) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a copy so callers cannot mutate what we hold
	stored := *picture
	stored.ID = uuid.New().String()
	if stored.UploadedAt.IsZero() {
		stored.UploadedAt = time.Now().UTC()
	}
	r.pictures[stored.ID] = &stored

	picture.ID = stored.ID
	picture.UploadedAt = stored.UploadedAt
	return stored.ID, nil
}

// UpdatePosition moves an existing picture.
func (r *InMemoryPictureRepository) UpdatePosition(ctx context.Context, id string, pos Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pictures[id]
	if !ok {
		return ErrPictureNotFound
	}
	p.Position = pos
	return nil
}

// Delete removes a picture. Absent IDs are treated as already deleted.
func (r *InMemoryPictureRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.pictures, id)
	return nil
}

// List returns all pictures ordered by upload time, oldest first.
func (r *InMemoryPictureRepository) List(ctx context.Context) ([]Picture, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Picture, 0, len(r.pictures))
	for _, p := range r.pictures {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UploadedAt.Before(out[j].UploadedAt)
	})
	return out, nil
}

// DeleteAll removes every picture and returns the number deleted.
func (r *InMemoryPictureRepository) DeleteAll(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.pictures)
	r.pictures = make(map[string]*Picture)
	return n, nil
}
