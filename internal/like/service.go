package like

import (
	"context"
	"log/slog"
)

// Status is the like state of one picture as seen by one client.
type Status struct {
	PictureID string `json:"picture_id"`
	Liked     bool   `json:"liked"`
	Count     int    `json:"count"`
}

// Service toggles likes. Toggle is idempotent in the sense that the
// resulting state depends only on the prior state, never on how many
// concurrent toggles raced.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a like service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Toggle flips the identity's like on the picture and returns the new
// state with the updated count.
func (s *Service) Toggle(ctx context.Context, pictureID, identity string) (Status, error) {
	liked, err := s.repo.Exists(ctx, pictureID, identity)
	if err != nil {
		return Status{}, err
	}

	if liked {
		if _, err := s.repo.Remove(ctx, pictureID, identity); err != nil {
			return Status{}, err
		}
	} else {
		if _, err := s.repo.Add(ctx, pictureID, identity); err != nil {
			return Status{}, err
		}
	}

	count, err := s.repo.Count(ctx, pictureID)
	if err != nil {
		return Status{}, err
	}
	return Status{PictureID: pictureID, Liked: !liked, Count: count}, nil
}

// StatusFor reports the identity's like state for one picture.
func (s *Service) StatusFor(ctx context.Context, pictureID, identity string) (Status, error) {
	liked, err := s.repo.Exists(ctx, pictureID, identity)
	if err != nil {
		return Status{}, err
	}
	count, err := s.repo.Count(ctx, pictureID)
	if err != nil {
		return Status{}, err
	}
	return Status{PictureID: pictureID, Liked: liked, Count: count}, nil
}

// Counts returns like totals for every picture that has at least one.
func (s *Service) Counts(ctx context.Context) (map[string]int, error) {
	return s.repo.Counts(ctx)
}

// Forget drops all likes for a removed picture. Errors are logged and
// swallowed so a failed cleanup never blocks the removal itself.
func (s *Service) Forget(ctx context.Context, pictureID string) {
	if err := s.repo.RemoveForPicture(ctx, pictureID); err != nil {
		s.logger.Warn("failed to drop likes for removed picture",
			"picture_id", pictureID,
			"error", err)
	}
}
