// Package admin holds the operator surface of the wall: redeeming the
// quota bypass credential, wiping the wall, and inspecting counters.
// None of this is reachable without presenting a configured credential.
package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"sync"

	"github.com/onnwee/thewall/internal/realtime"
)

// ErrInvalidCredential is returned when a presented credential does
// not match the configured one, or when none is configured at all.
var ErrInvalidCredential = errors.New("invalid credential")

// Config carries the operator credentials. An empty credential
// disables the corresponding capability entirely.
type Config struct {
	// BypassCredential unlocks unlimited uploads for a session.
	BypassCredential string
	// AdminCredential guards destructive operations such as wiping
	// the wall.
	AdminCredential string
}

// Stats is a point-in-time view of the wall for operators.
type Stats struct {
	Pictures    int `json:"pictures"`
	Subscribers int `json:"subscribers"`
}

// Service implements the operator operations.
type Service struct {
	cfg    Config
	tokens *BypassTokens
	store  *realtime.Store
	logger *slog.Logger

	// Tokens are stateless, so surrendering one before it expires
	// needs a denylist. Entries outlive their token's expiry by at
	// most BypassTokenExpiry; the set stays tiny in practice.
	revokedMu sync.Mutex
	revoked   map[string]struct{}
}

// NewService creates an admin service.
func NewService(cfg Config, tokens *BypassTokens, store *realtime.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:     cfg,
		tokens:  tokens,
		store:   store,
		logger:  logger,
		revoked: make(map[string]struct{}),
	}
}

// credentialMatches compares in constant time. A blank configured
// credential never matches, so unset credentials stay locked.
func credentialMatches(configured, presented string) bool {
	if configured == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) == 1
}

// RedeemBypass exchanges the bypass credential for a session token.
// The credential is checked in constant time; a wrong or unconfigured
// credential yields ErrInvalidCredential.
func (s *Service) RedeemBypass(identity, credential string) (string, error) {
	if !credentialMatches(s.cfg.BypassCredential, credential) {
		s.logger.Warn("bypass credential rejected", "identity", identity)
		return "", ErrInvalidCredential
	}

	token, err := s.tokens.Generate(identity)
	if err != nil {
		return "", err
	}
	s.logger.Info("bypass credential redeemed", "identity", identity)
	return token, nil
}

// VerifyBypass reports whether the presented token grants a quota
// bypass.
func (s *Service) VerifyBypass(token string) bool {
	if token == "" {
		return false
	}
	s.revokedMu.Lock()
	_, gone := s.revoked[token]
	s.revokedMu.Unlock()
	if gone {
		return false
	}
	_, err := s.tokens.Validate(token)
	return err == nil
}

// RevokeBypass surrenders a bypass token before its expiry. Only a
// currently valid token can be revoked; anything else is
// ErrInvalidToken.
func (s *Service) RevokeBypass(token string) error {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return err
	}

	s.revokedMu.Lock()
	s.revoked[token] = struct{}{}
	s.revokedMu.Unlock()

	s.logger.Info("bypass token revoked", "identity", claims.Subject)
	return nil
}

// AuthorizeAdmin checks the admin credential.
func (s *Service) AuthorizeAdmin(credential string) error {
	if !credentialMatches(s.cfg.AdminCredential, credential) {
		return ErrInvalidCredential
	}
	return nil
}

// ClearWall removes every picture and pushes the empty snapshot to all
// subscribers. Returns how many pictures were removed.
func (s *Service) ClearWall(ctx context.Context, credential string) (int, error) {
	if err := s.AuthorizeAdmin(credential); err != nil {
		s.logger.Warn("admin credential rejected for clear")
		return 0, err
	}

	removed, err := s.store.ClearAll(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("wall cleared", "removed", removed)
	return removed, nil
}

// WallStats returns counters for the operator dashboard.
func (s *Service) WallStats(ctx context.Context, credential string) (Stats, error) {
	if err := s.AuthorizeAdmin(credential); err != nil {
		return Stats{}, err
	}

	pictures, err := s.store.Snapshot(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Pictures:    len(pictures),
		Subscribers: s.store.SubscriberCount(),
	}, nil
}
