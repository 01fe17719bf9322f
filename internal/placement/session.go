// Package placement drives the lifecycle of putting a new picture on
// the wall: reserve a quota slot, pick a position, upload the file,
// publish the picture. Each client identity may run at most one
// session at a time.
package placement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/thewall/internal/asset"
	"github.com/onnwee/thewall/internal/quota"
	"github.com/onnwee/thewall/internal/realtime"
	"github.com/onnwee/thewall/internal/wall"
)

var (
	// ErrSessionActive is returned when a client tries to start a
	// second session while one is already in flight.
	ErrSessionActive = errors.New("placement session already active")
	// ErrSessionNotFound is returned for operations on an unknown or
	// already finished session.
	ErrSessionNotFound = errors.New("placement session not found")
	// ErrQuotaExceeded is returned when the daily quota leaves no
	// room for another placement.
	ErrQuotaExceeded = errors.New("daily upload quota exceeded")
	// ErrInvalidState is returned when an operation is not legal in
	// the session's current state.
	ErrInvalidState = errors.New("operation not valid in current session state")
	// ErrStoreWrite is returned when the uploaded asset could not be
	// published to the wall. The asset itself may already be hosted.
	ErrStoreWrite = errors.New("failed to publish picture")
)

// State is a phase in the placement lifecycle.
type State int

const (
	// StateSelectingPosition means the client is choosing where on
	// the wall the picture will go.
	StateSelectingPosition State = iota
	// StateAwaitingFile means a position is locked in and the client
	// still owes us the file.
	StateAwaitingFile
	// StateUploading means the file transfer and publish are in
	// progress. The session cannot be cancelled in this state.
	StateUploading
)

func (s State) String() string {
	switch s {
	case StateSelectingPosition:
		return "selecting_position"
	case StateAwaitingFile:
		return "awaiting_file"
	case StateUploading:
		return "uploading"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is one in-flight placement for a single client.
type Session struct {
	ID        string
	Identity  string
	StartedAt time.Time

	mu          sync.Mutex
	state       State
	position    wall.Position
	hasPosition bool
	reservation *quota.Reservation
	decision    quota.Decision
	manager     *Manager
	done        bool
}

// State returns the session's current phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Decision returns the quota decision made when the session started.
func (s *Session) Decision() quota.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decision
}

// Position returns the chosen normalized position, if one is set.
func (s *Session) Position() (wall.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position, s.hasPosition
}

// DefaultSessionTTL bounds how long a session may sit unfinished. A
// client that closes its tab mid-placement would otherwise hold the
// single-flight slot and its quota reservation forever.
const DefaultSessionTTL = 15 * time.Minute

// Manager tracks active placement sessions and enforces single-flight
// per identity. Sessions older than the TTL are reclaimed, either by
// the Run sweep or lazily when their identity starts a new one.
type Manager struct {
	limiter *quota.Limiter
	host    asset.Host
	store   *realtime.Store
	logger  *slog.Logger
	ttl     time.Duration
	now     func() time.Time

	mu         sync.Mutex
	byIdentity map[string]*Session
	byID       map[string]*Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithSessionTTL overrides the session expiry deadline.
func WithSessionTTL(d time.Duration) Option {
	return func(m *Manager) { m.ttl = d }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a placement manager.
func NewManager(limiter *quota.Limiter, host asset.Host, store *realtime.Store, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		limiter:    limiter,
		host:       host,
		store:      store,
		logger:     logger,
		ttl:        DefaultSessionTTL,
		now:        time.Now,
		byIdentity: make(map[string]*Session),
		byID:       make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start opens a new session for the identity. It reserves a quota slot
// up front so two concurrent placements cannot both pass the same
// remaining-count check. Returns ErrSessionActive if the identity
// already has a session in flight and ErrQuotaExceeded when the daily
// limit is spent. An existing session that outlived the TTL is
// cancelled and replaced instead of blocking the new one.
func (m *Manager) Start(ctx context.Context, identity string) (*Session, error) {
	for {
		m.mu.Lock()
		cur, ok := m.byIdentity[identity]
		if !ok {
			// Park a placeholder so a concurrent Start for the same
			// identity fails fast while we talk to the quota store.
			m.byIdentity[identity] = &Session{}
			m.mu.Unlock()
			break
		}
		m.mu.Unlock()

		// A placeholder (empty ID) is a concurrent Start in flight.
		if cur.ID == "" || !cur.expired(m.now().Add(-m.ttl)) {
			return nil, ErrSessionActive
		}
		// The old session outlived its deadline; reclaim its slot and
		// retry. Cancel may lose a race with the session finishing on
		// its own, which is fine either way.
		if err := cur.Cancel(ctx); err != nil && errors.Is(err, ErrInvalidState) {
			return nil, ErrSessionActive
		}
		m.logger.Info("expired placement session reclaimed",
			"session_id", cur.ID,
			"identity", identity)
	}

	decision, reservation := m.limiter.Reserve(ctx, identity)
	if !decision.Allowed {
		m.mu.Lock()
		delete(m.byIdentity, identity)
		m.mu.Unlock()
		return nil, ErrQuotaExceeded
	}

	session := &Session{
		ID:          uuid.New().String(),
		Identity:    identity,
		StartedAt:   m.now().UTC(),
		state:       StateSelectingPosition,
		reservation: reservation,
		decision:    decision,
		manager:     m,
	}

	m.mu.Lock()
	m.byIdentity[identity] = session
	m.byID[session.ID] = session
	m.mu.Unlock()

	m.logger.Info("placement session started",
		"session_id", session.ID,
		"identity", identity,
		"quota_used", decision.Used,
		"quota_remaining", decision.Remaining,
		"bypass", decision.Bypass)
	return session, nil
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	return s, ok
}

// ForIdentity returns the identity's active session, if any.
func (m *Manager) ForIdentity(identity string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byIdentity[identity]
	if !ok || s.ID == "" {
		return nil, false
	}
	return s, true
}

// ExpireStale cancels every session that started before the TTL-derived
// cutoff and returns how many slots were reclaimed. Sessions with an
// upload in progress are left alone.
func (m *Manager) ExpireStale(ctx context.Context) int {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	candidates := make([]*Session, 0, len(m.byID))
	for _, s := range m.byID {
		candidates = append(candidates, s)
	}
	m.mu.Unlock()

	reclaimed := 0
	for _, s := range candidates {
		if !s.expired(cutoff) {
			continue
		}
		if err := s.Cancel(ctx); err != nil {
			continue
		}
		reclaimed++
		m.logger.Info("expired placement session reclaimed",
			"session_id", s.ID,
			"identity", s.Identity)
	}
	return reclaimed
}

// Run sweeps expired sessions until the context is cancelled. Meant to
// be started as a goroutine next to the HTTP server.
func (m *Manager) Run(ctx context.Context) {
	interval := m.ttl / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ExpireStale(ctx)
		}
	}
}

// ActiveCount returns how many sessions are in flight.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	if cur, ok := m.byIdentity[s.Identity]; ok && cur == s {
		delete(m.byIdentity, s.Identity)
	}
	delete(m.byID, s.ID)
	m.mu.Unlock()
}

// expired reports whether the session started before the cutoff and can
// be reclaimed. An in-flight upload is never expired.
func (s *Session) expired(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.done && s.state != StateUploading && s.StartedAt.Before(cutoff)
}

// SetPosition converts the client's pixel point against its viewport
// into normalized coordinates and locks it in, advancing the session
// to the awaiting-file phase. Re-invoking while still awaiting the
// file replaces the previous position.
func (s *Session) SetPosition(p wall.Point, viewport wall.Rect) error {
	pos, err := wall.ToNormalized(p, viewport)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return ErrSessionNotFound
	}
	if s.state != StateSelectingPosition && s.state != StateAwaitingFile {
		return ErrInvalidState
	}
	s.position = pos
	s.hasPosition = true
	s.state = StateAwaitingFile
	return nil
}

// Dismiss abandons the chosen position and returns the session to
// position selection. The quota reservation stays held.
func (s *Session) Dismiss() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return ErrSessionNotFound
	}
	if s.state != StateAwaitingFile {
		return ErrInvalidState
	}
	s.hasPosition = false
	s.state = StateSelectingPosition
	return nil
}

// Upload sends the file to the asset host and publishes the resulting
// picture to the wall at the session's position. On success the
// session is finished and its quota reservation committed. A hosting
// failure ends the session and returns the quota slot; a publish
// failure after a successful upload also ends the session but the
// hosted asset is left behind.
func (s *Session) Upload(ctx context.Context, file io.Reader, filename, contentType string) (*wall.Picture, error) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if s.state != StateAwaitingFile {
		s.mu.Unlock()
		return nil, ErrInvalidState
	}
	s.state = StateUploading
	pos := s.position
	s.mu.Unlock()

	result, err := s.manager.host.Upload(ctx, file, filename, contentType)
	if err != nil {
		s.fail(ctx)
		s.manager.logger.Error("asset upload failed",
			"session_id", s.ID,
			"identity", s.Identity,
			"error", err)
		return nil, err
	}

	picture := &wall.Picture{
		AssetURL: result.SecureURL,
		AssetID:  result.PublicID,
		Position: pos,
		Size:     wall.Size{Width: result.Width, Height: result.Height},
	}
	id, err := s.manager.store.Add(ctx, picture)
	if err != nil {
		s.fail(ctx)
		s.manager.logger.Error("picture publish failed",
			"session_id", s.ID,
			"identity", s.Identity,
			"asset_id", result.PublicID,
			"error", err)
		return nil, fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	picture.ID = id

	s.mu.Lock()
	s.done = true
	reservation := s.reservation
	s.mu.Unlock()
	reservation.Commit(ctx)
	s.manager.remove(s)

	s.manager.logger.Info("placement committed",
		"session_id", s.ID,
		"identity", s.Identity,
		"picture_id", id)
	return picture, nil
}

// Cancel abandons the session and returns its quota slot. Not allowed
// while an upload is in progress.
func (s *Session) Cancel(ctx context.Context) error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	if s.state == StateUploading {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.done = true
	reservation := s.reservation
	s.mu.Unlock()

	reservation.Release(ctx)
	s.manager.remove(s)
	s.manager.logger.Info("placement cancelled",
		"session_id", s.ID,
		"identity", s.Identity)
	return nil
}

// fail ends the session after an upload error and returns the quota
// slot so the client can retry with a fresh session.
func (s *Session) fail(ctx context.Context) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	reservation := s.reservation
	s.mu.Unlock()

	reservation.Release(ctx)
	s.manager.remove(s)
}
