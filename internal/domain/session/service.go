package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound is returned when no session exists for the id
	ErrSessionNotFound = errors.New("session not found")
	// ErrAlreadyRevoked is returned when a revocation targets a revoked session
	ErrAlreadyRevoked = errors.New("session already revoked")
)

const (
	minRevocationTTL = time.Hour
	maxChainLength   = 1000
)

// RevocationCache mirrors revocations outside the database.
type RevocationCache interface {
	RevokeSession(ctx context.Context, sessionID string, ttl time.Duration) error
	IsSessionRevoked(ctx context.Context, sessionID string) (bool, error)
}

// CreateParams describes a new session.
type CreateParams struct {
	UserID    uuid.UUID
	IPAddress string
	UserAgent string
	TTL       time.Duration
}

// RevokeParams describes who revoked a session and why.
type RevokeParams struct {
	ReplacedBy *uuid.UUID
	IPAddress  string
	Reason     string
}

// Store is the only writer of session rows.
type Store struct {
	repo  Repository
	cache RevocationCache
	now   func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRevocationCache mirrors revocations into cache and consults it on reads.
func WithRevocationCache(cache RevocationCache) StoreOption {
	return func(s *Store) { s.cache = cache }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func NewStore(repo Repository, opts ...StoreOption) *Store {
	s := &Store{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store's clock reading.
func (s *Store) Now() time.Time {
	return s.now()
}

// Create persists a new active session with a fresh random id.
func (s *Store) Create(ctx context.Context, p CreateParams) (*Session, error) {
	now := s.now()
	sess := &Session{
		UserID:    p.UserID,
		IssuedAt:  now,
		ExpiresAt: now.Add(p.TTL),
		IPAddress: p.IPAddress,
		UserAgent: p.UserAgent,
		LastUsed:  now,
	}
	sess.ID = uuid.New()

	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("Session created", "session_id", sess.ID.String(), "user_id", p.UserID.String(), "ip", p.IPAddress)
	return sess, nil
}

// GetByID returns the session or ErrSessionNotFound.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.repo.FindByID(ctx, id)
}

// Revoke sets all four revocation fields in one conditional write and returns
// the revoked session. A session that is already revoked is left untouched and
// ErrAlreadyRevoked is returned.
func (s *Store) Revoke(ctx context.Context, id uuid.UUID, p RevokeParams) (*Session, error) {
	changed, err := s.repo.Revoke(ctx, id, Revocation{
		At:     s.now(),
		By:     p.ReplacedBy,
		ByIP:   p.IPAddress,
		Reason: p.Reason,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to revoke session: %w", err)
	}

	sess, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !changed {
		return sess, ErrAlreadyRevoked
	}

	s.mirror(ctx, sess)
	slog.Info("Session revoked", "session_id", id.String(), "user_id", sess.UserID.String(), "ip", p.IPAddress, "reason", p.Reason)
	return sess, nil
}

func (s *Store) mirror(ctx context.Context, sess *Session) {
	if s.cache == nil {
		return
	}
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl < minRevocationTTL {
		ttl = minRevocationTTL
	}
	if err := s.cache.RevokeSession(ctx, sess.ID.String(), ttl); err != nil {
		slog.Warn("Failed to store session revocation in cache", "error", err, "session_id", sess.ID.String())
	}
}

// IsActive reports whether the session exists and is neither revoked nor past
// its expiry. A cached revocation is final; cache misses and failures fall
// through to the repository.
func (s *Store) IsActive(ctx context.Context, id uuid.UUID) (bool, error) {
	if s.cache != nil {
		revoked, err := s.cache.IsSessionRevoked(ctx, id.String())
		if err != nil {
			slog.Warn("Revocation cache lookup failed", "error", err, "session_id", id.String())
		} else if revoked {
			return false, nil
		}
	}

	sess, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	return sess.IsActive(s.now()), nil
}

// Touch records that the session was just used.
func (s *Store) Touch(ctx context.Context, id uuid.UUID) error {
	return s.repo.UpdateLastUsed(ctx, id, s.now())
}

// ListActive returns the user's active sessions, newest first.
func (s *Store) ListActive(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	return s.repo.FindActiveByUserID(ctx, userID, s.now())
}

// RevokeAllForUser revokes every active session of the user and returns how
// many were revoked.
func (s *Store) RevokeAllForUser(ctx context.Context, userID uuid.UUID, ip, reason string) (int, error) {
	sessions, err := s.repo.FindActiveByUserID(ctx, userID, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to get sessions for user %s: %w", userID, err)
	}

	revoked := 0
	for _, sess := range sessions {
		if _, err := s.Revoke(ctx, sess.ID, RevokeParams{IPAddress: ip, Reason: reason}); err != nil {
			if errors.Is(err, ErrAlreadyRevoked) {
				continue
			}
			slog.Warn("Failed to revoke session", "error", err, "session_id", sess.ID.String(), "user_id", userID.String())
			continue
		}
		revoked++
	}
	return revoked, nil
}

// Chain returns the rotation lineage that contains id, oldest first. It follows
// revoked_by links for auditing only.
func (s *Store) Chain(ctx context.Context, id uuid.UUID) ([]Session, error) {
	start, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var older []Session
	cursor := start.ID
	for i := 0; i < maxChainLength; i++ {
		prev, err := s.repo.FindReplaced(ctx, cursor)
		if errors.Is(err, ErrSessionNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		older = append(older, *prev)
		cursor = prev.ID
	}

	chain := make([]Session, 0, len(older)+1)
	for i := len(older) - 1; i >= 0; i-- {
		chain = append(chain, older[i])
	}
	chain = append(chain, *start)

	next := start
	for i := 0; i < maxChainLength && next.RevokedBy != nil; i++ {
		sess, err := s.repo.FindByID(ctx, *next.RevokedBy)
		if errors.Is(err, ErrSessionNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		chain = append(chain, *sess)
		next = sess
	}

	return chain, nil
}
