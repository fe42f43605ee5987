package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a Repository kept in process memory. It gives the same
// conditional-update guarantees as the SQL repository and backs service tests
// and single-node development runs without Postgres.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]Session
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[uuid.UUID]Session)}
}

func (m *MemoryRepository) Create(_ context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess.ID == uuid.Nil {
		sess.ID = uuid.New()
	}
	now := time.Now().UTC()
	sess.CreatedAt, sess.UpdatedAt = now, now
	m.sessions[sess.ID] = *sess
	return nil
}

func (m *MemoryRepository) FindByID(_ context.Context, id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

func (m *MemoryRepository) Revoke(_ context.Context, id uuid.UUID, rev Revocation) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok || sess.RevokedAt != nil {
		return false, nil
	}

	at := rev.At
	ip := rev.ByIP
	reason := rev.Reason
	sess.RevokedAt = &at
	sess.RevokedByIP = &ip
	sess.RevokedReason = &reason
	if rev.By != nil {
		by := *rev.By
		sess.RevokedBy = &by
	}
	sess.UpdatedAt = time.Now().UTC()
	m.sessions[id] = sess
	return true, nil
}

func (m *MemoryRepository) UpdateLastUsed(_ context.Context, id uuid.UUID, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok || sess.RevokedAt != nil {
		return nil
	}
	sess.LastUsed = t
	m.sessions[id] = sess
	return nil
}

func (m *MemoryRepository) FindActiveByUserID(_ context.Context, userID uuid.UUID, now time.Time) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Session
	for _, sess := range m.sessions {
		if sess.UserID == userID && sess.RevokedAt == nil && now.Before(sess.ExpiresAt) {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}

func (m *MemoryRepository) FindReplaced(_ context.Context, id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found *Session
	for _, sess := range m.sessions {
		if sess.RevokedBy != nil && *sess.RevokedBy == id {
			if found == nil || sess.RevokedAt.Before(*found.RevokedAt) {
				s := sess
				found = &s
			}
		}
	}
	if found == nil {
		return nil, ErrSessionNotFound
	}
	return found, nil
}

// Len returns the number of stored sessions.
func (m *MemoryRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
