package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/menubot/core/logger"
)

// MemoryStore keeps sessions in process memory. Load hands out copies so
// callers see the same read-modify-write behavior as with SQLStore.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	now      func() time.Time
}

// NewMemoryStore constructs an in-memory store for tests and development.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]*Session),
		now:      time.Now,
	}
}

// Load returns a copy of the stored session, creating it if absent.
func (m *MemoryStore) Load(ctx context.Context, userID int64) (*Session, error) {
	if userID == 0 {
		return nil, ErrInvalidUser
	}
	m.mu.RLock()
	sess, ok := m.sessions[userID]
	m.mu.RUnlock()
	if ok {
		return sess.Clone(), nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[userID]; ok {
		return sess.Clone(), nil
	}
	sess = New(userID, m.now().UTC())
	m.sessions[userID] = sess
	logger.SESS.LogAttrs(ctx, slog.LevelDebug, "session.create",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("store", "memory"),
	)
	return sess.Clone(), nil
}

// Commit replaces the stored session with a copy of s.
func (m *MemoryStore) Commit(_ context.Context, s *Session) error {
	if s == nil || s.UserID == 0 {
		return ErrInvalidUser
	}
	cp := s.Clone()
	cp.UpdatedAt = m.now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.sessions[s.UserID]; ok && cp.CreatedAt.IsZero() {
		cp.CreatedAt = prev.CreatedAt
	}
	m.sessions[s.UserID] = cp
	return nil
}

// Len reports the number of known users.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
