// Package session keeps the per-user navigation record the menu engine reads
// and writes on every event: the screen the user is on and the message that
// gets edited on the next render.
//
// Stores are last-writer-wins. Two events of one user processed concurrently
// both read, modify and commit the record; screens with non-idempotent side
// effects guard those effects themselves.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidUser is returned for a zero user id.
var ErrInvalidUser = errors.New("session: invalid user id")

// Session is the navigation record of one user.
type Session struct {
	UserID       int64
	ChatID       int64
	Username     string
	FirstName    string
	LanguageCode string

	// State is the identifier of the last dispatched screen, 0 for none.
	State int
	// StandingMessageID is the message edited by the next render, 0 for none.
	StandingMessageID int

	// Data belongs to screens. The engine never reads it.
	Data map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New returns an empty session for userID.
func New(userID int64, now time.Time) *Session {
	return &Session{
		UserID:    userID,
		Data:      make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Data = make(map[string]string, len(s.Data))
	for k, v := range s.Data {
		cp.Data[k] = v
	}
	return &cp
}

// Get returns a screen-owned value.
func (s *Session) Get(key string) (string, bool) {
	v, ok := s.Data[key]
	return v, ok
}

// Set stores a screen-owned value.
func (s *Session) Set(key, value string) {
	if s.Data == nil {
		s.Data = make(map[string]string)
	}
	s.Data[key] = value
}

// Del removes a screen-owned value.
func (s *Session) Del(key string) {
	delete(s.Data, key)
}

// Profile is the sender information refreshed on every event.
type Profile struct {
	ChatID       int64
	Username     string
	FirstName    string
	LanguageCode string
}

// Refresh copies non-empty profile fields into the session. The language is
// only taken when the session has none, so a language picked in the bot sticks.
func (s *Session) Refresh(p Profile) {
	if p.ChatID != 0 {
		s.ChatID = p.ChatID
	}
	if p.Username != "" {
		s.Username = p.Username
	}
	if p.FirstName != "" {
		s.FirstName = p.FirstName
	}
	if s.LanguageCode == "" {
		s.LanguageCode = p.LanguageCode
	}
}

// Store loads and persists sessions.
type Store interface {
	// Load returns the session of userID, creating it on first contact.
	// The caller owns the returned value.
	Load(ctx context.Context, userID int64) (*Session, error)
	// Commit persists s, overwriting whatever is stored.
	Commit(ctx context.Context, s *Session) error
}
