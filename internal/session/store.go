// Package session holds the in-memory link between chat users and backend
// accounts. State is process-local on purpose: a restart drops every session
// and users log in again.
package session

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// Session binds one chat user to a backend account. After creation the only
// field that changes in place is LastAlertCheckAt (owned by the monitor);
// a re-login replaces the whole record.
type Session struct {
	UserID      int64
	AccessToken string
	// RefreshToken is stored for completeness but never exercised; expired
	// sessions are dropped, not refreshed.
	RefreshToken string
	Username     string
	ConnectedAt  time.Time

	// LastAlertCheckAt is the time of the last delivered notification.
	// Zero means "never", which the cool-down gate treats as long elapsed.
	LastAlertCheckAt time.Time
}

// Entry is one (user, session) pair in a snapshot.
type Entry struct {
	UserID  int64
	Session Session
}

var ErrEmptyToken = errors.New("session: access token is empty")

// Store maps chat users to sessions and notification channel bindings.
// All single-key operations are atomic; Snapshot is copy-on-read so the
// monitor can iterate while commands mutate.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]Session
	channels map[int64]int64 // userID -> chatID bound for notifications
}

func NewStore() *Store {
	return &Store{
		sessions: map[int64]Session{},
		channels: map[int64]int64{},
	}
}

// Put inserts or replaces the user's session.
func (s *Store) Put(sess Session) error {
	if sess.AccessToken == "" {
		return ErrEmptyToken
	}
	s.mu.Lock()
	s.sessions[sess.UserID] = sess
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(userID int64) (Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	return sess, ok
}

// Remove deletes the session if present. Removing an absent user is a no-op.
func (s *Store) Remove(userID int64) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
}

// Evict drops both the session and the channel binding in one step.
// Used on logout and unauthorized responses.
func (s *Store) Evict(userID int64) {
	s.mu.Lock()
	delete(s.sessions, userID)
	delete(s.channels, userID)
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	n := len(s.sessions)
	s.mu.RUnlock()
	return n
}

// Snapshot returns a stable copy of all active sessions taken at call time,
// ordered by user id for deterministic passes.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.sessions))
	for id, sess := range s.sessions {
		out = append(out, Entry{UserID: id, Session: sess})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// TouchAlertCheck advances LastAlertCheckAt. The write is skipped when the
// session is gone (evicted mid-pass) or when t would move the clock backwards.
func (s *Store) TouchAlertCheck(userID int64, t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return false
	}
	if t.Before(sess.LastAlertCheckAt) {
		return false
	}
	sess.LastAlertCheckAt = t
	s.sessions[userID] = sess
	return true
}

// ---- channel bindings ----

// BindChannel registers the chat that receives the user's notifications.
func (s *Store) BindChannel(userID, chatID int64) {
	s.mu.Lock()
	s.channels[userID] = chatID
	s.mu.Unlock()
}

func (s *Store) Channel(userID int64) (int64, bool) {
	s.mu.RLock()
	id, ok := s.channels[userID]
	s.mu.RUnlock()
	return id, ok
}

func (s *Store) UnbindChannel(userID int64) {
	s.mu.Lock()
	delete(s.channels, userID)
	s.mu.Unlock()
}
