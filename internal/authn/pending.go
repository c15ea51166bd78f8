package authn

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// pendingTTL bounds the authenticated-but-awaiting-second-factor state.
const pendingTTL = 5 * time.Minute

// Login modes recorded on a pending entry so completion knows what to grant.
const (
	// PendingModeSession finalizes into a server-side session.
	PendingModeSession = "session"
	// PendingModeToken finalizes into bearer tokens.
	PendingModeToken = "token"
)

// pendingEntry parks a primary-verified login until the second factor completes.
type pendingEntry struct {
	userID  uint64
	mode    string
	expires time.Time
}

// PendingStore keeps awaiting-second-factor logins in memory. Entries are
// single use and validity is checked at consumption time.
type PendingStore struct {
	mu    sync.Mutex
	items map[string]pendingEntry
}

// NewPendingStore creates an empty store.
func NewPendingStore() *PendingStore {
	return &PendingStore{items: make(map[string]pendingEntry)}
}

// Add parks a user and returns the opaque pending-login token.
func (s *PendingStore) Add(userID uint64, mode string) string {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[token] = pendingEntry{userID: userID, mode: mode, expires: time.Now().Add(pendingTTL)}
	return token
}

// Peek returns the parked user without consuming the entry.
func (s *PendingStore) Peek(token string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.items[token]
	if !ok {
		return 0, false
	}
	if time.Now().After(entry.expires) {
		delete(s.items, token)
		return 0, false
	}
	return entry.userID, true
}

// Consume removes the entry and returns the parked user and login mode.
// Expired and unknown tokens fail identically.
func (s *PendingStore) Consume(token string) (uint64, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.items[token]
	if !ok {
		return 0, "", false
	}
	delete(s.items, token)
	if time.Now().After(entry.expires) {
		return 0, "", false
	}
	return entry.userID, entry.mode, true
}
