package twofactor

import (
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// sessionEntry stores WebAuthn session data with expiry.
type sessionEntry struct {
	data    webauthn.SessionData
	expires time.Time
}

// sessionStore keeps outstanding ceremony challenges in memory. A challenge
// is single use and expiry is checked when it is consumed.
type sessionStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]sessionEntry
}

// newSessionStore creates an empty store with the given challenge validity.
func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{ttl: ttl, items: make(map[string]sessionEntry)}
}

// Set stores session data with expiry.
func (s *sessionStore) Set(key string, data webauthn.SessionData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expires := data.Expires
	if expires.IsZero() {
		expires = time.Now().Add(s.ttl)
	}
	s.items[key] = sessionEntry{data: data, expires: expires}
}

// Take removes and returns session data if present and not expired.
func (s *sessionStore) Take(key string) (webauthn.SessionData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.items[key]
	if !ok {
		return webauthn.SessionData{}, false
	}
	delete(s.items, key)
	if time.Now().After(entry.expires) {
		return webauthn.SessionData{}, false
	}
	return entry.data, true
}

// Delete removes a session entry.
func (s *sessionStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}
