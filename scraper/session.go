package scraper

import (
	"sync"

	"github.com/aluiziolira/go-scrape-rentals/browser"
)

// SessionStore keeps the cookies of the last successful detail view. It is
// best-effort state for later page opens, never required for correctness.
type SessionStore struct {
	mu      sync.Mutex
	cookies []browser.Cookie
}

// NewSessionStore returns an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

// Save replaces the stored cookies.
func (s *SessionStore) Save(cookies []browser.Cookie) {
	if s == nil {
		return
	}
	out := make([]browser.Cookie, len(cookies))
	copy(out, cookies)

	s.mu.Lock()
	s.cookies = out
	s.mu.Unlock()
}

// Snapshot returns a copy of the stored cookies.
func (s *SessionStore) Snapshot() []browser.Cookie {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]browser.Cookie, len(s.cookies))
	copy(out, s.cookies)
	return out
}

// Len reports how many cookies are stored.
func (s *SessionStore) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cookies)
}
