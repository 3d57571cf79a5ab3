// Package session holds the signed-in state of the client: whether a user is
// authenticated and who they are. It replaces ambient global state with an
// explicit object handed to whichever component needs it.
package session

import (
	"sync"

	"github.com/guarzo/staybook/common/model"
)

// State is an immutable snapshot of a Session.
type State struct {
	Authenticated bool
	User          *model.User
}

// Session is safe for concurrent use. The zero value is a signed-out session.
type Session struct {
	mu            sync.RWMutex
	authenticated bool
	user          *model.User
}

func New() *Session {
	return &Session{}
}

// Login marks the session authenticated. user may be nil when the API did not
// return a profile; SetUser can fill it in later.
func (s *Session) Login(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = true
	s.user = cloneUser(user)
}

// Logout resets the session to its initial signed-out values. Calling it on a
// signed-out session is a no-op.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = false
	s.user = nil
}

// SetUser replaces the current user record without touching the flag.
func (s *Session) SetUser(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = cloneUser(user)
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// CurrentUser returns a copy of the user record, or nil.
func (s *Session) CurrentUser() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.user)
}

func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{Authenticated: s.authenticated, User: cloneUser(s.user)}
}

func cloneUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
