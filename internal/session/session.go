// Package session owns the process-wide current-identity value. It is an
// injected object, not a global: navigation and services receive the same
// instance and treat it as the single source of truth for which application
// mode is active.
package session

import (
	"context"

	"github.com/ArtyomNalbandian/Dolcetto/internal/domain"
	"github.com/ArtyomNalbandian/Dolcetto/internal/state"
)

// Identity is the authenticated user plus the session token issued for it.
// A nil-user identity means signed out.
type Identity struct {
	User  *domain.UserData
	Token string
}

// Session holds the current identity. Unset at process start, set on login,
// register or token restore, cleared on logout.
type Session struct {
	current *state.Value[Identity]
}

func New() *Session {
	return &Session{current: state.NewValue(Identity{})}
}

// Set installs a new authenticated identity and notifies watchers.
func (s *Session) Set(user domain.UserData, token string) {
	s.current.Set(Identity{User: &user, Token: token})
}

// Clear signs the current identity out.
func (s *Session) Clear() {
	s.current.Set(Identity{})
}

// Current returns the authenticated user, if any.
func (s *Session) Current() (domain.UserData, bool) {
	id := s.current.Get()
	if id.User == nil {
		return domain.UserData{}, false
	}
	return *id.User, true
}

// Token returns the session token of the current identity.
func (s *Session) Token() (string, bool) {
	id := s.current.Get()
	return id.Token, id.User != nil
}

// Watch delivers the current identity and every change until ctx ends.
func (s *Session) Watch(ctx context.Context) <-chan Identity {
	return s.current.Watch(ctx)
}
