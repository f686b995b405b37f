package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/andertben/skillspot-chat/internal/events"
	"github.com/andertben/skillspot-chat/internal/models"
)

// Status reports whether the user is signed in.
type Status interface {
	Authenticated() bool
	Subject() string
}

// Session tracks the signed-in subject and announces transitions on the hub.
type Session struct {
	hub events.Publisher

	mu            sync.RWMutex
	authenticated bool
	subject       string
}

// NewSession creates a signed-out session.
func NewSession(hub events.Publisher) *Session {
	return &Session{hub: hub}
}

// Authenticated reports whether the session is signed in.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// Subject returns the signed-in subject (sender ID), or "".
func (s *Session) Subject() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subject
}

// Login marks the session signed in and publishes session.login. Logging in
// again with the same subject is a no-op.
func (s *Session) Login(ctx context.Context, subject string) {
	subject = strings.TrimSpace(subject)

	s.mu.Lock()
	if s.authenticated && s.subject == subject {
		s.mu.Unlock()
		return
	}
	s.authenticated = true
	s.subject = subject
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.Publish(ctx, &models.Event{
			Type:     models.EventTypeSessionLogin,
			Metadata: map[string]string{"subject": subject},
		})
	}
}

// Logout marks the session signed out and publishes session.logout.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	if !s.authenticated {
		s.mu.Unlock()
		return
	}
	s.authenticated = false
	s.subject = ""
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.Publish(ctx, &models.Event{Type: models.EventTypeSessionLogout})
	}
}
