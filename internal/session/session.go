// Package session holds the login state shared by the HTTP handlers and the
// realtime gateway. Both look sessions up by the same opaque token.
package session

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	Id         string     `json:"id"`
	UserId     int        `json:"user_id"`
	Username   string     `json:"username"`
	IsLoggedIn bool       `json:"is_logged_in"`
	LoginTime  *time.Time `json:"login_time,omitempty"`
	VisitCount int        `json:"visit_count"`
	ExpiresAt  time.Time  `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at t. A zero
// ExpiresAt never expires.
func (s *Session) Expired(t time.Time) bool {
	return !s.ExpiresAt.IsZero() && !t.Before(s.ExpiresAt)
}

// Store persists sessions keyed by token. Get returns ErrNotFound for
// missing or expired sessions. Set overwrites any existing session.
type Store interface {
	Get(ctx context.Context, token string) (*Session, error)
	Set(ctx context.Context, token string, sess *Session) error
	Destroy(ctx context.Context, token string) error
}
