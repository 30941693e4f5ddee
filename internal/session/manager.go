package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/npezzotti/go-forum/internal/types"
)

const (
	sessionIdClaim = "sid"
	expClaim       = "exp"

	DefaultCookieName = "forum_session"
	DefaultTTL        = 24 * time.Hour
)

type Options struct {
	CookieName   string
	TTL          time.Duration
	SecureCookie bool
	SigningKey   []byte
}

// Manager issues session cookies and resolves requests back to the session
// they carry. The cookie holds the session token signed as a JWT so a
// forged or altered cookie is rejected before the store is consulted.
type Manager struct {
	store      Store
	cookieName string
	ttl        time.Duration
	secure     bool
	signingKey []byte
}

func NewManager(store Store, opts Options) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}

	return &Manager{
		store:      store,
		cookieName: opts.CookieName,
		ttl:        opts.TTL,
		secure:     opts.SecureCookie,
		signingKey: opts.SigningKey,
	}
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

// NewToken returns a fresh opaque session token.
func (m *Manager) NewToken() string {
	return uuid.NewString()
}

// Save stamps the session expiry and writes it under token.
func (m *Manager) Save(ctx context.Context, token string, sess *Session) error {
	sess.Id = token
	sess.ExpiresAt = time.Now().Add(m.ttl).UTC()
	return m.store.Set(ctx, token, sess)
}

func (m *Manager) Destroy(ctx context.Context, token string) error {
	return m.store.Destroy(ctx, token)
}

// Cookie builds the session cookie for token.
func (m *Manager) Cookie(token string) (*http.Cookie, error) {
	exp := time.Now().Add(m.ttl)
	jwtToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		sessionIdClaim: token,
		expClaim:       exp.Unix(),
	})

	signed, err := jwtToken.SignedString(m.signingKey)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	return &http.Cookie{
		Name:     m.cookieName,
		Value:    signed,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// ExpiredCookie instructs the browser to drop the session cookie.
func (m *Manager) ExpiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// TokenFromRequest verifies the session cookie and returns the token it carries.
func (m *Manager) TokenFromRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return "", fmt.Errorf("get cookie: %w", err)
	}

	return m.parseToken(cookie.Value)
}

func (m *Manager) parseToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.signingKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	sid, ok := claims[sessionIdClaim].(string)
	if !ok || sid == "" {
		return "", fmt.Errorf("invalid session id claim")
	}

	return sid, nil
}

// Lookup returns the session carried by r whether or not it is logged in.
// Requests without a valid cookie or with an unknown token yield
// types.ErrUnauthenticated.
func (m *Manager) Lookup(r *http.Request) (string, *Session, error) {
	token, err := m.TokenFromRequest(r)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", types.ErrUnauthenticated, err)
	}

	sess, err := m.store.Get(r.Context(), token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil, fmt.Errorf("%w: %v", types.ErrUnauthenticated, err)
		}
		return "", nil, types.NewStoreError("get session", err)
	}

	return token, sess, nil
}

// Resolve returns the logged-in session carried by r. It is the single
// authentication check used by HTTP handlers and the realtime handshake.
func (m *Manager) Resolve(r *http.Request) (string, *Session, error) {
	token, sess, err := m.Lookup(r)
	if err != nil {
		return "", nil, err
	}

	if !sess.IsLoggedIn || sess.UserId == 0 {
		return "", nil, types.ErrUnauthenticated
	}

	return token, sess, nil
}
