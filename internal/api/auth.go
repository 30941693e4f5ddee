package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/npezzotti/go-forum/internal/auth"
	"github.com/npezzotti/go-forum/internal/log"
	"github.com/npezzotti/go-forum/internal/session"
	"github.com/npezzotti/go-forum/internal/types"
)

type contextKey string

const (
	userIdKey  contextKey = "user-id"
	tokenKey   contextKey = "session-token"
	sessionKey contextKey = "session"
)

func WithUserId(ctx context.Context, userId int) context.Context {
	return context.WithValue(ctx, userIdKey, userId)
}

func UserId(ctx context.Context) (int, bool) {
	userId, ok := ctx.Value(userIdKey).(int)

	return userId, ok
}

// WithSession stores the resolved session, its token and its user id.
func WithSession(ctx context.Context, token string, sess *session.Session) context.Context {
	ctx = context.WithValue(ctx, tokenKey, token)
	ctx = context.WithValue(ctx, sessionKey, sess)
	return WithUserId(ctx, sess.UserId)
}

func SessionFrom(ctx context.Context) (string, *session.Session, bool) {
	token, _ := ctx.Value(tokenKey).(string)
	sess, ok := ctx.Value(sessionKey).(*session.Session)

	return token, sess, ok && token != ""
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username        string `json:"username"`
	DisplayName     string `json:"display_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type UserResponse struct {
	Success bool       `json:"success"`
	User    types.User `json:"user"`
}

type SessionResponse struct {
	Success bool          `json:"success"`
	User    types.Visitor `json:"user"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func guestVisitor() types.Visitor {
	return types.Visitor{Name: "Guest"}
}

func (s *ForumApp) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, NewBadRequestError(""))
		return
	}

	user, err := s.auth.Register(r.Context(), auth.RegisterParams{
		Username:        req.Username,
		DisplayName:     req.DisplayName,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		s.writeError(w, r, errorFromDomain(err, "Registration failed."))
		return
	}

	s.writeJson(w, http.StatusCreated, UserResponse{Success: true, User: user})
}

func (s *ForumApp) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, NewBadRequestError(""))
		return
	}

	res, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, errorFromDomain(err, "Login failed."))
		return
	}

	cookie, err := s.sessions.Cookie(res.Token)
	if err != nil {
		s.writeError(w, r, NewInternalServerError(err))
		return
	}

	if s.stats != nil {
		s.stats.Incr(metricLogins)
	}

	http.SetCookie(w, cookie)
	s.writeJson(w, http.StatusOK, UserResponse{Success: true, User: res.User})
}

// logout ends whatever session the request carries. A request without one
// still gets its cookie cleared.
func (s *ForumApp) logout(w http.ResponseWriter, r *http.Request) {
	token, err := s.sessions.TokenFromRequest(r)
	if err == nil {
		if err := s.auth.Logout(r.Context(), token); err != nil {
			s.writeError(w, r, errorFromDomain(err, "Logout failed."))
			return
		}
	}

	http.SetCookie(w, s.sessions.ExpiredCookie())
	s.writeJson(w, http.StatusOK, MessageResponse{Success: true})
}

// session reports the visitor view for the home page and counts the visit
// of a logged-in user.
func (s *ForumApp) session(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

	token, sess, err := s.sessions.Lookup(r)
	if err != nil {
		if !errors.Is(err, types.ErrUnauthenticated) {
			s.writeError(w, r, errorFromDomain(err, "Failed to load session."))
			return
		}
		s.writeJson(w, http.StatusOK, SessionResponse{Success: true, User: guestVisitor()})
		return
	}

	if !sess.IsLoggedIn {
		s.writeJson(w, http.StatusOK, SessionResponse{Success: true, User: guestVisitor()})
		return
	}

	visitor, err := s.auth.Touch(r.Context(), token, sess)
	if err != nil {
		// the visit still renders when the counter could not be saved
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to record visit")
	}

	s.writeJson(w, http.StatusOK, SessionResponse{Success: true, User: visitor})
}
