package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/npezzotti/go-forum/internal/chat"
	"github.com/npezzotti/go-forum/internal/log"
	"github.com/npezzotti/go-forum/internal/types"
)

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type ChangeEmailRequest struct {
	CurrentPassword string `json:"current_password"`
	NewEmail        string `json:"new_email"`
	ConfirmEmail    string `json:"confirm_email"`
}

type ChangeDisplayNameRequest struct {
	DisplayName string `json:"display_name"`
}

type CustomizationRequest struct {
	NameColor string `json:"name_color"`
	Bio       string `json:"bio"`
}

type CreateCommentRequest struct {
	Text string `json:"text"`
}

type ProfileResponse struct {
	Success  bool            `json:"success"`
	User     types.User      `json:"user"`
	Comments []types.Comment `json:"comments"`
}

type CommentsResponse struct {
	Success  bool            `json:"success"`
	Comments []types.Comment `json:"comments"`
}

type CommentResponse struct {
	Success bool          `json:"success"`
	Comment types.Comment `json:"comment"`
}

type HistoryResponse struct {
	Success  bool                `json:"success"`
	Messages []types.ChatMessage `json:"messages"`
}

type ChatUser struct {
	Id       int    `json:"id"`
	Username string `json:"username"`
}

type ChatPageResponse struct {
	Success     bool                `json:"success"`
	Messages    []types.ChatMessage `json:"messages"`
	CurrentUser *ChatUser           `json:"current_user"`
}

func (s *ForumApp) writeJson(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("json encode")
	}
}

// writeError logs server side failures with their cause and writes the
// client facing body.
func (s *ForumApp) writeError(w http.ResponseWriter, r *http.Request, apiErr *ApiError) {
	if apiErr.StatusCode >= http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(apiErr.Err).Msg(apiErr.Message)
	}
	s.writeJson(w, apiErr.StatusCode, apiErr)
}

func (s *ForumApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Error().Err(err).Msg("health check failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// currentUser returns the user id placed in the context by authMiddleware.
func (s *ForumApp) currentUser(w http.ResponseWriter, r *http.Request) (int, bool) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, r, NewUnauthorizedError())
	}
	return userId, ok
}

func (s *ForumApp) profile(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	user, err := s.auth.Profile(r.Context(), userId)
	if err != nil {
		s.writeError(w, r, errorFromDomain(err, "Failed to load profile."))
		return
	}

	comments, err := s.chat.RecentByUser(r.Context(), userId)
	if err != nil {
		s.writeError(w, r, errorFromDomain(err, "Failed to load profile."))
		return
	}

	s.writeJson(w, http.StatusOK, ProfileResponse{
		Success:  true,
		User:     user,
		Comments: comments,
	})
}

func (s *ForumApp) changePassword(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	token, _, _ := SessionFrom(r.Context())

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, NewBadRequestError(""))
		return
	}

	err := s.auth.ChangePassword(r.Context(), token, userId, req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		s.writeError(w, r, errorFromDomain(err, "Failed to change password."))
		return
	}

	http.SetCookie(w, s.sessions.ExpiredCookie())
	s.writeJson(w, http.StatusOK, MessageResponse{
		Success: true,
		Message: "Password Changed! Please login again.",
	})
}

func (s *ForumApp) changeEmail(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req ChangeEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, NewBadRequestError(""))
		return
	}

	if err := s.auth.ChangeEmail(r.Context(), userId, req.CurrentPassword, req.NewEmail, req.ConfirmEmail); err != nil {
		s.writeError(w, r, errorFromDomain(err, "Failed to change email."))
		return
	}

	s.writeJson(w, http.StatusOK, MessageResponse{Success: true, Message: "Email updated successfully."})
}

func (s *ForumApp) changeDisplayName(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req ChangeDisplayNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, NewBadRequestError(""))
		return
	}

	if err := s.auth.ChangeDisplayName(r.Context(), userId, req.DisplayName); err != nil {
		s.writeError(w, r, errorFromDomain(err, "Failed to change display name."))
		return
	}

	s.writeJson(w, http.StatusOK, MessageResponse{Success: true, Message: "Display name updated successfully."})
}

func (s *ForumApp) updateCustomization(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req CustomizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, NewBadRequestError(""))
		return
	}

	if err := s.auth.UpdateCustomization(r.Context(), userId, req.NameColor, req.Bio); err != nil {
		s.writeError(w, r, errorFromDomain(err, "Failed to update profile."))
		return
	}

	s.writeJson(w, http.StatusOK, MessageResponse{Success: true, Message: "Profile updated successfully."})
}

func (s *ForumApp) listComments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := chat.ParseLimit(query.Get("limit"), s.chat.DefaultLimit(), s.chat.MaxLimit())
	before, err := chat.ParseBefore(query.Get("before"))
	if err != nil {
		s.writeError(w, r, errorFromDomain(err, ""))
		return
	}

	comments, err := s.chat.Comments(r.Context(), limit, before)
	if err != nil {
		s.writeError(w, r, errorFromDomain(err, "Failed to fetch comments."))
		return
	}

	s.writeJson(w, http.StatusOK, CommentsResponse{Success: true, Comments: comments})
}

func (s *ForumApp) createComment(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, NewBadRequestError(""))
		return
	}

	comment, err := s.chat.PostComment(r.Context(), userId, req.Text)
	if err != nil {
		s.writeError(w, r, errorFromDomain(err, "Failed to post comment."))
		return
	}

	s.writeJson(w, http.StatusCreated, CommentResponse{Success: true, Comment: comment})
}

func (s *ForumApp) chatHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := chat.ParseLimit(query.Get("limit"), s.chat.DefaultLimit(), s.chat.MaxLimit())
	before, err := chat.ParseBefore(query.Get("before"))
	if err != nil {
		s.writeError(w, r, errorFromDomain(err, ""))
		return
	}

	messages, err := s.chat.History(r.Context(), limit, before)
	if err != nil {
		s.writeError(w, r, errorFromDomain(err, "Failed to fetch chat history"))
		return
	}

	s.writeJson(w, http.StatusOK, HistoryResponse{Success: true, Messages: messages})
}

// chatPage returns the data the chat page is rendered from. Guests get an
// empty transcript and no current user.
func (s *ForumApp) chatPage(w http.ResponseWriter, r *http.Request) {
	resp := ChatPageResponse{
		Success:  true,
		Messages: []types.ChatMessage{},
	}

	_, sess, err := s.sessions.Resolve(r)
	if err != nil {
		if !errors.Is(err, types.ErrUnauthenticated) {
			s.writeError(w, r, errorFromDomain(err, "Failed to load session."))
			return
		}
		s.writeJson(w, http.StatusOK, resp)
		return
	}

	messages, err := s.chat.Recent(r.Context())
	if err != nil {
		s.writeError(w, r, errorFromDomain(err, "Failed to fetch chat history"))
		return
	}

	resp.Messages = messages
	resp.CurrentUser = &ChatUser{Id: sess.UserId, Username: sess.Username}
	s.writeJson(w, http.StatusOK, resp)
}

func (s *ForumApp) serveWs(w http.ResponseWriter, r *http.Request) {
	if s.cs == nil {
		s.writeError(w, r, newApiError(http.StatusServiceUnavailable, "Chat is unavailable.", nil))
		return
	}

	s.cs.ServeWs(w, r)
}
