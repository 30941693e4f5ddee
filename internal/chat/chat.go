// Package chat serves chat history and comments from the message store.
package chat

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/npezzotti/go-forum/internal/database"
	"github.com/npezzotti/go-forum/internal/types"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
	RecentCommentsLimit = 10

	maxMessageLength = 1000
	maxCommentLength = 2000
)

type Options struct {
	DefaultLimit int
	MaxLimit     int
}

type Service struct {
	db           database.ForumRepository
	defaultLimit int
	maxLimit     int
	sf           singleflight.Group
}

func NewService(db database.ForumRepository, opts Options) *Service {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultHistoryLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = MaxHistoryLimit
	}
	if opts.DefaultLimit > opts.MaxLimit {
		opts.DefaultLimit = opts.MaxLimit
	}

	return &Service{
		db:           db,
		defaultLimit: opts.DefaultLimit,
		maxLimit:     opts.MaxLimit,
	}
}

func (s *Service) DefaultLimit() int {
	return s.defaultLimit
}

func (s *Service) MaxLimit() int {
	return s.maxLimit
}

// History returns up to limit messages created strictly before before (or
// the latest messages when before is nil) in ascending creation order.
// Identical concurrent cursor queries share a single store round trip.
func (s *Service) History(ctx context.Context, limit int, before *time.Time) ([]types.ChatMessage, error) {
	limit = s.clampLimit(limit)

	// the latest page changes with every post; only pages behind a cursor
	// are fixed and safe to share
	if before == nil {
		return s.listHistory(ctx, limit, nil)
	}

	key := strconv.Itoa(limit) + "|" + before.UTC().Format(time.RFC3339Nano)

	// the shared query must not be cancelled by whichever caller started it
	queryCtx := context.WithoutCancel(ctx)
	res, err, _ := s.sf.Do(key, func() (interface{}, error) {
		return s.listHistory(queryCtx, limit, before)
	})
	if err != nil {
		return nil, err
	}

	messages, ok := res.([]types.ChatMessage)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", res)
	}

	return slices.Clone(messages), nil
}

func (s *Service) listHistory(ctx context.Context, limit int, before *time.Time) ([]types.ChatMessage, error) {
	rows, err := s.db.ListChatMessages(ctx, before, limit)
	if err != nil {
		return nil, types.NewStoreError("list chat messages", err)
	}

	messages := make([]types.ChatMessage, len(rows))
	// rows arrive newest first
	for i, row := range rows {
		messages[len(rows)-1-i] = toChatMessage(row)
	}

	return messages, nil
}

// Recent returns the latest page of chat history.
func (s *Service) Recent(ctx context.Context) ([]types.ChatMessage, error) {
	return s.History(ctx, s.defaultLimit, nil)
}

// Post validates and persists a chat message sent at at.
func (s *Service) Post(ctx context.Context, userId int, text string, at time.Time) (types.ChatMessage, error) {
	text, err := cleanText(text, maxMessageLength, "Message")
	if err != nil {
		return types.ChatMessage{}, err
	}

	row, err := s.db.CreateChatMessage(ctx, userId, text, at)
	if err != nil {
		return types.ChatMessage{}, types.NewStoreError("create chat message", err)
	}

	return toChatMessage(row), nil
}

// Comments lists comments newest first.
func (s *Service) Comments(ctx context.Context, limit int, before *time.Time) ([]types.Comment, error) {
	rows, err := s.db.ListComments(ctx, before, s.clampLimit(limit))
	if err != nil {
		return nil, types.NewStoreError("list comments", err)
	}

	return toComments(rows), nil
}

func (s *Service) PostComment(ctx context.Context, userId int, text string) (types.Comment, error) {
	text, err := cleanText(text, maxCommentLength, "Comment")
	if err != nil {
		return types.Comment{}, err
	}

	row, err := s.db.CreateComment(ctx, userId, text)
	if err != nil {
		return types.Comment{}, types.NewStoreError("create comment", err)
	}

	return toComment(row), nil
}

// RecentByUser lists a user's latest comments, newest first.
func (s *Service) RecentByUser(ctx context.Context, userId int) ([]types.Comment, error) {
	rows, err := s.db.ListCommentsByUser(ctx, userId, RecentCommentsLimit)
	if err != nil {
		return nil, types.NewStoreError("list user comments", err)
	}

	return toComments(rows), nil
}

func (s *Service) clampLimit(limit int) int {
	if limit <= 0 {
		return s.defaultLimit
	}
	if limit > s.maxLimit {
		return s.maxLimit
	}
	return limit
}

// ParseLimit reads a limit query value. Absent, non-numeric and
// non-positive values fall back to def; values above max are capped.
func ParseLimit(raw string, def, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// ParseBefore reads an RFC 3339 cursor. An empty value means no cursor.
func ParseBefore(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, types.NewValidationError("Invalid before timestamp, expected RFC 3339.")
	}

	t = t.UTC()
	return &t, nil
}

func cleanText(text string, max int, what string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", types.NewValidationError("%s cannot be empty.", what)
	}
	if utf8.RuneCountInString(text) > max {
		return "", types.NewValidationError("%s must be at most %d characters.", what, max)
	}
	return text, nil
}

func toChatMessage(row database.ChatMessage) types.ChatMessage {
	return types.ChatMessage{
		Id:          row.Id,
		UserId:      row.UserId,
		Username:    row.Username,
		DisplayName: row.DisplayName,
		NameColor:   row.NameColor,
		Message:     row.Message,
		CreatedAt:   row.CreatedAt,
	}
}

func toComment(row database.Comment) types.Comment {
	return types.Comment{
		Id:          row.Id,
		UserId:      row.UserId,
		Author:      row.Username,
		DisplayName: row.DisplayName,
		NameColor:   row.NameColor,
		Text:        row.Text,
		Timestamp:   row.CreatedAt,
	}
}

func toComments(rows []database.Comment) []types.Comment {
	comments := make([]types.Comment, 0, len(rows))
	for _, row := range rows {
		comments = append(comments, toComment(row))
	}
	return comments
}
