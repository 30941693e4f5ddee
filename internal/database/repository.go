package database

import (
	"context"
	"time"
)

// ForumRepository is the credential and message store. List methods return
// rows newest first.
type ForumRepository interface {
	Ping() error
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserById(ctx context.Context, id int) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	UpdatePasswordHash(ctx context.Context, userId int, hash string) error
	UpdateEmail(ctx context.Context, userId int, email string) error
	UpdateDisplayName(ctx context.Context, userId int, displayName string) error
	UpdateCustomization(ctx context.Context, params UpdateCustomizationParams) error
	CreateChatMessage(ctx context.Context, userId int, message string, createdAt time.Time) (ChatMessage, error)
	ListChatMessages(ctx context.Context, before *time.Time, limit int) ([]ChatMessage, error)
	CreateComment(ctx context.Context, userId int, text string) (Comment, error)
	ListComments(ctx context.Context, before *time.Time, limit int) ([]Comment, error)
	ListCommentsByUser(ctx context.Context, userId, limit int) ([]Comment, error)
}
