package database

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockForumRepository struct {
	mock.Mock
}

func (m *MockForumRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockForumRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockForumRepository) GetUserById(ctx context.Context, id int) (User, error) {
	args := m.Called(id)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockForumRepository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	args := m.Called(username)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockForumRepository) UpdatePasswordHash(ctx context.Context, userId int, hash string) error {
	args := m.Called(userId, hash)
	return args.Error(0)
}
func (m *MockForumRepository) UpdateEmail(ctx context.Context, userId int, email string) error {
	args := m.Called(userId, email)
	return args.Error(0)
}
func (m *MockForumRepository) UpdateDisplayName(ctx context.Context, userId int, displayName string) error {
	args := m.Called(userId, displayName)
	return args.Error(0)
}
func (m *MockForumRepository) UpdateCustomization(ctx context.Context, params UpdateCustomizationParams) error {
	args := m.Called(params)
	return args.Error(0)
}
func (m *MockForumRepository) CreateChatMessage(ctx context.Context, userId int, message string, createdAt time.Time) (ChatMessage, error) {
	args := m.Called(userId, message, createdAt)
	return args.Get(0).(ChatMessage), args.Error(1)
}
func (m *MockForumRepository) ListChatMessages(ctx context.Context, before *time.Time, limit int) ([]ChatMessage, error) {
	args := m.Called(before, limit)
	if msgs, ok := args.Get(0).([]ChatMessage); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockForumRepository) CreateComment(ctx context.Context, userId int, text string) (Comment, error) {
	args := m.Called(userId, text)
	return args.Get(0).(Comment), args.Error(1)
}
func (m *MockForumRepository) ListComments(ctx context.Context, before *time.Time, limit int) ([]Comment, error) {
	args := m.Called(before, limit)
	if comments, ok := args.Get(0).([]Comment); ok {
		return comments, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockForumRepository) ListCommentsByUser(ctx context.Context, userId, limit int) ([]Comment, error) {
	args := m.Called(userId, limit)
	if comments, ok := args.Get(0).([]Comment); ok {
		return comments, args.Error(1)
	}
	return nil, args.Error(1)
}
