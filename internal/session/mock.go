package session

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, token string) (*Session, error) {
	args := m.Called(token)
	if sess, ok := args.Get(0).(*Session); ok {
		return sess, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockStore) Set(ctx context.Context, token string, sess *Session) error {
	args := m.Called(token, sess)
	return args.Error(0)
}
func (m *MockStore) Destroy(ctx context.Context, token string) error {
	args := m.Called(token)
	return args.Error(0)
}
