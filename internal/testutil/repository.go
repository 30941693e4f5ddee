package testutil

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/npezzotti/go-forum/internal/database"
)

// FakeRepository is an in-memory database.ForumRepository that enforces the
// same unique constraints and ordering as the postgres schema.
type FakeRepository struct {
	mu       sync.Mutex
	users    []database.User
	messages []database.ChatMessage
	comments []database.Comment
	nextId   int64
}

func NewFakeRepository() *FakeRepository {
	return &FakeRepository{}
}

func (f *FakeRepository) Ping() error {
	return nil
}

func (f *FakeRepository) id() int64 {
	f.nextId++
	return f.nextId
}

func (f *FakeRepository) checkUnique(exceptId int, field, value string) error {
	for _, u := range f.users {
		if u.Id == exceptId {
			continue
		}

		var existing string
		switch field {
		case "username":
			existing = u.Username
		case "display_name":
			existing = u.DisplayName
		case "email":
			existing = u.Email
		}

		if existing == value {
			return &database.ErrDuplicate{Field: field}
		}
	}

	return nil
}

func (f *FakeRepository) CreateUser(_ context.Context, params database.CreateUserParams) (database.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for field, value := range map[string]string{
		"username":     params.Username,
		"display_name": params.DisplayName,
		"email":        params.Email,
	} {
		if err := f.checkUnique(0, field, value); err != nil {
			return database.User{}, err
		}
	}

	now := time.Now().UTC()
	u := database.User{
		Id:           int(f.id()),
		Username:     params.Username,
		DisplayName:  params.DisplayName,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		NameColor:    "#000000",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.users = append(f.users, u)

	return u, nil
}

func (f *FakeRepository) user(id int) (*database.User, error) {
	for i := range f.users {
		if f.users[i].Id == id {
			return &f.users[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *FakeRepository) GetUserById(_ context.Context, id int) (database.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, err := f.user(id)
	if err != nil {
		return database.User{}, err
	}
	return *u, nil
}

func (f *FakeRepository) GetUserByUsername(_ context.Context, username string) (database.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return database.User{}, sql.ErrNoRows
}

func (f *FakeRepository) update(userId int, fn func(u *database.User) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, err := f.user(userId)
	if err != nil {
		return err
	}

	if err := fn(u); err != nil {
		return err
	}

	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *FakeRepository) UpdatePasswordHash(_ context.Context, userId int, hash string) error {
	return f.update(userId, func(u *database.User) error {
		u.PasswordHash = hash
		return nil
	})
}

func (f *FakeRepository) UpdateEmail(_ context.Context, userId int, email string) error {
	return f.update(userId, func(u *database.User) error {
		if err := f.checkUnique(userId, "email", email); err != nil {
			return err
		}
		u.Email = email
		return nil
	})
}

func (f *FakeRepository) UpdateDisplayName(_ context.Context, userId int, displayName string) error {
	return f.update(userId, func(u *database.User) error {
		if err := f.checkUnique(userId, "display_name", displayName); err != nil {
			return err
		}
		u.DisplayName = displayName
		return nil
	})
}

func (f *FakeRepository) UpdateCustomization(_ context.Context, params database.UpdateCustomizationParams) error {
	return f.update(params.UserId, func(u *database.User) error {
		u.NameColor = params.NameColor
		u.Bio = params.Bio
		return nil
	})
}

func (f *FakeRepository) CreateChatMessage(_ context.Context, userId int, message string, createdAt time.Time) (database.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, err := f.user(userId)
	if err != nil {
		return database.ChatMessage{}, err
	}

	msg := database.ChatMessage{
		Id:          f.id(),
		UserId:      userId,
		Message:     message,
		CreatedAt:   createdAt.UTC(),
		Username:    u.Username,
		DisplayName: u.DisplayName,
		NameColor:   u.NameColor,
	}
	f.messages = append(f.messages, msg)

	return msg, nil
}

func (f *FakeRepository) ListChatMessages(_ context.Context, before *time.Time, limit int) ([]database.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []database.ChatMessage
	for _, m := range f.messages {
		if before != nil && !m.CreatedAt.Before(*before) {
			continue
		}
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Id > out[j].Id
	})

	if len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (f *FakeRepository) CreateComment(_ context.Context, userId int, text string) (database.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, err := f.user(userId)
	if err != nil {
		return database.Comment{}, err
	}

	c := database.Comment{
		Id:          f.id(),
		UserId:      userId,
		Text:        text,
		CreatedAt:   time.Now().UTC(),
		Username:    u.Username,
		DisplayName: u.DisplayName,
		NameColor:   u.NameColor,
	}
	f.comments = append(f.comments, c)

	return c, nil
}

func (f *FakeRepository) listComments(match func(c database.Comment) bool, limit int) []database.Comment {
	var out []database.Comment
	for _, c := range f.comments {
		if match(c) {
			out = append(out, c)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Id > out[j].Id
	})

	if len(out) > limit {
		out = out[:limit]
	}

	return out
}

func (f *FakeRepository) ListComments(_ context.Context, before *time.Time, limit int) ([]database.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.listComments(func(c database.Comment) bool {
		return before == nil || c.CreatedAt.Before(*before)
	}, limit), nil
}

func (f *FakeRepository) ListCommentsByUser(_ context.Context, userId, limit int) ([]database.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.listComments(func(c database.Comment) bool {
		return c.UserId == userId
	}, limit), nil
}

var _ database.ForumRepository = (*FakeRepository)(nil)
