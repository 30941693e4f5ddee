package database

import "time"

type User struct {
	Id           int
	Username     string
	DisplayName  string
	Email        string
	PasswordHash string
	NameColor    string
	Bio          string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ChatMessage is a chat_messages row joined with the author's display fields.
type ChatMessage struct {
	Id          int64
	UserId      int
	Message     string
	CreatedAt   time.Time
	Username    string
	DisplayName string
	NameColor   string
}

// Comment is a comments row joined with the author's display fields.
type Comment struct {
	Id          int64
	UserId      int
	Text        string
	CreatedAt   time.Time
	Username    string
	DisplayName string
	NameColor   string
}

type CreateUserParams struct {
	Username     string
	DisplayName  string
	Email        string
	PasswordHash string
}

type UpdateCustomizationParams struct {
	UserId    int
	NameColor string
	Bio       string
}
