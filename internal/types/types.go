package types

import (
	"time"
)

type User struct {
	Id          int       `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
	NameColor   string    `json:"name_color,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// ChatMessage is a persisted chat message joined with its author's display fields.
type ChatMessage struct {
	Id          int64     `json:"id"`
	UserId      int       `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	NameColor   string    `json:"name_color"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

type Comment struct {
	Id          int64     `json:"id"`
	UserId      int       `json:"user_id"`
	Author      string    `json:"author"`
	DisplayName string    `json:"display_name"`
	NameColor   string    `json:"name_color"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

// Visitor is the session view handed to the home page.
type Visitor struct {
	Name       string     `json:"name"`
	IsLoggedIn bool       `json:"is_logged_in"`
	LoginTime  *time.Time `json:"login_time"`
	VisitCount int        `json:"visit_count"`
}
