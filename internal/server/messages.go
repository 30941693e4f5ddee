package server

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event names on the wire.
const (
	EventConnected   = "connected"
	EventUserInfo    = "userInfo"
	EventMessage     = "message"
	EventError       = "error"
	EventGetUserInfo = "getUserInfo"
	EventSendMessage = "sendMessage"
)

// isoTimestamp matches the millisecond ISO 8601 form browsers produce.
const isoTimestamp = "2006-01-02T15:04:05.000Z07:00"

// ClientMessage is an inbound event. Data is decoded according to Event.
type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type SendMessage struct {
	Message string `json:"message"`
}

// ServerMessage is an outbound event.
type ServerMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type Connected struct {
	Message   string     `json:"message"`
	UserId    int        `json:"userId"`
	Username  string     `json:"username"`
	LoginTime *time.Time `json:"loginTime"`
}

type UserInfo struct {
	Username  string     `json:"username"`
	UserId    int        `json:"userId"`
	LoginTime *time.Time `json:"loginTime"`
}

type ChatMessage struct {
	Username  string `json:"username"`
	UserId    int    `json:"userId"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func ConnectedEvent(id Identity) *ServerMessage {
	return &ServerMessage{
		Event: EventConnected,
		Data: Connected{
			Message:   fmt.Sprintf("Welcome %s!", id.Username),
			UserId:    id.UserId,
			Username:  id.Username,
			LoginTime: id.LoginTime,
		},
	}
}

func UserInfoEvent(id Identity) *ServerMessage {
	return &ServerMessage{
		Event: EventUserInfo,
		Data: UserInfo{
			Username:  id.Username,
			UserId:    id.UserId,
			LoginTime: id.LoginTime,
		},
	}
}

func MessageEvent(id Identity, text string, at time.Time) *ServerMessage {
	return &ServerMessage{
		Event: EventMessage,
		Data: ChatMessage{
			Username:  id.Username,
			UserId:    id.UserId,
			Message:   text,
			Timestamp: at.UTC().Format(isoTimestamp),
		},
	}
}

func ErrorEvent(message string) *ServerMessage {
	return &ServerMessage{
		Event: EventError,
		Data:  ErrorPayload{Message: message},
	}
}

func ErrAuthRequired() *ServerMessage {
	return ErrorEvent("Please log in to use chat features")
}

func ErrInvalidMessage() *ServerMessage {
	return ErrorEvent("invalid message format")
}

func ErrUnknownEvent(event string) *ServerMessage {
	return ErrorEvent(fmt.Sprintf("unknown event %q", event))
}

func ErrRateLimited() *ServerMessage {
	return ErrorEvent("too many messages, slow down")
}

func ErrServiceUnavailable() *ServerMessage {
	return ErrorEvent("service unavailable")
}

func ErrInternalError() *ServerMessage {
	return ErrorEvent("internal server error")
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// Now returns the current UTC time at millisecond precision.
func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
