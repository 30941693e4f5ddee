package server

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-forum/internal/log"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingInterval     = (pongWait * 9) / 10
	maxMessageSize   = 4096
	maxMessageLength = 1000
	sendBufferSize   = 256
)

// Identity is the user a connection was authenticated as. It is captured
// once during the handshake and never re-read from the session store, so a
// later logout does not change what an open connection reports.
type Identity struct {
	UserId    int
	Username  string
	LoginTime *time.Time
}

type Client struct {
	conn       *websocket.Conn
	chatServer *ChatServer
	log        zerolog.Logger
	identity   Identity
	send       chan *ServerMessage
	limiter    *rate.Limiter
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(id Identity, conn *websocket.Conn, cs *ChatServer, l zerolog.Logger) *Client {
	c := &Client{
		conn:       conn,
		chatServer: cs,
		identity:   id,
		send:       make(chan *ServerMessage, sendBufferSize),
		stop:       make(chan struct{}),
		log: l.With().
			Int(log.FieldUserID, id.UserId).
			Str(log.FieldUsername, id.Username).
			Logger(),
	}

	if cs != nil && cs.rateLimit > 0 {
		c.limiter = rate.NewLimiter(cs.rateLimit, cs.rateBurst)
	}

	return c
}

func (c *Client) Identity() Identity {
	return c.identity
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Debug().Msg("write exiting")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Error().Err(err).Msg("failed to serialize message")
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait),
			)
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Info().Msg("user disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("ws read")
			}
			break
		}

		c.handle(raw)
	}
}

func (c *Client) handle(raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.log.Debug().Err(err).Msg("error parsing message")
		c.queueMessage(ErrInvalidMessage())
		return
	}

	switch msg.Event {
	case EventGetUserInfo:
		c.queueMessage(UserInfoEvent(c.identity))
	case EventSendMessage:
		c.handleSendMessage(msg.Data)
	default:
		c.queueMessage(ErrUnknownEvent(msg.Event))
	}
}

func (c *Client) handleSendMessage(data json.RawMessage) {
	var payload SendMessage
	if len(data) == 0 || json.Unmarshal(data, &payload) != nil {
		c.queueMessage(ErrInvalidMessage())
		return
	}

	text := strings.TrimSpace(payload.Message)
	if text == "" {
		c.queueMessage(ErrorEvent("Message cannot be empty."))
		return
	}
	if utf8.RuneCountInString(text) > maxMessageLength {
		c.queueMessage(ErrorEvent("Message is too long."))
		return
	}

	if c.limiter != nil && !c.limiter.Allow() {
		c.queueMessage(ErrRateLimited())
		return
	}

	if !c.chatServer.Publish(c, text) {
		c.log.Warn().Msg("publish channel full")
		c.queueMessage(ErrServiceUnavailable())
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Warn().Msg("failed to send message to client, channel is full")
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Warn().Err(err).Msg("write message")
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.chatServer.DeRegisterClient(c)
	c.stopClient()
}
