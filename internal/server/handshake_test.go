package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-forum/internal/auth"
	"github.com/npezzotti/go-forum/internal/chat"
	"github.com/npezzotti/go-forum/internal/session"
	"github.com/npezzotti/go-forum/internal/stats"
	"github.com/npezzotti/go-forum/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gateway struct {
	srv      *httptest.Server
	cs       *ChatServer
	auth     *auth.Service
	chat     *chat.Service
	sessions *session.Manager
}

func newGateway(t *testing.T) *gateway {
	t.Helper()

	repo := testutil.NewFakeRepository()
	sessions := session.NewManager(session.NewMemoryStore(), session.Options{SigningKey: []byte("secret")})
	authSvc := auth.NewService(repo, sessions)
	chatSvc := chat.NewService(repo, chat.Options{})

	cs, err := NewChatServer(testutil.TestLogger(t), stats.NewPermissiveMock(), Options{
		Sessions: sessions,
		Users:    repo,
		Sink:     chatSvc,
	})
	require.NoError(t, err)
	go cs.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /chat/ws", cs.ServeWs)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		cs.Shutdown(ctx)
		srv.Close()
	})

	return &gateway{srv: srv, cs: cs, auth: authSvc, chat: chatSvc, sessions: sessions}
}

func (g *gateway) login(t *testing.T, username, displayName string) *http.Cookie {
	t.Helper()
	ctx := context.Background()

	_, err := g.auth.Register(ctx, auth.RegisterParams{
		Username:        username,
		DisplayName:     displayName,
		Email:           strings.ToLower(username) + "@tombstone.com",
		Password:        "Holliday123!",
		ConfirmPassword: "Holliday123!",
	})
	require.NoError(t, err)

	res, err := g.auth.Login(ctx, username, "Holliday123!")
	require.NoError(t, err)

	c, err := g.sessions.Cookie(res.Token)
	require.NoError(t, err)
	return c
}

func (g *gateway) dial(t *testing.T, c *http.Cookie) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	if c != nil {
		header.Set("Cookie", c.Name+"="+c.Value)
	}

	url := "ws" + strings.TrimPrefix(g.srv.URL, "http") + "/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type envelope struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

func readEvent(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var env envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestServeWs_broadcastsToEveryClient(t *testing.T) {
	g := newGateway(t)
	docCookie := g.login(t, "Doc", "Doc Holliday")
	wyattCookie := g.login(t, "Wyatt", "Wyatt Earp")

	doc := g.dial(t, docCookie)
	wyatt := g.dial(t, wyattCookie)

	connected := readEvent(t, doc)
	assert.Equal(t, EventConnected, connected.Event)
	assert.Equal(t, "Welcome Doc!", connected.Data["message"])
	assert.Equal(t, "Doc", connected.Data["username"])
	assert.NotNil(t, connected.Data["loginTime"])
	assert.Equal(t, EventConnected, readEvent(t, wyatt).Event)

	require.NoError(t, doc.WriteJSON(map[string]any{"event": "getUserInfo"}))
	info := readEvent(t, doc)
	assert.Equal(t, EventUserInfo, info.Event)
	assert.Equal(t, "Doc", info.Data["username"])

	require.NoError(t, doc.WriteJSON(map[string]any{
		"event": "sendMessage",
		"data":  map[string]any{"message": "Howdy"},
	}))

	for name, conn := range map[string]*websocket.Conn{"sender": doc, "other": wyatt} {
		msg := readEvent(t, conn)
		assert.Equal(t, EventMessage, msg.Event, "expected %s to receive the message", name)
		assert.Equal(t, "Doc", msg.Data["username"])
		assert.Equal(t, "Howdy", msg.Data["message"])

		ts, ok := msg.Data["timestamp"].(string)
		require.True(t, ok)
		_, err := time.Parse(time.RFC3339, ts)
		assert.NoError(t, err, "expected ISO 8601 timestamp, got %q", ts)
	}

	history, err := g.chat.History(context.Background(), 10, nil)
	require.NoError(t, err)
	require.Len(t, history, 1, "expected realtime message to be persisted")
	assert.Equal(t, "Howdy", history[0].Message)
}

func TestServeWs_rejectsUnauthenticated(t *testing.T) {
	g := newGateway(t)

	expired := g.login(t, "Doc", "Doc Holliday")
	_, sess, err := g.sessions.Resolve(testutil.NewRequestWithCookie(expired))
	require.NoError(t, err)
	require.NoError(t, g.auth.Logout(context.Background(), sess.Id))

	tcases := []struct {
		name   string
		cookie *http.Cookie
	}{
		{name: "no cookie", cookie: nil},
		{name: "forged cookie", cookie: &http.Cookie{Name: session.DefaultCookieName, Value: "forged"}},
		{name: "logged out session", cookie: expired},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			conn := g.dial(t, tc.cookie)

			env := readEvent(t, conn)
			assert.Equal(t, EventError, env.Event)
			assert.NotEmpty(t, env.Data["message"])

			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, _, err := conn.ReadMessage()
			var closeErr *websocket.CloseError
			require.ErrorAs(t, err, &closeErr)
			assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
		})
	}

	assert.Equal(t, 0, g.cs.NumClients(), "expected no client to be bound")
}

func TestServeWs_identityIsASnapshot(t *testing.T) {
	g := newGateway(t)
	cookie := g.login(t, "Doc", "Doc Holliday")
	conn := g.dial(t, cookie)
	require.Equal(t, EventConnected, readEvent(t, conn).Event)

	_, sess, err := g.sessions.Resolve(testutil.NewRequestWithCookie(cookie))
	require.NoError(t, err)
	require.NoError(t, g.auth.Logout(context.Background(), sess.Id))

	require.NoError(t, conn.WriteJSON(map[string]any{"event": "getUserInfo"}))
	info := readEvent(t, conn)
	assert.Equal(t, EventUserInfo, info.Event)
	assert.Equal(t, "Doc", info.Data["username"], "expected bound identity to survive logout")
}
