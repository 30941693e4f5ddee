package server

import (
	"database/sql"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-forum/internal/log"
	"github.com/npezzotti/go-forum/internal/types"
)

// ServeWs upgrades the request and authenticates it with the session cookie
// sent on the handshake. Unauthenticated connections receive an error event
// and are closed with a policy violation.
func (cs *ChatServer) ServeWs(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(cs.origins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("error upgrading connection")
		return
	}

	id, err := cs.authenticate(r)
	if err != nil {
		if errors.Is(err, types.ErrUnauthenticated) {
			logger.Info().Err(err).Msg("rejecting unauthenticated connection")
			reject(conn, ErrAuthRequired(), websocket.ClosePolicyViolation, "authentication required")
		} else {
			logger.Error().Err(err).Msg("failed to authenticate connection")
			reject(conn, ErrInternalError(), websocket.CloseInternalServerErr, "internal error")
		}
		return
	}

	client := NewClient(id, conn, cs, cs.log)
	cs.RegisterClient(client)
	client.queueMessage(ConnectedEvent(id))

	go client.Write()
	go client.Read()
}

// authenticate resolves the handshake's session and checks that it still
// points at an existing user.
func (cs *ChatServer) authenticate(r *http.Request) (Identity, error) {
	_, sess, err := cs.sessions.Resolve(r)
	if err != nil {
		return Identity{}, err
	}

	user, err := cs.users.GetUserById(r.Context(), sess.UserId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Identity{}, types.ErrUnauthenticated
		}
		return Identity{}, types.NewStoreError("get user", err)
	}

	return Identity{
		UserId:    user.Id,
		Username:  sess.Username,
		LoginTime: sess.LoginTime,
	}, nil
}

func reject(conn *websocket.Conn, msg *ServerMessage, code int, reason string) {
	defer conn.Close()

	deadline := time.Now().Add(writeWait)
	if bytes, err := serializeMessage(msg); err == nil {
		conn.SetWriteDeadline(deadline)
		conn.WriteMessage(websocket.TextMessage, bytes)
	}

	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}
