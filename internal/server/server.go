// Package server is the realtime gateway: it authenticates websocket
// connections against the shared session store and fans chat messages out
// to every connected client.
package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/npezzotti/go-forum/internal/database"
	"github.com/npezzotti/go-forum/internal/log"
	"github.com/npezzotti/go-forum/internal/session"
	"github.com/npezzotti/go-forum/internal/stats"
	"github.com/npezzotti/go-forum/internal/types"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	metricActiveClients = "NumActiveClients"
	metricMessages      = "NumMessages"

	persistTimeout = 5 * time.Second
)

// MessageSink persists chat messages published through the gateway.
type MessageSink interface {
	Post(ctx context.Context, userId int, text string, at time.Time) (types.ChatMessage, error)
}

// UserFinder loads the user a session points at.
type UserFinder interface {
	GetUserById(ctx context.Context, id int) (database.User, error)
}

type Options struct {
	Sessions *session.Manager
	Users    UserFinder
	// AllowedOrigins limits browser origins for the handshake. Requests
	// without an Origin header are always accepted.
	AllowedOrigins []string
	// Sink is optional. Without one messages are broadcast only.
	Sink MessageSink
	// RateLimit is the sustained sendMessage rate per connection. Zero disables limiting.
	RateLimit rate.Limit
	RateBurst int
}

type publishRequest struct {
	client *Client
	text   string
}

type stopRequest struct {
	done chan struct{}
}

type ChatServer struct {
	log         zerolog.Logger
	sessions    *session.Manager
	users       UserFinder
	origins     []string
	sink        MessageSink
	stats       stats.StatsProvider
	clients     map[*Client]struct{}
	userMap     map[int]map[*Client]struct{}
	clientsLock sync.RWMutex
	publishChan chan *publishRequest
	stop        chan stopRequest
	rateLimit   rate.Limit
	rateBurst   int
}

func NewChatServer(logger zerolog.Logger, su stats.StatsProvider, opts Options) (*ChatServer, error) {
	if su == nil {
		return nil, fmt.Errorf("stats provider cannot be nil")
	}

	if opts.RateLimit > 0 && opts.RateBurst <= 0 {
		opts.RateBurst = 1
	}

	cs := &ChatServer{
		log:         logger,
		sessions:    opts.Sessions,
		users:       opts.Users,
		origins:     opts.AllowedOrigins,
		sink:        opts.Sink,
		stats:       su,
		clients:     make(map[*Client]struct{}),
		userMap:     make(map[int]map[*Client]struct{}),
		publishChan: make(chan *publishRequest, 256),
		stop:        make(chan stopRequest),
		rateLimit:   opts.RateLimit,
		rateBurst:   opts.RateBurst,
	}

	cs.stats.RegisterMetric(metricActiveClients)
	cs.stats.RegisterMetric(metricMessages)

	return cs, nil
}

// Run processes published messages in order until Shutdown is called.
func (cs *ChatServer) Run() {
	for {
		select {
		case req := <-cs.publishChan:
			cs.handlePublish(req)
		case req := <-cs.stop:
			cs.log.Info().Msg("stopping clients")
			cs.stopAllClients()
			close(req.done)
			return
		}
	}
}

// Shutdown stops the run loop and disconnects every client.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Info().Msg("received shutdown signal")

	req := stopRequest{done: make(chan struct{})}
	select {
	case cs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish queues text from c for broadcast. It reports false when the
// queue is full.
func (cs *ChatServer) Publish(c *Client, text string) bool {
	select {
	case cs.publishChan <- &publishRequest{client: c, text: text}:
		return true
	default:
		return false
	}
}

// handlePublish persists a message when a sink is configured and then
// broadcasts it to every client, the sender included. A failed write is
// logged and the broadcast still happens.
func (cs *ChatServer) handlePublish(req *publishRequest) {
	id := req.client.identity
	at := Now()

	if cs.sink != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		_, err := cs.sink.Post(ctx, id.UserId, req.text, at)
		cancel()
		if err != nil {
			cs.log.Error().Err(err).Int(log.FieldUserID, id.UserId).Msg("failed to persist chat message")
		}
	}

	cs.stats.Incr(metricMessages)
	cs.handleBroadcast(MessageEvent(id, req.text, at))
}

func (cs *ChatServer) handleBroadcast(msg *ServerMessage) {
	for _, c := range cs.snapshot() {
		c.queueMessage(msg)
	}
}

// snapshot returns the clients bound at the time of the call.
func (cs *ChatServer) snapshot() []*Client {
	cs.clientsLock.RLock()
	defer cs.clientsLock.RUnlock()

	clients := make([]*Client, 0, len(cs.clients))
	for c := range cs.clients {
		clients = append(clients, c)
	}

	return clients
}

func (cs *ChatServer) RegisterClient(c *Client) {
	cs.addClient(c)
	cs.log.Info().
		Int(log.FieldUserID, c.identity.UserId).
		Str(log.FieldUsername, c.identity.Username).
		Int("connections", len(cs.getClients(c.identity.UserId))).
		Msg("user connected")
}

func (cs *ChatServer) DeRegisterClient(c *Client) {
	cs.removeClient(c)
}

func (cs *ChatServer) addClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	cs.clients[c] = struct{}{}
	if _, ok := cs.userMap[c.identity.UserId]; !ok {
		cs.userMap[c.identity.UserId] = make(map[*Client]struct{})
	}
	cs.userMap[c.identity.UserId][c] = struct{}{}

	cs.stats.Incr(metricActiveClients)
}

func (cs *ChatServer) removeClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	if _, ok := cs.clients[c]; !ok {
		return
	}

	delete(cs.clients, c)
	if userClients, ok := cs.userMap[c.identity.UserId]; ok {
		delete(userClients, c)
		if len(userClients) == 0 {
			delete(cs.userMap, c.identity.UserId)
		}
	}

	cs.stats.Decr(metricActiveClients)
}

// getClients returns the open connections of a user.
func (cs *ChatServer) getClients(userId int) []*Client {
	cs.clientsLock.RLock()
	defer cs.clientsLock.RUnlock()

	var clients []*Client
	for c := range cs.userMap[userId] {
		clients = append(clients, c)
	}

	return clients
}

// NumClients reports the number of bound connections.
func (cs *ChatServer) NumClients() int {
	cs.clientsLock.RLock()
	defer cs.clientsLock.RUnlock()
	return len(cs.clients)
}

func (cs *ChatServer) stopAllClients() {
	for _, c := range cs.snapshot() {
		c.stopClient()
	}
}
