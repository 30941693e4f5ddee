package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-forum/internal/auth"
	"github.com/npezzotti/go-forum/internal/chat"
	"github.com/npezzotti/go-forum/internal/config"
	"github.com/npezzotti/go-forum/internal/database"
	"github.com/npezzotti/go-forum/internal/log"
	"github.com/npezzotti/go-forum/internal/server"
	"github.com/npezzotti/go-forum/internal/session"
	"github.com/npezzotti/go-forum/internal/stats"
	"github.com/rs/zerolog"
)

const metricLogins = "NumLogins"

// Services are the collaborators the HTTP layer delegates to.
type Services struct {
	DB       database.ForumRepository
	Sessions *session.Manager
	Auth     *auth.Service
	Chat     *chat.Service
	Realtime *server.ChatServer
	Stats    stats.StatsProvider
}

type ForumApp struct {
	log      zerolog.Logger
	db       database.ForumRepository
	mux      *http.Server
	sessions *session.Manager
	auth     *auth.Service
	chat     *chat.Service
	cs       *server.ChatServer
	stats    stats.StatsProvider
}

func NewForumApp(mux *http.ServeMux, logger zerolog.Logger, cfg *config.Config, svc Services) *ForumApp {
	s := &ForumApp{
		log:      logger,
		db:       svc.DB,
		sessions: svc.Sessions,
		auth:     svc.Auth,
		chat:     svc.Chat,
		cs:       svc.Realtime,
		stats:    svc.Stats,
	}

	if s.stats != nil {
		s.stats.RegisterMetric(metricLogins)
	}

	mux.HandleFunc("POST /api/auth/register", s.register)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("POST /api/auth/logout", s.logout)
	mux.HandleFunc("GET /api/session", s.session)
	mux.Handle("GET /api/profile", s.authMiddleware(s.profile))
	mux.Handle("POST /api/profile/password", s.authMiddleware(s.changePassword))
	mux.Handle("POST /api/profile/email", s.authMiddleware(s.changeEmail))
	mux.Handle("POST /api/profile/display-name", s.authMiddleware(s.changeDisplayName))
	mux.Handle("POST /api/profile/customization", s.authMiddleware(s.updateCustomization))
	mux.HandleFunc("GET /api/comments", s.listComments)
	mux.Handle("POST /api/comments", s.authMiddleware(s.createComment))
	mux.Handle("GET /chat/history", s.authMiddleware(s.chatHistory))
	mux.HandleFunc("GET /chat", s.chatPage)
	// the handshake resolves the session itself so it can report failures
	// over the socket
	mux.HandleFunc("GET /chat/ws", s.serveWs)
	mux.HandleFunc("GET /healthz", s.healthCheck)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.Server.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)
	h = log.HTTPMiddleware(logger)(h)

	s.mux = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

// Handler returns the fully wrapped handler served by Start.
func (s *ForumApp) Handler() http.Handler {
	return s.mux.Handler
}

func (s *ForumApp) Start() error {
	s.log.Info().Str("addr", s.mux.Addr).Msg("starting server")
	return s.mux.ListenAndServe()
}

func (s *ForumApp) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
