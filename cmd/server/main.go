package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/npezzotti/go-forum/internal/api"
	"github.com/npezzotti/go-forum/internal/auth"
	"github.com/npezzotti/go-forum/internal/chat"
	"github.com/npezzotti/go-forum/internal/config"
	"github.com/npezzotti/go-forum/internal/database"
	"github.com/npezzotti/go-forum/internal/log"
	"github.com/npezzotti/go-forum/internal/server"
	"github.com/npezzotti/go-forum/internal/session"
	"github.com/npezzotti/go-forum/internal/stats"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// expirer is implemented by session stores that do not expire entries on
// their own.
type expirer interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.L().Fatal().Err(err).Msg("config")
	}

	logger := log.Init(cfg.Log)

	if cfg.Database.Migrate {
		if err := database.Migrate(cfg.Database.DSN); err != nil {
			logger.Fatal().Err(err).Msg("db migrate")
		}
	}

	conn, err := database.Open(cfg.Database.DSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("db open")
	}
	repo := database.NewPgForumRepository(conn)
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error().Err(err).Msg("db close")
		}
	}()

	store, err := newSessionStore(context.Background(), cfg, conn)
	if err != nil {
		logger.Fatal().Err(err).Msg("session store")
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	sessions := session.NewManager(store, session.Options{
		CookieName:   cfg.Session.CookieName,
		TTL:          cfg.Session.TTL,
		SecureCookie: cfg.Session.SecureCookie,
		SigningKey:   cfg.SigningKey,
	})
	authSvc := auth.NewService(repo, sessions)
	chatSvc := chat.NewService(repo, chat.Options{
		DefaultLimit: cfg.Chat.HistoryDefaultLimit,
		MaxLimit:     cfg.Chat.HistoryMaxLimit,
	})

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(logger.With().Str("component", "stats").Logger(), mux)

	opts := server.Options{
		Sessions:       sessions,
		Users:          repo,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      rate.Limit(cfg.Chat.RateLimitPerSecond),
		RateBurst:      cfg.Chat.RateLimitBurst,
	}
	if cfg.Chat.PersistRealtime {
		opts.Sink = chatSvc
	}

	chatServer, err := server.NewChatServer(logger.With().Str("component", "chat").Logger(), statsUpdater, opts)
	if err != nil {
		logger.Fatal().Err(err).Msg("new chat server")
	}

	srv := api.NewForumApp(mux, logger, cfg, api.Services{
		DB:       repo,
		Sessions: sessions,
		Auth:     authSvc,
		Chat:     chatSvc,
		Realtime: chatServer,
		Stats:    statsUpdater,
	})

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go chatServer.Run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if e, ok := store.(expirer); ok && cfg.Session.CleanupInterval > 0 {
		go cleanupSessions(ctx, logger, e, cfg.Session.CleanupInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info().Str("signal", sig.String()).Msg("received signal")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server")
		}
	}
	cancel()

	shutDownCtx, shutDownCancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer shutDownCancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown")
	}

	logger.Info().Msg("shutting down chat server")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Error().Err(err).Msg("chat server shutdown")
	}

	logger.Info().Msg("shutdown complete")
}

func newSessionStore(ctx context.Context, cfg *config.Config, conn *sql.DB) (session.Store, error) {
	switch cfg.Session.Backend {
	case "redis":
		rs, err := session.NewRedisStore(ctx, session.RedisOptions{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		return rs, nil
	case "memory":
		return session.NewMemoryStore(), nil
	default:
		return session.NewPgStore(conn), nil
	}
}

func cleanupSessions(ctx context.Context, logger zerolog.Logger, store expirer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.DeleteExpired(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("delete expired sessions")
				continue
			}
			if n > 0 {
				logger.Debug().Int64("deleted", n).Msg("expired sessions removed")
			}
		}
	}
}
