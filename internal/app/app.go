package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatroom-server/internal/auth"
	"github.com/vovakirdan/chatroom-server/internal/config"
	"github.com/vovakirdan/chatroom-server/internal/core"
	"github.com/vovakirdan/chatroom-server/internal/presence/redismirror"
	"github.com/vovakirdan/chatroom-server/internal/store"
	"github.com/vovakirdan/chatroom-server/internal/store/postgres"
	"github.com/vovakirdan/chatroom-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/chatroom-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	redis           *redis.Client
	mirror          *redismirror.Mirror
	log             *zerolog.Logger
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.DatabaseDSN)
	case config.DriverSQLite, "":
		return sqlite.New(cfg.DatabasePath)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
	}
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("driver", cfg.DatabaseDriver).Msg("database initialized")

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}

	opts := []core.Option{
		core.WithLogger(logger),
		core.WithHistoryLimit(cfg.HistoryLimit),
		core.WithMaxMessageLength(cfg.MaxMessageLength),
		core.WithIdleTimeout(cfg.IdleTimeout, cfg.SweepInterval),
	}

	if cfg.Redis.Enabled {
		client, err := redismirror.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.cleanup()
			return nil, fmt.Errorf("init redis: %w", err)
		}
		a.redis = client
		a.mirror = redismirror.New(client, redismirror.Options{
			OnlineTTL: cfg.Redis.PresenceTTL,
			Channel:   cfg.Redis.Channel,
		}, logger)
		opts = append(opts, core.WithMirror(a.mirror))
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("presence mirror enabled")
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	authService := auth.NewService(st, jwtConfig)

	a.hub = core.NewHub(st, opts...)
	a.server = transporthttp.NewServer(a.hub, authService, st, cfg, logger)

	return a, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		a.hub.Run(hubCtx)
		close(hubDone)
	}()

	if a.mirror != nil {
		go a.watchRemotePresence(hubCtx)
	}

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	var runErr error
	select {
	case runErr = <-serverErr:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		// Hijacked websocket connections are not tracked by Shutdown; the hub closes them.
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			runErr = err
		} else {
			runErr = <-serverErr
		}
	}

	stopHub()
	<-hubDone
	a.cleanup()
	return runErr
}

// watchRemotePresence logs status changes published by other instances.
func (a *App) watchRemotePresence(ctx context.Context) {
	updates, err := a.mirror.Subscribe(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("presence subscription failed")
		return
	}
	for u := range updates {
		a.log.Debug().Int64("user_id", u.UserID).Str("status", u.Status).Msg("presence update")
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
