// Package app assembles the server from its configuration and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"gamevault/internal/server/auth"
	"gamevault/internal/server/config"
	"gamevault/internal/server/httpapi"
	"gamevault/internal/server/repository/sqlstore"
	"gamevault/internal/server/service"
	"gamevault/internal/shared/passhash"
)

type App struct {
	version   string
	buildDate string
	cfg       config.Config
	logger    *log.Logger
	server    *http.Server
	store     *sqlstore.Store
}

// OpenStore connects to the configured database and applies migrations.
func OpenStore(ctx context.Context, cfg config.Config, logger *log.Logger) (*sqlstore.Store, error) {
	dialect, err := sqlstore.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	store, err := sqlstore.Open(ctx, dialect, cfg.Database.DSN, sqlstore.Options{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, err
	}
	applied, err := store.Migrate(ctx)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	logger.Info("database ready", "driver", dialect, "migrations_applied", applied)
	return store, nil
}

func New(ctx context.Context, cfg config.Config, version, buildDate string, logger *log.Logger) (*App, error) {
	hasher, err := passhash.New(cfg.Auth.PasswordHash)
	if err != nil {
		return nil, err
	}
	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	sessions := auth.NewSessions([]byte(cfg.Auth.JWTSecret))
	services := service.NewServices(store, sessions, hasher, cfg.Games.MaxPageSize)
	router := httpapi.NewRouter(services, store, logger, httpapi.Options{
		MaxRequestBytes: cfg.Server.MaxRequestBytes,
		AuthRateLimit:   cfg.Auth.RateLimit,
		AuthRateBurst:   cfg.Auth.RateBurst,

		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
	})
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return &App{
		version:   version,
		buildDate: buildDate,
		cfg:       cfg,
		logger:    logger,
		server:    server,
		store:     store,
	}, nil
}

func (a *App) Handler() http.Handler { return a.server.Handler }

// Run serves until ctx is cancelled or the process receives SIGINT or
// SIGTERM, then shuts down gracefully and closes the store.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer func() { _ = a.store.Close() }()

	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.server.Addr, err)
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	a.logger.Info("gamevault server started",
		"version", a.version,
		"build_date", a.buildDate,
		"addr", ln.Addr().String(),
		"env", a.cfg.Env)

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	a.logger.Info("shutting down", "reason", context.Cause(ctx))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return a.server.Shutdown(shutdownCtx)
}
