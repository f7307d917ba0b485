// Package main runs a demo OAuth 2.0 client signing users in against a
// Keycloak realm with the authorization code and device grants
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"

	"github.com/wrale/oauth2-flows/internal/endpoint"
	"github.com/wrale/oauth2-flows/internal/session"
)

// Version is set by the build process
var Version = "dev"

func main() {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		fatal(slog.Default(), "loading configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal(slog.Default(), "invalid configuration", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	store, closeStore, err := newStateStore(cfg)
	if err != nil {
		fatal(logger, "creating state store", err)
	}
	defer closeStore()

	sessions, err := session.NewManager(store, []byte(cfg.StateSecret), cfg.StateTTL)
	if err != nil {
		fatal(logger, "creating session manager", err)
	}

	httpClient := endpoint.DefaultHTTPClient()
	httpClient.Timeout = cfg.HTTPClientTimeout
	client := endpoint.NewHTTPClient(httpClient)

	srv, err := newServer(cfg, client, sessions, logger)
	if err != nil {
		fatal(logger, "creating server", err)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port, "version", Version)
		serverErrors <- httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		fatal(logger, "starting server", err)

	case <-shutdown:
		logger.Info("starting shutdown")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("shutting down server", "error", err)
			if err := httpServer.Close(); err != nil {
				logger.Error("closing server", "error", err)
			}
		}
		srv.close()
	}
}

// newStateStore returns the Redis store when REDIS_URL is set and the
// in-memory store otherwise
func newStateStore(cfg Config) (session.Store, func(), error) {
	if cfg.RedisURL == "" {
		return session.NewMemoryStore(), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	closeFn := func() {
		if err := client.Close(); err != nil {
			slog.Error("closing Redis connection", "error", err)
		}
	}
	return session.NewRedisStore(client), closeFn, nil
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
