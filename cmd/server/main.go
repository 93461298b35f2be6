// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/quizlobby/internal/auth"
	"github.com/jason-s-yu/quizlobby/internal/broadcast"
	"github.com/jason-s-yu/quizlobby/internal/cache"
	"github.com/jason-s-yu/quizlobby/internal/config"
	"github.com/jason-s-yu/quizlobby/internal/database"
	"github.com/jason-s-yu/quizlobby/internal/handlers"
	"github.com/jason-s-yu/quizlobby/internal/invite"
	"github.com/jason-s-yu/quizlobby/internal/lobby"
	"github.com/jason-s-yu/quizlobby/internal/race"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := cfg.NewLogger()

	keys, err := loadKeys(cfg, logger)
	if err != nil {
		return err
	}

	// --- Postgres ---
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		return err
	}
	store := database.NewStore(pool)
	logger.Info("connected to postgres")

	checks := map[string]handlers.Checker{
		"postgres": handlers.CheckerFunc(store.Ping),
	}

	// --- Redis (optional) ---
	var bus broadcast.Bus
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		bus = cache.NewRedisBus(rdb, cfg.EventsChannel)
		checks["redis"] = handlers.CheckerFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		logger.Infof("lobby events bridged through Redis channel %s", cfg.EventsChannel)
	}

	// --- Services ---
	bc := broadcast.New(logger, bus)
	defer bc.Close()

	invites := invite.NewService(store, store, logger)
	lobbies := lobby.NewService(store, store, store, invites, bc, logger)
	resolver := race.NewResolver(store, store, store, bc, logger)

	api := &handlers.APIServer{
		Lobbies:     lobbies,
		Invites:     invites,
		Race:        resolver,
		Broadcaster: bc,
		Verifier:    keys,
		Checks:      checks,
		Logger:      logger,
	}
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.Routes(),
	}

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infof("Running on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server exited: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return bc.Run(gctx)
	})

	g.Go(func() error {
		return lobbies.RunAutoStart(gctx, cfg.AutoStartInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func loadKeys(cfg *config.Config, logger *logrus.Logger) (*auth.Keys, error) {
	if cfg.JWTPublicKeyPath == "" {
		logger.Error("JWT_DEV_EPHEMERAL_KEYS set: using a throwaway key pair, for local development only; " +
			"tokens from the account service will be rejected")
		return auth.NewKeys(cfg.TokenExpireTime)
	}
	keys, err := auth.LoadKeys(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.TokenExpireTime)
	if err != nil {
		return nil, fmt.Errorf("loading jwt keys: %w", err)
	}
	return keys, nil
}
