package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/EgorMochalov/dota2ComfyBack2/internal/api"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/api/middleware"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/auth"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/chat"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/config"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/handlers"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/presence"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/store"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/ws"
)

func main() {
	cfg := config.Load()

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info().Msg("running database migrations...")
	if err := store.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}
	logger.Info().Msg("migrations completed")

	pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pgStore.Close()
	logger.Info().Msg("connected to PostgreSQL")

	redisStore, err := store.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer redisStore.Close()
	logger.Info().Msg("connected to Redis")

	tokens := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL)

	presenceSvc := presence.New(
		presence.NewRedisBackend(redisStore.Client()),
		cfg.OnlineTTL,
		logger,
	)

	chatSvc := chat.NewService(pgStore, nil, logger)
	hub := ws.NewHub(chatSvc, presenceSvc, logger)
	chatSvc.SetFanout(hub)

	bridge := ws.NewBridge(redisStore.Client(), hub, logger)
	go bridge.Run(ctx)

	go presenceSvc.RunSweeper(ctx, cfg.SweepInterval)

	h := handlers.NewHandler(pgStore, redisStore, chatSvc, hub, presenceSvc, tokens, logger)
	authMw := middleware.NewAuthMiddleware(pgStore, tokens)
	limiter := middleware.NewRateLimiter(redisStore.Client(), logger)

	router := api.NewRouter(cfg, logger, h, authMw, limiter)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("instance", hub.InstanceID()).
			Msg("starting server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
