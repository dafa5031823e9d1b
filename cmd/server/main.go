package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"chatrelay/internal/api"
	"chatrelay/internal/auth"
	"chatrelay/internal/backend"
	"chatrelay/internal/config"
	"chatrelay/internal/core"
	"chatrelay/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger := zerolog.New(os.Stderr)
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := newLogger(cfg)

	dbStore, err := store.Open(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer dbStore.Close()

	backendClient := backend.NewClient(cfg.BackendURL, &http.Client{Timeout: 60 * time.Second}, log)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL)
	chatService := core.NewChatService(dbStore, backendClient, cfg.StreamDelay, log)

	handler := api.NewAPIHandler(chatService, tokens, log)
	router := api.NewRouter(handler, log)

	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Streaming turns pace out one token per STREAM_DELAY_MS, so the
		// write timeout has to cover a long reply end to end.
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited gracefully")
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
