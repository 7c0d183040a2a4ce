package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"letsconnect/internal/config"
	"letsconnect/internal/database"
	"letsconnect/internal/server"
)

func setupLogger(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.LogFormat == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	setupLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	db, err := database.New(ctx, cfg)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("Could not connect to database")
	}
	defer db.Close()

	s, err := server.NewServer(cfg, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not initialize server")
	}

	done := make(chan bool, 1)

	go s.GracefulShutdown(done)

	err = s.Start()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("HTTP server error")
	}

	<-done
	log.Info().Msg("Graceful shutdown complete.")
}
