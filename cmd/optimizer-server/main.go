package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ktripathi/cloudopt/internal/api"
	"github.com/ktripathi/cloudopt/internal/config"
	"github.com/ktripathi/cloudopt/internal/pipeline"
	"github.com/ktripathi/cloudopt/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := newLogger(cfg.Log)

	store := telemetry.NewCSVStore(logger, telemetry.StoreConfig{
		MetricsPath: cfg.Telemetry.MetricsPath,
		Interval:    cfg.Telemetry.Interval,
		SeedSamples: cfg.Telemetry.SeedSamples,
		SeedCost:    cfg.Telemetry.SeedCost,
	})

	runner, err := pipeline.NewRunner(logger, cfg, store)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build pipeline runner")
	}

	server := api.NewServer(logger, runner, cfg.Server.Port)

	// Create a context that listens for the interrupt signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start API server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-ctx.Done()
	logger.Info().Msg("Shutting down...")

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Error during server shutdown")
	}

	logger.Info().Msg("Server stopped")
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stdout)
	if cfg.Format == "console" {
		logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
