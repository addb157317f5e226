package main

import (
	"context"
	"errors"
	"flag"
	"log"
	stdhttp "net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/vncsmyrnk/curation/internal/app"
	"github.com/vncsmyrnk/curation/internal/config"
	"github.com/vncsmyrnk/curation/internal/logging"
)

func main() {
	configFile := flag.String("config", "", "YAML config file (defaults to $CONFIG_FILE)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.RequireJWTSecret(); err != nil {
		log.Fatal(err)
	}
	logger := logging.New(cfg.LogLevel, "curation-server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	node, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	defer node.Close()

	server := &stdhttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           node.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Str("store", string(cfg.StoreBackend)).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("gracefully shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
	}
}
