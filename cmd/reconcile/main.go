package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/vncsmyrnk/curation/internal/app"
	"github.com/vncsmyrnk/curation/internal/config"
	"github.com/vncsmyrnk/curation/internal/logging"
)

func main() {
	var (
		configFile string
		timeout    time.Duration
	)
	flag.StringVar(&configFile, "config", "", "YAML config file (defaults to $CONFIG_FILE)")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "Abort the sweep after this long")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.New(cfg.LogLevel, "curation-reconcile")

	// Use a timeout for the job execution to prevent it from hanging indefinitely
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	node, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open ledger")
	}
	defer node.Close()

	logger.Info().Msg("starting reconcile sweep")

	report, err := node.Reconcile.Reconcile(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("reconcile sweep failed")
		return
	}

	logger.Info().
		Int("scanned", report.Scanned).
		Int("indexed", report.Indexed).
		Strs("repaired", report.Repaired).
		Strs("malformed", report.Malformed).
		Msg("reconcile sweep completed")
}
