// Package main provides the recommendation scoring job entry point for spotrank.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tripnotes/spotrank/internal/config"
	"github.com/tripnotes/spotrank/internal/db/gorm"
	"github.com/tripnotes/spotrank/internal/engine"
	"github.com/tripnotes/spotrank/internal/heuristic"
	"github.com/tripnotes/spotrank/internal/provider"
	"github.com/tripnotes/spotrank/internal/runner"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	force := flag.Bool("force", false, "Run even if the scope's interval has not elapsed")
	userID := flag.Int64("user", 0, "Run only this user's scope (0 = global scope)")
	dryRun := flag.Bool("dry-run", false, "Compute scores but write nothing")
	printSchema := flag.Bool("print-tool-schema", false, "Print the provider tool schema and exit")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *printSchema {
		schema, err := provider.ToolSchemaJSON()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(schema)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg.Logging, *debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := gorm.NewStore(gorm.Config{
		DSN:      cfg.Database.DSN,
		MaxConns: cfg.Database.MaxConns,
		LogLevel: gormlogger.Silent,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database store")
	}
	defer store.Close()

	interactionStore := gorm.NewInteractionStore(store)
	spotStore := gorm.NewSpotStore(store)
	scoreStore := gorm.NewRecommendationScoreStore(store)
	settingStore := gorm.NewJobSettingStore(store)
	logStore := gorm.NewJobLogStore(store)

	var prov provider.ScoringProvider
	if cfg.Provider.Enabled && cfg.Provider.APIKey != "" {
		prov = provider.NewOpenAIProvider(provider.Config{
			BaseURL: cfg.Provider.BaseURL,
			APIKey:  cfg.Provider.APIKey,
			Model:   cfg.Provider.Model,
			Timeout: cfg.Provider.Timeout,
		}, log.Logger)
	} else {
		log.Info().Msg("Provider disabled or unconfigured, scoring via heuristic only")
	}

	scorer := heuristic.NewScorer(&cfg.Heuristic)
	eng := engine.New(interactionStore, spotStore, prov, scorer, log.Logger)
	r := runner.New(settingStore, logStore, scoreStore, interactionStore, eng, runner.Config{
		Workers:           cfg.Jobs.Workers,
		IntervalHours:     cfg.Jobs.IntervalHours,
		UserIntervalHours: cfg.Jobs.UserIntervalHours,
	}, log.Logger)

	entry, err := r.Run(ctx, runner.Options{
		Force:  *force,
		DryRun: *dryRun,
		UserID: *userID,
	})
	if err != nil {
		log.Error().Err(err).Msg("Run failed")
		os.Exit(1)
	}

	event := log.Info().
		Str("run_id", entry.RunID).
		Str("scope", entry.Scope).
		Str("status", string(entry.Status)).
		Uint("users_processed", entry.UsersProcessed).
		Uint("users_fallback", entry.UsersFallback).
		Uint("scored_count", entry.ScoredCount)
	if entry.ErrorMessage != "" {
		event = event.Str("detail", entry.ErrorMessage)
	}
	if *dryRun {
		event = event.Bool("dry_run", true)
	}
	// Completed runs exit zero regardless of status; degraded and skipped
	// outcomes are recorded in the job log, not signalled to cron.
	event.Msg("Run complete")
}

func setupLogging(cfg config.LoggingConfig, debug bool) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})
	}
}
