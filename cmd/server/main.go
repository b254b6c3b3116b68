// Package main is the entry point for the Profiteer price intelligence
// service. It wires the marketplace scrapers, the Redis scrape cache, the
// sqlite store and the analysis engines, then runs the background job
// scheduler and the ops HTTP server until a shutdown signal arrives.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/profiteer/profiteer/internal/alerts"
	"github.com/profiteer/profiteer/internal/analyzer"
	"github.com/profiteer/profiteer/internal/arbitrage"
	"github.com/profiteer/profiteer/internal/cache"
	"github.com/profiteer/profiteer/internal/config"
	"github.com/profiteer/profiteer/internal/database"
	"github.com/profiteer/profiteer/internal/fetch"
	"github.com/profiteer/profiteer/internal/hype"
	"github.com/profiteer/profiteer/internal/items"
	"github.com/profiteer/profiteer/internal/pricehistory"
	"github.com/profiteer/profiteer/internal/scheduler"
	"github.com/profiteer/profiteer/internal/scrape"
	"github.com/profiteer/profiteer/internal/server"
	"github.com/profiteer/profiteer/internal/work"
	"github.com/profiteer/profiteer/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting Profiteer")

	// Sqlite store
	db, err := database.Open(cfg.DatabasePath())
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath()).Msg("Failed to open database")
	}
	defer db.Close()
	if err := database.EnsureSchema(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database schema")
	}
	log.Info().Str("path", cfg.DatabasePath()).Msg("Database ready")

	// Redis scrape cache
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid REDIS_URL")
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	scrapeCache := cache.New(redisClient, log)

	// Marketplace scrapers. eBay gets the standard fetch policy; Mercari and
	// TCGPlayer throttle harder so their fetchers keep a tighter timeout,
	// and Mercari gets a single retry.
	ebayFetcher := fetch.New(fetch.Config{
		Timeout:    cfg.Scrape.Timeout,
		MaxRetries: cfg.Scrape.MaxRetries,
		MinDelay:   cfg.Scrape.MinDelay,
		MaxDelay:   cfg.Scrape.MaxDelay,
	}, log)
	mercariFetcher := fetch.New(fetch.Config{
		Timeout:    20 * time.Second,
		MaxRetries: 1,
		MinDelay:   cfg.Scrape.MinDelay,
		MaxDelay:   cfg.Scrape.MaxDelay,
	}, log)
	tcgplayerFetcher := fetch.New(fetch.Config{
		Timeout:    20 * time.Second,
		MaxRetries: cfg.Scrape.MaxRetries,
		MinDelay:   cfg.Scrape.MinDelay,
		MaxDelay:   cfg.Scrape.MaxDelay,
	}, log)

	registry := scrape.NewRegistry(
		scrape.NewEbay(ebayFetcher, log),
		scrape.NewMercari(mercariFetcher, log),
		scrape.NewTcgplayer(tcgplayerFetcher, log),
	)

	// Repositories
	itemRepo := items.NewRepository(db)
	historyRepo := pricehistory.NewRepository(db)
	snapshotRepo := hype.NewRepository(db)
	alertRepo := alerts.NewRepository(db)

	// Background persistence runner
	runner := work.NewRunner(cfg.BackgroundQueueSize, cfg.BackgroundTaskTimeout, log)

	// Analysis engines
	analyzerSvc := analyzer.New(registry, scrapeCache, itemRepo, historyRepo, runner, log)
	arbitrageEngine := arbitrage.New(historyRepo, analyzerSvc, runner, log)
	hypeEngine := hype.New(itemRepo, historyRepo, snapshotRepo, log)
	alertSvc := alerts.New(alertRepo, historyRepo, snapshotRepo, log)

	// Background jobs
	sched := scheduler.New(log)
	if cfg.Scheduler.Enabled {
		jobs := []struct {
			schedule string
			job      scheduler.Job
		}{
			{scheduler.PriceRefreshSchedule, scheduler.NewPriceRefreshJob(
				registry, scrapeCache, historyRepo,
				cfg.Scheduler.PriceRefreshLimit, cfg.Scheduler.PriceRefreshDelay, log)},
			{scheduler.HypeRecalcSchedule, scheduler.NewHypeRecalcJob(hypeEngine, historyRepo, log)},
			{scheduler.ArbitrageScanSchedule, scheduler.NewArbitrageScanJob(arbitrageEngine, log)},
			{scheduler.AlertCheckSchedule, scheduler.NewAlertCheckJob(alertSvc, log)},
		}
		for _, j := range jobs {
			if err := sched.AddJob(j.schedule, j.job); err != nil {
				log.Fatal().Err(err).Str("job", j.job.Name()).Msg("Failed to register job")
			}
		}
		sched.Start()
	} else {
		log.Info().Msg("Scheduler disabled")
	}

	// Ops HTTP server
	srv := server.New(fmt.Sprintf(":%d", cfg.Port), sched.JobNames, log)
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		log.Error().Err(err).Msg("Ops server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Ops server shutdown failed")
	}
	sched.Stop()
	runner.Close()

	log.Info().Msg("Profiteer stopped")
}
