// Command discoveryd runs the systematic strategy discovery engine as an
// HTTP service: submit a job's search space, poll its progress, and read
// back the surviving branches (spec §6).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/httpapi"
	"github.com/aristath/sentinel/internal/job"
	"github.com/aristath/sentinel/internal/pricestore"
	"github.com/aristath/sentinel/internal/sink"
	"github.com/aristath/sentinel/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})
	log.Info().Msg("starting discoveryd")

	store := pricestore.New(cfg.DataDir, cfg.PriceCacheCap, log)

	resultsDB, err := sink.Open(cfg.ResultsDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open results database")
	}
	defer resultsDB.Close()

	defaultWorkers := cfg.DefaultWorkers
	if defaultWorkers <= 0 {
		logicalCPUs, err := cpu.Counts(true)
		if err != nil || logicalCPUs <= 0 {
			logicalCPUs = 1
		}
		defaultWorkers = logicalCPUs
	}

	runner := job.NewRunner(store, resultsDB, defaultWorkers, cfg.TickerUniverse, log)

	server := httpapi.New(httpapi.Config{
		Port:   cfg.Port,
		Runner: runner,
		Log:    log,
	})

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
	log.Info().Int("port", cfg.Port).Int("default_workers", defaultWorkers).Msg("discoveryd started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("discoveryd stopped")
}
