// Package config loads process configuration from the environment (and an
// optional .env file), in the teacher's load order: .env first, then real
// environment variables override it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/aristath/sentinel/internal/utils"
)

// Config holds the discovery daemon's process configuration.
type Config struct {
	DataDir       string // directory of <TICKER>.csv price files
	ResultsDBPath string // sqlite file for persisted BranchResults
	LogLevel      string // debug, info, warn, error
	Port           int      // HTTP listen port
	PriceCacheCap  int      // PriceStore LRU capacity
	DefaultWorkers int      // used when a job does not specify NumWorkers
	TickerUniverse []string // non-empty restricts jobs to this ticker allowlist
}

// Load reads .env (if present) then the environment, applying defaults for
// anything unset.
func Load() (Config, error) {
	_ = godotenv.Load() // optional; absence is not an error

	cfg := Config{
		DataDir:        getEnv("SENTINEL_DATA_DIR", "./data/prices"),
		ResultsDBPath:  getEnv("SENTINEL_RESULTS_DB", "./data/results.db"),
		LogLevel:       getEnv("SENTINEL_LOG_LEVEL", "info"),
		Port:           8080,
		PriceCacheCap:  128,
		DefaultWorkers: 0, // 0 -> resolved from gopsutil logical CPU count
		TickerUniverse: utils.ParseCSV(os.Getenv("SENTINEL_TICKER_UNIVERSE")),
	}

	if v := os.Getenv("SENTINEL_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid SENTINEL_PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("SENTINEL_PRICE_CACHE_CAP"); v != "" {
		cap, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid SENTINEL_PRICE_CACHE_CAP %q: %w", v, err)
		}
		cfg.PriceCacheCap = cap
	}
	if v := os.Getenv("SENTINEL_DEFAULT_WORKERS"); v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid SENTINEL_DEFAULT_WORKERS %q: %w", v, err)
		}
		cfg.DefaultWorkers = workers
	}

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return Config{}, fmt.Errorf("config: resolve data dir: %w", err)
	}
	cfg.DataDir = absDataDir

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
