package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/rpfaria/vinecast/internal/vineyard"
	"github.com/rpfaria/vinecast/internal/weather"
)

var validate = validator.New()

type AppConfig struct {
	OpenWeatherAPIKey string

	// CollectionInterval controls how often readings are collected.
	CollectionInterval time.Duration
	FetchTimeout       time.Duration
	RetryBackoff       time.Duration
	CollectionWorkers  int

	// AlertRetention is how long inactive alerts are kept.
	AlertRetention time.Duration

	// Locations to monitor.
	Locations []weather.Location

	// Rule thresholds, defaulted per DefaultThresholds.
	Thresholds vineyard.Thresholds

	// In-memory store retention (ignored when DatabaseURL is set).
	StoreMaxHistory int
	StoreMaxAge     time.Duration

	// DatabaseURL selects the Postgres repositories when non-empty.
	DatabaseURL string

	LogLevel string
	Port     string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.Port = getenvDefault("PORT", "8080")

	var err error
	if cfg.CollectionInterval, err = getenvDuration("COLLECTION_INTERVAL", "30m"); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = getenvDuration("FETCH_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.RetryBackoff, err = getenvDuration("RETRY_BACKOFF", "60s"); err != nil {
		return nil, err
	}
	cfg.CollectionWorkers = getenvInt("COLLECTION_WORKERS", 4)

	retentionDays := getenvInt("ALERT_RETENTION_DAYS", 30)
	cfg.AlertRetention = time.Duration(retentionDays) * 24 * time.Hour

	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 96)
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "168h"); err != nil {
		return nil, err
	}

	cfg.Thresholds = loadThresholds()

	locs, err := loadLocations()
	if err != nil {
		return nil, err
	}
	cfg.Locations = locs

	return cfg, nil
}

// loadThresholds starts from the defaults and applies per-rule overrides.
func loadThresholds() vineyard.Thresholds {
	t := vineyard.DefaultThresholds()

	t.IrrigationTempC = getenvFloat("IRRIGATION_TEMP_C", t.IrrigationTempC)
	t.IrrigationHumidityPct = getenvFloat("IRRIGATION_HUMIDITY_PCT", t.IrrigationHumidityPct)
	t.IrrigationDryReadings = getenvInt("IRRIGATION_NO_RAIN_DAYS", t.IrrigationDryReadings)
	t.FungalHumidityPct = getenvFloat("FUNGAL_HUMIDITY_PCT", t.FungalHumidityPct)
	t.FungalFavorableHours = getenvInt("FUNGAL_CONSECUTIVE_HOURS", t.FungalFavorableHours)
	t.HarvestStabilityC = getenvFloat("HARVEST_TEMP_STABILITY_C", t.HarvestStabilityC)
	t.HarvestMaxWindMS = getenvFloat("HARVEST_MAX_WIND_MS", t.HarvestMaxWindMS)

	return t
}

// loadLocations parses VINEYARD_LOCATIONS ("Name|lat|lon|Region" entries
// separated by ";") or falls back to the default Portuguese wine towns.
func loadLocations() ([]weather.Location, error) {
	raw := os.Getenv("VINEYARD_LOCATIONS")
	if raw == "" {
		return weather.DefaultLocations(), nil
	}

	var locs []weather.Location
	for i, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "|")
		if len(parts) != 4 {
			return nil, fmt.Errorf("invalid location entry %q: want Name|lat|lon|Region", entry)
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude in %q: %w", entry, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude in %q: %w", entry, err)
		}

		loc := weather.Location{
			ID:     i + 1,
			Name:   strings.TrimSpace(parts[0]),
			Lat:    lat,
			Lon:    lon,
			Region: strings.TrimSpace(parts[3]),
		}
		if err := validate.Struct(loc); err != nil {
			return nil, fmt.Errorf("invalid location %q: %w", loc.Name, err)
		}
		locs = append(locs, loc)
	}
	if len(locs) == 0 {
		return nil, fmt.Errorf("VINEYARD_LOCATIONS is set but contains no locations")
	}

	return locs, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	v := getenvDefault(key, def)
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
