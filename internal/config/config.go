package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/yuhsiangw/air-quality-aggregation/internal/airquality"
)

type AppConfig struct {
	// WeatherLink (AirLink) credentials.
	WeatherLinkAPIKey    string
	WeatherLinkAPISecret string
	WeatherLinkStationID string

	// MOENV open-data token.
	MoenvAPIToken string

	// Timezone is the named zone all provider timestamps are converted into.
	Timezone *time.Location

	// MaxQueryDays bounds the historical query span (inclusive dates).
	MaxQueryDays int

	// Self-throttle delays between consecutive provider requests.
	DayRequestDelay  time.Duration // WeatherLink per-day historic calls
	PageRequestDelay time.Duration // MOENV page calls

	// HTTPTimeout bounds every outbound request. Historic pages are bulky,
	// so this defaults longer than a single current-conditions call needs.
	HTTPTimeout time.Duration

	// FetchInterval controls how often the current snapshot is refreshed.
	FetchInterval time.Duration

	// In-memory snapshot store retention.
	StoreMaxHistory int           // max number of snapshots (0 = unlimited)
	StoreMaxAge     time.Duration // max age of snapshots (0 = unlimited)

	// Report thresholds; the qualitative scale keeps its defaults.
	Report airquality.ReportConfig

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.WeatherLinkAPIKey = os.Getenv("WEATHERLINK_API_KEY")
	cfg.WeatherLinkAPISecret = os.Getenv("WEATHERLINK_API_SECRET")
	cfg.WeatherLinkStationID = getenvDefault("WEATHERLINK_STATION_ID", "167944")
	cfg.MoenvAPIToken = os.Getenv("MOENV_API_TOKEN")

	tzName := getenvDefault("TIMEZONE", "Asia/Taipei")
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Timezone = tz

	cfg.MaxQueryDays = getenvInt("MAX_QUERY_DAYS", 30)

	dayDelay, err := time.ParseDuration(getenvDefault("DAY_REQUEST_DELAY", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid DAY_REQUEST_DELAY: %w", err)
	}
	cfg.DayRequestDelay = dayDelay

	pageDelay, err := time.ParseDuration(getenvDefault("PAGE_REQUEST_DELAY", "500ms"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAGE_REQUEST_DELAY: %w", err)
	}
	cfg.PageRequestDelay = pageDelay

	httpTimeout, err := time.ParseDuration(getenvDefault("HTTP_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = httpTimeout

	interval, err := time.ParseDuration(getenvDefault("FETCH_INTERVAL", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_INTERVAL: %w", err)
	}
	cfg.FetchInterval = interval

	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 96) // roughly 24h at 15-minute intervals

	maxAge, err := time.ParseDuration(getenvDefault("STORE_MAX_AGE", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_MAX_AGE: %w", err)
	}
	cfg.StoreMaxAge = maxAge

	cfg.Report = airquality.DefaultReportConfig()
	cfg.Report.PM25Standard = getenvFloat("PM25_STANDARD", cfg.Report.PM25Standard)
	cfg.Report.PM10Standard = getenvFloat("PM10_STANDARD", cfg.Report.PM10Standard)

	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
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
