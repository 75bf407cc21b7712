package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

const (
	defaultRefURL  = "https://api.github.com/repos/CSSEGISandData/COVID-19/git/refs/heads/web-data"
	defaultBaseURL = "https://raw.githubusercontent.com/CSSEGISandData/COVID-19/web-data/data"

	maxTopN = 250
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Source data files, resolved relative to DataDir unless absolute.
	DataDir            string
	TimeSeriesFile     string
	ISOCodesFile       string
	PopulationFile     string
	CountryAliasesFile string
	WatchEnabled       bool

	// View defaults.
	HeatmapTopN   int
	MostAffectedN int

	// Scraper configuration.
	ScrapeEnabled  bool
	ScrapeInterval time.Duration
	ScrapeTimeout  time.Duration
	ScrapeRate     float64
	ScrapeRefURL   string
	ScrapeBaseURL  string
	ScrapeFiles    []string

	// Refresh notifications; disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	scrapeInterval, err := parsePositiveDuration("SCRAPE_INTERVAL", "1h")
	if err != nil {
		return nil, err
	}
	scrapeTimeout, err := parsePositiveDuration("SCRAPE_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	scrapeRate, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("SCRAPE_RATE", "1"), 64)
	if err != nil || scrapeRate <= 0 {
		return nil, errors.New("invalid SCRAPE_RATE")
	}

	heatmapTopN, err := parseTopN("HEATMAP_TOP_N", 20)
	if err != nil {
		return nil, err
	}
	mostAffectedN, err := parseTopN("MOST_AFFECTED_N", 10)
	if err != nil {
		return nil, err
	}

	// Only the time series is read, so by default it is the only file fetched.
	timeSeriesFile := sharedcfg.EnvOrDefault("TIME_SERIES_FILE", "cases_time.csv")

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8501"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DataDir:            sharedcfg.EnvOrDefault("DATA_DIR", "data"),
		TimeSeriesFile:     timeSeriesFile,
		ISOCodesFile:       os.Getenv("ISO_CODES_FILE"),
		PopulationFile:     os.Getenv("POPULATION_FILE"),
		CountryAliasesFile: os.Getenv("COUNTRY_ALIASES_FILE"),
		WatchEnabled:       sharedcfg.EnvOrDefault("WATCH_ENABLED", "true") == "true",

		HeatmapTopN:   heatmapTopN,
		MostAffectedN: mostAffectedN,

		ScrapeEnabled:  os.Getenv("SCRAPE_ENABLED") == "true",
		ScrapeInterval: scrapeInterval,
		ScrapeTimeout:  scrapeTimeout,
		ScrapeRate:     scrapeRate,
		ScrapeRefURL:   sharedcfg.EnvOrDefault("SCRAPE_REF_URL", defaultRefURL),
		ScrapeBaseURL:  sharedcfg.EnvOrDefault("SCRAPE_BASE_URL", defaultBaseURL),
		ScrapeFiles:    splitList(sharedcfg.EnvOrDefault("SCRAPE_FILES", timeSeriesFile)),

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "covid-data-refreshed"),
	}

	if cfg.TimeSeriesFile == "" {
		return nil, errors.New("TIME_SERIES_FILE is required")
	}
	if cfg.ScrapeEnabled && len(cfg.ScrapeFiles) == 0 {
		return nil, errors.New("SCRAPE_FILES is required when SCRAPE_ENABLED is true")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// NotifierEnabled reports whether refresh events are published to Kafka.
func (c *Config) NotifierEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseTopN(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > maxTopN {
		return 0, fmt.Errorf("invalid %s: must be between 1 and %d", key, maxTopN)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
