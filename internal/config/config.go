package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// DefaultVariables is the CYGNSS variable subset requested per granule.
var DefaultVariables = []string{
	"sp_lon", "sp_lat", "ddm_snr", "tx_to_sp_range", "rx_to_sp_range",
	"sp_rx_gain", "ddm_timestamp_utc", "brcs",
}

const defaultOpenDAPBaseURL = "https://opendap.earthdata.nasa.gov/collections/C2146321631-POCLOUD"

// Config holds all builder settings, populated from environment variables.
type Config struct {
	// Run window, [StartDate, EndDate) at daily granularity in UTC.
	StartDate time.Time
	EndDate   time.Time

	MaxDistanceKm           float64
	MatchToleranceSeconds   float64
	InterpolationResolution int
	Variables               []string

	StationsFile    string
	CredentialsFile string
	SeriesCacheSize int

	// Remote archive.
	OpenDAPBaseURL  string
	HTTPTimeout     time.Duration
	Retries         int
	FetchBackoff    time.Duration
	FetchMaxBackoff time.Duration
	TempDir         string

	// Snapshot sink.
	OutputDir  string
	InputFile  string
	OutputFile string

	// Optional sample stream; enabled when KAFKA_BROKERS is set.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables (optionally .env),
// applying defaults where unset.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	start, err := parseDate("START_DATE", "2022-06-30")
	if err != nil {
		return nil, err
	}
	end, err := parseDate("END_DATE", "2023-06-30")
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, errors.New("END_DATE must be after START_DATE")
	}

	maxDistance, err := parsePositiveFloat("MAX_DISTANCE_KM", 5)
	if err != nil {
		return nil, err
	}
	tolerance, err := parsePositiveFloat("MATCH_TOLERANCE_SECONDS", 1800)
	if err != nil {
		return nil, err
	}
	resolution, err := parsePositiveInt("INTERPOLATION_RESOLUTION", 100)
	if err != nil {
		return nil, err
	}
	retries, err := parsePositiveInt("RETRIES", 3)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("SERIES_CACHE_SIZE", 64)
	if err != nil {
		return nil, err
	}

	httpTimeout, err := parseDuration("HTTP_TIMEOUT", "10m", false)
	if err != nil {
		return nil, err
	}
	backoff, err := parseDuration("FETCH_BACKOFF", "0s", true)
	if err != nil {
		return nil, err
	}
	maxBackoff, err := parseDuration("FETCH_MAX_BACKOFF", "30s", true)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		StartDate:               start,
		EndDate:                 end,
		MaxDistanceKm:           maxDistance,
		MatchToleranceSeconds:   tolerance,
		InterpolationResolution: resolution,
		Variables:               parseList(sharedcfg.EnvOrDefault("VARIABLES", strings.Join(DefaultVariables, ","))),

		StationsFile:    sharedcfg.EnvOrDefault("STATIONS_FILE", "ISMN_stations.json"),
		CredentialsFile: sharedcfg.EnvOrDefault("CREDENTIALS_FILE", "credentials_file"),
		SeriesCacheSize: cacheSize,

		OpenDAPBaseURL:  strings.TrimRight(sharedcfg.EnvOrDefault("OPENDAP_BASE_URL", defaultOpenDAPBaseURL), "/"),
		HTTPTimeout:     httpTimeout,
		Retries:         retries,
		FetchBackoff:    backoff,
		FetchMaxBackoff: maxBackoff,
		TempDir:         os.Getenv("TEMP_DIR"),

		OutputDir:  sharedcfg.EnvOrDefault("OUTPUT_DIR", "."),
		InputFile:  sharedcfg.EnvOrDefault("INPUT_FILE", "input_sm_data.json"),
		OutputFile: sharedcfg.EnvOrDefault("OUTPUT_FILE", "output_sm_data.json"),

		KafkaTopic: sharedcfg.EnvOrDefault("KAFKA_TOPIC", "cygnss-ismn-samples"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
		cfg.KafkaEnabled = len(cfg.KafkaBrokers) > 0
	}

	if len(cfg.Variables) == 0 {
		return nil, errors.New("VARIABLES must list at least one variable")
	}
	if cfg.FetchMaxBackoff < cfg.FetchBackoff {
		return nil, errors.New("FETCH_MAX_BACKOFF must not be less than FETCH_BACKOFF")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// Days returns the number of calendar days in the run window.
func (c *Config) Days() int {
	return int(c.EndDate.Sub(c.StartDate).Hours() / 24)
}

// InputPath is the input snapshot location.
func (c *Config) InputPath() string { return filepath.Join(c.OutputDir, c.InputFile) }

// OutputPath is the target snapshot location.
func (c *Config) OutputPath() string { return filepath.Join(c.OutputDir, c.OutputFile) }

var dateLayouts = []string{time.DateOnly, "2006/01/02"}

func parseDate(key, def string) (time.Time, error) {
	s := strings.TrimSpace(sharedcfg.EnvOrDefault(key, def))
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid %s: %q (want YYYY-MM-DD)", key, s)
}

func parsePositiveFloat(key string, def float64) (float64, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return v, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return v, nil
}

func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
