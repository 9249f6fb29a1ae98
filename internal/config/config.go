package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/georgeshao/fio-dashboard/internal/cache"
	"github.com/georgeshao/fio-dashboard/internal/gateway"
	"github.com/georgeshao/fio-dashboard/internal/importer"
	"github.com/georgeshao/fio-dashboard/internal/storage"
)

const (
	DefaultPort        = ":8080"
	DefaultAPIURL      = "http://localhost:8000"
	DefaultStoragePath = "./data/fio_dashboard.db"
	DefaultRedisPrefix = "fio-dashboard:"
)

type Config struct {
	Port string

	APIURL            string
	APIToken          string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Burst             int
	PageSize          int

	CacheParameterized bool
	TTLFilterOptions   time.Duration
	TTLTestRuns        time.Duration
	TTLUsers           time.Duration
	TTLHealth          time.Duration
	TTLTimeSeries      time.Duration

	StorageBackend storage.Backend
	StoragePath    string
	RedisURL       string
	RedisPrefix    string

	LogLevel       string
	LogDevelopment bool

	ImportWorkers int
	ImportRate    float64
}

type configFile struct {
	Port string `yaml:"port"`

	API struct {
		URL               string  `yaml:"url"`
		Token             string  `yaml:"token"`
		RequestTimeout    string  `yaml:"request_timeout"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
		PageSize          int     `yaml:"page_size"`
	} `yaml:"api"`

	Cache struct {
		Parameterized *bool  `yaml:"parameterized"`
		FilterOptions string `yaml:"filter_options_ttl"`
		TestRuns      string `yaml:"test_runs_ttl"`
		Users         string `yaml:"users_ttl"`
		Health        string `yaml:"health_ttl"`
		TimeSeries    string `yaml:"time_series_ttl"`
	} `yaml:"cache"`

	Storage struct {
		Backend     string `yaml:"backend"`
		Path        string `yaml:"path"`
		RedisURL    string `yaml:"redis_url"`
		RedisPrefix string `yaml:"redis_prefix"`
	} `yaml:"storage"`

	Log struct {
		Level       string `yaml:"level"`
		Development *bool  `yaml:"development"`
	} `yaml:"log"`

	Import struct {
		Workers        int     `yaml:"workers"`
		FilesPerSecond float64 `yaml:"files_per_second"`
	} `yaml:"import"`
}

func Default() Config {
	gw := gateway.DefaultConfig()
	im := importer.DefaultConfig()
	ttls := cache.DefaultTTLs()

	return Config{
		Port:              DefaultPort,
		APIURL:            DefaultAPIURL,
		RequestTimeout:    gw.RequestTimeout,
		RequestsPerSecond: gw.RequestsPerSecond,
		Burst:             gw.Burst,
		PageSize:          gw.PageSize,
		TTLFilterOptions:  ttls[cache.FilterOptions],
		TTLTestRuns:       ttls[cache.TestRuns],
		TTLUsers:          ttls[cache.Users],
		TTLHealth:         ttls[cache.Health],
		TTLTimeSeries:     ttls[cache.TimeSeries],
		StorageBackend:    storage.BackendPebble,
		StoragePath:       DefaultStoragePath,
		RedisPrefix:       DefaultRedisPrefix,
		LogLevel:          "info",
		ImportWorkers:     im.MaxWorkers,
		ImportRate:        im.FilesPerSecond,
	}
}

// Load builds the configuration from defaults, then the optional YAML file at
// path, then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err == nil {
			if err := cfg.applyFile(raw); err != nil {
				return Config{}, err
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if !strings.HasPrefix(cfg.Port, ":") && !strings.Contains(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyFile(raw []byte) error {
	var file configFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if file.Port != "" {
		c.Port = file.Port
	}
	if file.API.URL != "" {
		c.APIURL = file.API.URL
	}
	if file.API.Token != "" {
		c.APIToken = file.API.Token
	}
	if file.API.RequestsPerSecond > 0 {
		c.RequestsPerSecond = file.API.RequestsPerSecond
	}
	if file.API.Burst > 0 {
		c.Burst = file.API.Burst
	}
	if file.API.PageSize > 0 {
		c.PageSize = file.API.PageSize
	}
	if file.Cache.Parameterized != nil {
		c.CacheParameterized = *file.Cache.Parameterized
	}
	if file.Storage.Backend != "" {
		c.StorageBackend = storage.Backend(file.Storage.Backend)
	}
	if file.Storage.Path != "" {
		c.StoragePath = file.Storage.Path
	}
	if file.Storage.RedisURL != "" {
		c.RedisURL = file.Storage.RedisURL
	}
	if file.Storage.RedisPrefix != "" {
		c.RedisPrefix = file.Storage.RedisPrefix
	}
	if file.Log.Level != "" {
		c.LogLevel = file.Log.Level
	}
	if file.Log.Development != nil {
		c.LogDevelopment = *file.Log.Development
	}
	if file.Import.Workers > 0 {
		c.ImportWorkers = file.Import.Workers
	}
	if file.Import.FilesPerSecond > 0 {
		c.ImportRate = file.Import.FilesPerSecond
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"api.request_timeout", file.API.RequestTimeout, &c.RequestTimeout},
		{"cache.filter_options_ttl", file.Cache.FilterOptions, &c.TTLFilterOptions},
		{"cache.test_runs_ttl", file.Cache.TestRuns, &c.TTLTestRuns},
		{"cache.users_ttl", file.Cache.Users, &c.TTLUsers},
		{"cache.health_ttl", file.Cache.Health, &c.TTLHealth},
		{"cache.time_series_ttl", file.Cache.TimeSeries, &c.TTLTimeSeries},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse config file: invalid %s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Port = envOrDefault("PORT", c.Port)
	c.APIURL = envOrDefault("FIO_API_URL", c.APIURL)
	c.APIToken = envOrDefault("FIO_API_TOKEN", c.APIToken)
	c.RequestsPerSecond = envFloat("FIO_API_RPS", c.RequestsPerSecond)
	c.Burst = envInt("FIO_API_BURST", c.Burst)
	c.PageSize = envInt("FIO_API_PAGE_SIZE", c.PageSize)
	c.CacheParameterized = envBool("CACHE_PARAMETERIZED", c.CacheParameterized)
	c.StorageBackend = storage.Backend(envOrDefault("STORAGE_BACKEND", string(c.StorageBackend)))
	c.StoragePath = envOrDefault("STORAGE_PATH", c.StoragePath)
	c.RedisURL = envOrDefault("REDIS_URL", c.RedisURL)
	c.RedisPrefix = envOrDefault("REDIS_PREFIX", c.RedisPrefix)
	c.LogLevel = envOrDefault("LOG_LEVEL", c.LogLevel)
	c.LogDevelopment = envBool("LOG_DEV", c.LogDevelopment)
	c.ImportWorkers = envInt("IMPORT_WORKERS", c.ImportWorkers)
	c.ImportRate = envFloat("IMPORT_RATE", c.ImportRate)

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"FIO_API_TIMEOUT", &c.RequestTimeout},
		{"TTL_FILTER_OPTIONS", &c.TTLFilterOptions},
		{"TTL_TEST_RUNS", &c.TTLTestRuns},
		{"TTL_USERS", &c.TTLUsers},
		{"TTL_HEALTH", &c.TTLHealth},
		{"TTL_TIME_SERIES", &c.TTLTimeSeries},
	}
	for _, d := range durations {
		v, err := envDuration(d.name, *d.dst)
		if err != nil {
			return err
		}
		*d.dst = v
	}
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return fmt.Errorf("missing FIO_API_URL")
	}
	if !c.StorageBackend.Valid() {
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	if c.StorageBackend == storage.BackendRedis && c.RedisURL == "" {
		return fmt.Errorf("missing REDIS_URL for redis storage backend")
	}
	if c.StorageBackend != storage.BackendRedis && c.StorageBackend != storage.BackendMemory && c.StoragePath == "" {
		return fmt.Errorf("missing STORAGE_PATH for %s storage backend", c.StorageBackend)
	}
	if c.PageSize < 1 || c.PageSize > gateway.DefaultPageSize {
		return fmt.Errorf("page size must be between 1 and %d, got %d", gateway.DefaultPageSize, c.PageSize)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	for class, ttl := range c.TTLs() {
		if ttl <= 0 {
			return fmt.Errorf("ttl for %s must be positive, got %s", class, ttl)
		}
	}
	return nil
}

func (c Config) TTLs() map[cache.Class]time.Duration {
	return map[cache.Class]time.Duration{
		cache.FilterOptions: c.TTLFilterOptions,
		cache.TestRuns:      c.TTLTestRuns,
		cache.Users:         c.TTLUsers,
		cache.Health:        c.TTLHealth,
		cache.TimeSeries:    c.TTLTimeSeries,
	}
}

func (c Config) Gateway() gateway.Config {
	return gateway.Config{
		BaseURL:            strings.TrimRight(c.APIURL, "/"),
		RequestTimeout:     c.RequestTimeout,
		RequestsPerSecond:  c.RequestsPerSecond,
		Burst:              c.Burst,
		PageSize:           c.PageSize,
		TTLs:               c.TTLs(),
		CacheParameterized: c.CacheParameterized,
	}
}

func (c Config) Importer() importer.Config {
	return importer.Config{
		MaxWorkers:     c.ImportWorkers,
		FilesPerSecond: c.ImportRate,
	}
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envFloat(name string, fallback float64) float64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envDuration rejects malformed values instead of falling back.
func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}
