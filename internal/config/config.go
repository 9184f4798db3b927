// Package config loads service settings from an optional parkingd.yaml file
// and PARKD_-prefixed environment variables, environment winning. Every key
// has a default registered so the env override path works without a file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service settings.
type Config struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	Log          LogConfig          `mapstructure:"log"`
	Ingest       IngestConfig       `mapstructure:"ingest"`
	Dedup        DedupConfig        `mapstructure:"dedup"`
	Discovery    DiscoveryConfig    `mapstructure:"discovery"`
	Availability AvailabilityConfig `mapstructure:"availability"`
	Store        StoreConfig        `mapstructure:"store"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Sources      SourcesConfig      `mapstructure:"sources"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// IngestConfig configures the ingestion orchestrator and scheduler.
// Sources limits scheduled runs to the named adapters; empty means all
// registered adapters.
type IngestConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	BatchSize   int           `mapstructure:"batch_size"`
	Concurrency int           `mapstructure:"concurrency"`
	Sources     []string      `mapstructure:"sources"`
}

// DedupConfig selects and tunes the deduplication strategy.
type DedupConfig struct {
	Strategy        string  `mapstructure:"strategy"`
	ThresholdMeters float64 `mapstructure:"threshold_meters"`
}

// DiscoveryConfig tunes the user-report discovery flow.
type DiscoveryConfig struct {
	MatchRadiusMeters     float64 `mapstructure:"match_radius_meters"`
	ConfirmationsToVerify int     `mapstructure:"confirmations_to_verify"`
	DiscoveryPoints       int     `mapstructure:"discovery_points"`
}

// AvailabilityConfig tunes availability queries and the places cache.
type AvailabilityConfig struct {
	DefaultRadiusMeters float64       `mapstructure:"default_radius_meters"`
	CacheTTL            time.Duration `mapstructure:"cache_ttl"`
	CacheSweepInterval  time.Duration `mapstructure:"cache_sweep_interval"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// KafkaConfig configures the spot-event producer.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// SourcesConfig holds per-source-family settings.
type SourcesConfig struct {
	OpenData  OpenDataConfig  `mapstructure:"opendata"`
	Places    PlacesConfig    `mapstructure:"places"`
	Community CommunityConfig `mapstructure:"community"`
}

// OpenDataConfig configures the city open data portal shared by the meters,
// census, and citations adapters. AppToken is optional; anonymous requests
// just get a lower rate ceiling.
type OpenDataConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	AppToken         string        `mapstructure:"app_token"`
	MetersDataset    string        `mapstructure:"meters_dataset"`
	CensusDataset    string        `mapstructure:"census_dataset"`
	CitationsDataset string        `mapstructure:"citations_dataset"`
	PageSize         int           `mapstructure:"page_size"`
	PageInterval     time.Duration `mapstructure:"page_interval"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
}

// PlacesConfig configures the commercial places-search API. An empty APIKey
// disables the adapter.
type PlacesConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	PageSize       int           `mapstructure:"page_size"`
	PageInterval   time.Duration `mapstructure:"page_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// CommunityConfig configures the crowd-mapped geodata service. An empty
// BaseURL disables the adapter.
type CommunityConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	PageSize       int           `mapstructure:"page_size"`
	PageInterval   time.Duration `mapstructure:"page_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// Load reads configuration, applying defaults where unset. The config file
// (parkingd.yaml in the working directory) is optional; PARKD_* environment
// variables override it, e.g. PARKD_STORE_DRIVER or
// PARKD_SOURCES_OPENDATA_APP_TOKEN.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("parkingd")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PARKD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("shutdown_timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("ingest.interval", "6h")
	v.SetDefault("ingest.batch_size", 500)
	v.SetDefault("ingest.concurrency", 3)
	v.SetDefault("ingest.sources", []string{})

	v.SetDefault("dedup.strategy", "grid")
	v.SetDefault("dedup.threshold_meters", 5.0)

	v.SetDefault("discovery.match_radius_meters", 20.0)
	v.SetDefault("discovery.confirmations_to_verify", 3)
	v.SetDefault("discovery.discovery_points", 20)

	v.SetDefault("availability.default_radius_meters", 500.0)
	v.SetDefault("availability.cache_ttl", "10m")
	v.SetDefault("availability.cache_sweep_interval", "1m")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "parking.db")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "parking-spot-events")

	v.SetDefault("sources.opendata.base_url", "https://data.sfgov.org")
	v.SetDefault("sources.opendata.app_token", "")
	v.SetDefault("sources.opendata.meters_dataset", "8vzz-qzz9")
	v.SetDefault("sources.opendata.census_dataset", "9ivs-nf5y")
	v.SetDefault("sources.opendata.citations_dataset", "ab4h-6ztd")
	v.SetDefault("sources.opendata.page_size", 1000)
	v.SetDefault("sources.opendata.page_interval", "500ms")
	v.SetDefault("sources.opendata.request_timeout", "30s")
	v.SetDefault("sources.opendata.max_retries", 3)

	v.SetDefault("sources.places.base_url", "")
	v.SetDefault("sources.places.api_key", "")
	v.SetDefault("sources.places.page_size", 20)
	v.SetDefault("sources.places.page_interval", "200ms")
	v.SetDefault("sources.places.request_timeout", "10s")
	v.SetDefault("sources.places.max_retries", 3)

	v.SetDefault("sources.community.base_url", "")
	v.SetDefault("sources.community.page_size", 500)
	v.SetDefault("sources.community.page_interval", "1s")
	v.SetDefault("sources.community.request_timeout", "60s")
	v.SetDefault("sources.community.max_retries", 2)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Store.Driver != "memory" && cfg.Store.Driver != "sqlite" {
		return nil, fmt.Errorf("store.driver must be memory or sqlite, got %q", cfg.Store.Driver)
	}
	if cfg.Store.Driver == "sqlite" && cfg.Store.Path == "" {
		return nil, errors.New("store.path is required when store.driver is sqlite")
	}
	if cfg.Dedup.Strategy != "exact" && cfg.Dedup.Strategy != "grid" {
		return nil, fmt.Errorf("dedup.strategy must be exact or grid, got %q", cfg.Dedup.Strategy)
	}
	if cfg.Dedup.ThresholdMeters <= 0 {
		return nil, errors.New("dedup.threshold_meters must be positive")
	}
	if cfg.Ingest.Interval <= 0 {
		return nil, errors.New("ingest.interval must be positive")
	}
	if cfg.Ingest.BatchSize <= 0 {
		return nil, errors.New("ingest.batch_size must be positive")
	}
	if cfg.Ingest.Concurrency <= 0 {
		return nil, errors.New("ingest.concurrency must be positive")
	}
	if cfg.Discovery.MatchRadiusMeters <= 0 {
		return nil, errors.New("discovery.match_radius_meters must be positive")
	}
	if cfg.Discovery.ConfirmationsToVerify <= 0 {
		return nil, errors.New("discovery.confirmations_to_verify must be positive")
	}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		return nil, errors.New("kafka.brokers is required when kafka.enabled is true")
	}
	if cfg.Kafka.Enabled && cfg.Kafka.Topic == "" {
		return nil, errors.New("kafka.topic is required when kafka.enabled is true")
	}

	return &cfg, nil
}
