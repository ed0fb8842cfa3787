// Package config loads service configuration from defaults, an optional
// YAML file, a .env file and TEXTRPG_-prefixed environment variables, in
// that order of precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "TEXTRPG_"

type Config struct {
	Addr      string `yaml:"addr" env:"ADDR"`
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`

	Store  StoreConfig  `yaml:"store" envPrefix:"STORE_"`
	Cache  CacheConfig  `yaml:"cache" envPrefix:"CACHE_"`
	Redis  RedisConfig  `yaml:"redis" envPrefix:"REDIS_"`
	Events EventsConfig `yaml:"events" envPrefix:"EVENTS_"`
	SQS    SQSConfig    `yaml:"sqs" envPrefix:"SQS_"`
	OTel   OTelConfig   `yaml:"otel" envPrefix:"OTEL_"`
}

type StoreConfig struct {
	// Driver is one of memory, postgres or sqlite.
	Driver string `yaml:"driver" env:"DRIVER"`
	// DSN is a connection string for postgres or a file path for sqlite.
	DSN string `yaml:"dsn" env:"DSN"`
}

type CacheConfig struct {
	// Driver is one of none, memory or redis.
	Driver string        `yaml:"driver" env:"DRIVER"`
	TTL    time.Duration `yaml:"ttl" env:"TTL"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

type EventsConfig struct {
	// Driver is one of none, memory, redis or sqs.
	Driver             string        `yaml:"driver" env:"DRIVER"`
	Stream             string        `yaml:"stream" env:"STREAM"`
	MaxLen             int64         `yaml:"max_len" env:"MAX_LEN"`
	NotificationStream string        `yaml:"notification_stream" env:"NOTIFICATION_STREAM"`
	ConsumerGroup      string        `yaml:"consumer_group" env:"CONSUMER_GROUP"`
	ConsumerName       string        `yaml:"consumer_name" env:"CONSUMER_NAME"`
	Block              time.Duration `yaml:"block" env:"BLOCK"`
	DedupTTL           time.Duration `yaml:"dedup_ttl" env:"DEDUP_TTL"`
}

type SQSConfig struct {
	QueueURL string `yaml:"queue_url" env:"QUEUE_URL"`
	Region   string `yaml:"region" env:"REGION"`
}

type OTelConfig struct {
	// Endpoint is an OTLP/HTTP URL. Tracing is off when it is empty.
	Endpoint    string `yaml:"endpoint" env:"ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`

	// SampleRatio is the fraction of new root traces recorded, in [0, 1].
	SampleRatio float64 `yaml:"sample_ratio" env:"SAMPLE_RATIO"`

	// Headers are sent with every export, e.g. collector credentials.
	Headers map[string]string `yaml:"headers" env:"HEADERS"`
}

// Default returns a configuration that runs entirely in memory.
func Default() Config {
	host, _ := os.Hostname()
	if host == "" {
		host = "textrpg"
	}
	return Config{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "json",
		Store:     StoreConfig{Driver: "memory"},
		Cache:     CacheConfig{Driver: "memory", TTL: time.Hour},
		Redis:     RedisConfig{Addr: "localhost:6379"},
		Events: EventsConfig{
			Driver:             "none",
			Stream:             "character-events",
			NotificationStream: "character-notifications",
			ConsumerGroup:      "notifier",
			ConsumerName:       host,
			Block:              5 * time.Second,
			DedupTTL:           24 * time.Hour,
		},
		OTel: OTelConfig{ServiceName: "textrpg", SampleRatio: 1},
	}
}

// Load builds the configuration. An empty path skips the YAML file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown drivers and missing driver settings.
func (c Config) Validate() error {
	var errs []error
	oneOf := func(field, v string, allowed ...string) {
		for _, a := range allowed {
			if v == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s must be one of %s, got %q", field, strings.Join(allowed, ", "), v))
	}

	oneOf("store.driver", c.Store.Driver, "memory", "postgres", "sqlite")
	oneOf("cache.driver", c.Cache.Driver, "none", "memory", "redis")
	oneOf("events.driver", c.Events.Driver, "none", "memory", "redis", "sqs")
	oneOf("log_format", c.LogFormat, "json", "text")
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if (c.Store.Driver == "postgres" || c.Store.Driver == "sqlite") && c.Store.DSN == "" {
		errs = append(errs, fmt.Errorf("store.dsn is required for the %s driver", c.Store.Driver))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}
	if (c.Cache.Driver == "redis" || c.Events.Driver == "redis") && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when a redis driver is selected"))
	}
	if c.Events.Driver == "redis" && c.Events.Stream == "" {
		errs = append(errs, errors.New("events.stream is required for the redis driver"))
	}
	if c.Events.Driver == "sqs" && c.SQS.QueueURL == "" {
		errs = append(errs, errors.New("sqs.queue_url is required for the sqs driver"))
	}
	if c.OTel.SampleRatio < 0 || c.OTel.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("otel.sample_ratio must be within [0, 1], got %g", c.OTel.SampleRatio))
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name onto slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// NewLogger builds the process logger described by c.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
