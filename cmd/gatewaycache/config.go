package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/illmade-knight/go-gatewaycache/pkg/cache"
	"github.com/illmade-knight/go-gatewaycache/pkg/messagepipeline"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
	"go.uber.org/multierr"
)

// Frame sources.
const (
	SourcePubsub = "pubsub"
	SourceFile   = "file"
)

// Cache backends.
const (
	BackendMemory    = "memory"
	BackendRedis     = "redis"
	BackendFirestore = "firestore"
)

// Config is the daemon configuration, read from YAML and overridden by flags.
type Config struct {
	Log      LogConfig                              `yaml:"log"`
	HTTP     HTTPConfig                             `yaml:"http"`
	Pipeline messagepipeline.StreamingServiceConfig `yaml:"pipeline"`
	Source   SourceConfig                           `yaml:"source"`
	Cache    CacheConfig                            `yaml:"cache"`
	// ShutdownTimeout bounds the graceful stop after a signal.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// Pretty switches to human-readable console output.
	Pretty bool `yaml:"pretty"`
}

type HTTPConfig struct {
	Port string `yaml:"port"`
}

// SourceConfig selects where gateway frames come from.
type SourceConfig struct {
	Type   string                                     `yaml:"type"`
	File   string                                     `yaml:"file"`
	Pubsub messagepipeline.GooglePubsubConsumerConfig `yaml:"pubsub"`
}

// CacheConfig selects the entity cache backend.
type CacheConfig struct {
	Backend string `yaml:"backend"`
	// LRUSize bounds an in-memory front per table. Zero disables the front.
	LRUSize   int                   `yaml:"lru_size"`
	Redis     cache.RedisConfig     `yaml:"redis"`
	Firestore cache.FirestoreConfig `yaml:"firestore"`
}

// DefaultConfig reads from Pub/Sub and caches in memory. The subscription must still be configured.
func DefaultConfig() *Config {
	return &Config{
		Log:  LogConfig{Level: "info"},
		HTTP: HTTPConfig{Port: ":8080"},
		Pipeline: messagepipeline.StreamingServiceConfig{
			NumWorkers:     8,
			HandlerTimeout: 10 * time.Second,
		},
		Source: SourceConfig{
			Type:   SourcePubsub,
			Pubsub: *messagepipeline.NewGooglePubsubConsumerDefaults(""),
		},
		Cache: CacheConfig{
			Backend: BackendMemory,
			Redis: cache.RedisConfig{
				Addr:      "localhost:6379",
				CacheTTL:  24 * time.Hour,
				KeyPrefix: "gateway:",
			},
			Firestore: cache.FirestoreConfig{CollectionPrefix: "gateway-"},
		},
		ShutdownTimeout: 15 * time.Second,
	}
}

// LoadConfig reads path over the defaults. An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// parseFlags loads the config file named by --config and applies the
// remaining flags on top of it. Only flags set explicitly override the file.
func parseFlags(args []string) (*Config, error) {
	fs := flag.NewFlagSet("gatewaycache", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	logLevel := fs.String("log-level", "", "log level (trace, debug, info, warn, error)")
	httpPort := fs.String("http-port", "", "listen address of the probe server, e.g. :8080")
	backend := fs.String("cache-backend", "", "cache backend: memory, redis or firestore")
	replayFile := fs.String("replay-file", "", "replay newline-delimited frames from this file instead of Pub/Sub")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return nil, err
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}
	if fs.Changed("http-port") {
		cfg.HTTP.Port = *httpPort
	}
	if fs.Changed("cache-backend") {
		cfg.Cache.Backend = *backend
	}
	if fs.Changed("replay-file") {
		cfg.Source.Type = SourceFile
		cfg.Source.File = *replayFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem found in the configuration.
func (c *Config) Validate() error {
	var errs []error
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.HTTP.Port == "" {
		errs = append(errs, errors.New("http.port is required"))
	}
	if c.Pipeline.NumWorkers <= 0 {
		errs = append(errs, errors.New("pipeline.workers must be positive"))
	}
	if c.Pipeline.HandlerTimeout < 0 {
		errs = append(errs, errors.New("pipeline.handler_timeout cannot be negative"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}

	switch c.Source.Type {
	case SourcePubsub:
		if c.Source.Pubsub.ProjectID == "" {
			errs = append(errs, errors.New("source.pubsub.project_id is required"))
		}
		if c.Source.Pubsub.SubscriptionID == "" {
			errs = append(errs, errors.New("source.pubsub.subscription_id is required"))
		}
	case SourceFile:
		if c.Source.File == "" {
			errs = append(errs, errors.New("source.file is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("source.type %q is not one of pubsub, file", c.Source.Type))
	}

	switch c.Cache.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Cache.Redis.Addr == "" {
			errs = append(errs, errors.New("cache.redis.addr is required"))
		}
		if c.Cache.Redis.CacheTTL < 0 {
			errs = append(errs, errors.New("cache.redis.ttl cannot be negative"))
		}
	case BackendFirestore:
		if c.Cache.Firestore.ProjectID == "" {
			errs = append(errs, errors.New("cache.firestore.project_id is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not one of memory, redis, firestore", c.Cache.Backend))
	}
	if c.Cache.LRUSize < 0 {
		errs = append(errs, errors.New("cache.lru_size cannot be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", multierr.Combine(errs...))
	}
	return nil
}
