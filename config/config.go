// Package config loads the Event Store configuration from a YAML file,
// overridden by EVENTSTORE_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/get-eventually/go-eventstore"
	"github.com/get-eventually/go-eventstore/stream"
)

// EnvPrefix is the prefix of the environment variables overriding the file values.
const EnvPrefix = "EVENTSTORE"

// Supported Event Store backends.
const (
	BackendInMemory  = "inmemory"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
)

// Supported fallback strategies for Aggregate types missing from the stream map.
const (
	FallbackVerbatim = "verbatim"
	FallbackPrefixed = "prefixed"
	FallbackNone     = "none"
)

// Config represents the application configuration.
type Config struct {
	EventStore EventStoreConfig `yaml:"event_store" envconfig:"STORE"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// EventStoreConfig holds the Event Store backend and stream routing settings.
type EventStoreConfig struct {
	Backend   string          `yaml:"backend"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Firestore FirestoreConfig `yaml:"firestore"`
	StreamMap StreamMap       `yaml:"aggregate_type_stream_map" ignored:"true"`
	Fallback  FallbackConfig  `yaml:"fallback"`
}

// PostgresConfig holds the postgres backend settings.
type PostgresConfig struct {
	DSN           string `yaml:"dsn"`
	NotifyChannel string `yaml:"notify_channel" split_words:"true"`
}

// FirestoreConfig holds the firestore backend settings.
type FirestoreConfig struct {
	ProjectID string `yaml:"project_id" split_words:"true"`
}

// FallbackConfig selects how unmapped Aggregate types are routed.
type FallbackConfig struct {
	Strategy string `yaml:"strategy"`
	Prefix   string `yaml:"prefix"`
}

// LoggingConfig holds the logger settings.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// StreamMap is the ordered list of Aggregate type to stream routes,
// in the same order as they appear in the configuration file.
type StreamMap []stream.Route

// UnmarshalYAML decodes a YAML mapping, keeping the order of its keys.
func (sm *StreamMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("config.StreamMap: line %d: expected a mapping of aggregate types to streams", node.Line)
	}

	routes := make(StreamMap, 0, len(node.Content)/2)

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]

		if key.Kind != yaml.ScalarNode || value.Kind != yaml.ScalarNode {
			return fmt.Errorf("config.StreamMap: line %d: aggregate type and stream must be strings", key.Line)
		}

		routes = append(routes, stream.Route{AggregateType: key.Value, Stream: value.Value})
	}

	*sm = routes

	return nil
}

func defaults() *Config {
	return &Config{
		EventStore: EventStoreConfig{
			Backend:  BackendInMemory,
			Fallback: FallbackConfig{Strategy: FallbackVerbatim},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("config.Load: failed to read config file, %w", err)
	}

	return Parse(data)
}

// Parse decodes the YAML configuration, applies the environment overrides
// and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config.Parse: failed to parse config, %v, %w", err, eventstore.ErrInvalidArgument)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("config.Parse: failed to parse from env, %v, %w", err, eventstore.ErrInvalidArgument)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Parse: invalid config, %w", err)
	}

	return cfg, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s, %w", fmt.Sprintf(format, args...), eventstore.ErrInvalidArgument)
}

func (c *Config) validate() error {
	switch c.EventStore.Backend {
	case BackendInMemory:
	case BackendPostgres:
		if c.EventStore.Postgres.DSN == "" {
			return invalid("postgres backend requires event_store.postgres.dsn")
		}
	case BackendFirestore:
		if c.EventStore.Firestore.ProjectID == "" {
			return invalid("firestore backend requires event_store.firestore.project_id")
		}
	default:
		return invalid("unsupported backend %q", c.EventStore.Backend)
	}

	if _, err := c.fallback(); err != nil {
		return err
	}

	if _, err := stream.NewMapping(c.EventStore.StreamMap...); err != nil {
		return err
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return invalid("unsupported logging level %q", c.Logging.Level)
	}

	return nil
}

func (c *Config) fallback() (stream.Fallback, error) {
	switch fallback := c.EventStore.Fallback; fallback.Strategy {
	case FallbackVerbatim:
		return stream.Verbatim{}, nil
	case FallbackPrefixed:
		if fallback.Prefix == "" {
			return nil, invalid("prefixed fallback requires event_store.fallback.prefix")
		}

		return stream.Prefixed(fallback.Prefix), nil
	case FallbackNone:
		return stream.NoFallback{}, nil
	default:
		return nil, invalid("unsupported fallback strategy %q", fallback.Strategy)
	}
}

// Router builds the stream.Router out of the configured stream map and fallback.
func (c *Config) Router() (*stream.Router, error) {
	mapping, err := stream.NewMapping(c.EventStore.StreamMap...)
	if err != nil {
		return nil, fmt.Errorf("config.Router: invalid stream map, %w", err)
	}

	fallback, err := c.fallback()
	if err != nil {
		return nil, fmt.Errorf("config.Router: invalid fallback, %w", err)
	}

	return stream.NewRouter(mapping, fallback), nil
}
