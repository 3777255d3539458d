// Package config loads cflow settings from a YAML or JSON file and the
// environment. Flags applied by the CLI take precedence over both.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/constraintflow/pkg/compiler"
	"github.com/aretw0/constraintflow/pkg/monitor"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the file read when no --config flag is given.
const DefaultPath = "cflow.yaml"

// Store drivers.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreBolt   = "bolt"
	StoreFile   = "file"
)

// Environment variables overriding file values.
const (
	EnvBackendURL = "BACKEND_URL"
	EnvListen     = "CFLOW_LISTEN"
	EnvRedisAddr  = "CFLOW_REDIS_ADDR"
	EnvLogLevel   = "CFLOW_LOG_LEVEL"
	EnvStore      = "CFLOW_STORE"
	EnvMQTTBroker = "CFLOW_MQTT_BROKER"
)

// Config is the full runtime configuration.
type Config struct {
	LogLevel  string        `mapstructure:"log_level"`
	Listen    string        `mapstructure:"listen"`
	SessionID string        `mapstructure:"session_id"`
	Backend   BackendConfig `mapstructure:"backend"`
	Store     StoreConfig   `mapstructure:"store"`
	Redis     RedisConfig   `mapstructure:"redis"`
	MQTT      MQTTConfig    `mapstructure:"mqtt"`
	Metrics   bool          `mapstructure:"metrics"`
}

// BackendConfig locates the compiler service.
type BackendConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StoreConfig selects where cursors and compiled automata are kept.
type StoreConfig struct {
	Driver string        `mapstructure:"driver"`
	Path   string        `mapstructure:"path"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// RedisConfig configures the Redis store, compile lock and event relay.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	Publish  bool          `mapstructure:"publish"`
	Relay    []string      `mapstructure:"relay"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// MQTTConfig configures the MQTT event publisher. An empty broker disables it.
type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Prefix   string `mapstructure:"prefix"`
	QoS      byte   `mapstructure:"qos"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		Listen:    ":8080",
		SessionID: monitor.DefaultSessionID,
		Backend: BackendConfig{
			URL:     compiler.DefaultBackendURL,
			Timeout: 30 * time.Second,
		},
		Store: StoreConfig{Driver: StoreMemory},
		MQTT:  MQTTConfig{ClientID: "cflow", Prefix: "cflow/"},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing DefaultPath is not an error; any other missing file is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultPath {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}

	raw := map[string]any{}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &raw)
	} else {
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return c.Decode(raw)
}

// Decode merges raw onto c. Durations accept Go syntax ("30s") and
// scalars are weakly typed.
func (c *Config) Decode(raw map[string]any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	relay := c.Redis.Relay[:0]
	for _, t := range c.Redis.Relay {
		if t = strings.TrimSpace(t); t != "" {
			relay = append(relay, t)
		}
	}
	c.Redis.Relay = relay
	return nil
}

// ApplyEnv overrides fields from the environment through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(EnvBackendURL, &c.Backend.URL)
	set(EnvListen, &c.Listen)
	set(EnvRedisAddr, &c.Redis.Addr)
	set(EnvLogLevel, &c.LogLevel)
	set(EnvStore, &c.Store.Driver)
	set(EnvMQTTBroker, &c.MQTT.Broker)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return errors.New("backend url is required")
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis store requires redis.addr")
		}
	case StoreBolt:
		if c.Store.Path == "" {
			return errors.New("bolt store requires store.path")
		}
	case StoreFile:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("invalid mqtt qos %d", c.MQTT.QoS)
	}
	return nil
}
