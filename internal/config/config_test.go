package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func noEnv(string) (string, bool) { return "", false }

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "http://localhost:8000", cfg.Backend.URL)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, "default", cfg.SessionID)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "cflow.yaml", `
log_level: debug
listen: ":9090"
backend:
  url: http://compiler:8000
  timeout: 5s
store:
  driver: bolt
  path: /var/lib/cflow.db
redis:
  addr: localhost:6379
  db: "2"
  relay: tokenSimulation.simulator.trace, tokenSimulation.playSimulation
  lock_ttl: 1m
mqtt:
  broker: tcp://localhost:1883
  qos: 1
metrics: true
`)
	cfg := Default()
	require.NoError(t, cfg.readFile(path))

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "http://compiler:8000", cfg.Backend.URL)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, StoreBolt, cfg.Store.Driver)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, []string{"tokenSimulation.simulator.trace", "tokenSimulation.playSimulation"}, cfg.Redis.Relay)
	assert.Equal(t, time.Minute, cfg.Redis.LockTTL)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.True(t, cfg.Metrics)

	// Untouched keys keep their defaults.
	assert.Equal(t, "cflow", cfg.MQTT.ClientID)
	assert.Equal(t, "default", cfg.SessionID)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "cflow.json", `{"backend": {"url": "http://other:1"}, "store": {"driver": "redis"}, "redis": {"addr": "r:6379"}}`)
	cfg := Default()
	require.NoError(t, cfg.readFile(path))
	assert.Equal(t, "http://other:1", cfg.Backend.URL)
	assert.Equal(t, StoreRedis, cfg.Store.Driver)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "backend: [unclosed"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "unknown.yaml", "bogus: true"))
	assert.ErrorContains(t, err, "invalid config")

	_, err = Load(writeFile(t, "timeout.yaml", "backend:\n  timeout: soon"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvBackendURL: "http://env:8000",
		EnvListen:     ":1234",
		EnvRedisAddr:  "redis:6379",
		EnvLogLevel:   "warn",
		EnvStore:      StoreRedis,
		EnvMQTTBroker: "",
	}
	cfg := Default()
	cfg.MQTT.Broker = "tcp://file:1883"
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, "http://env:8000", cfg.Backend.URL)
	assert.Equal(t, ":1234", cfg.Listen)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, StoreRedis, cfg.Store.Driver)
	assert.Equal(t, "tcp://file:1883", cfg.MQTT.Broker, "empty values do not override")
	assert.NoError(t, cfg.Validate())

	unchanged := Default()
	unchanged.ApplyEnv(noEnv)
	assert.Equal(t, Default(), unchanged)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"empty backend", func(c *Config) { c.Backend.URL = "" }, false},
		{"redis without addr", func(c *Config) { c.Store.Driver = StoreRedis }, false},
		{"bolt without path", func(c *Config) { c.Store.Driver = StoreBolt }, false},
		{"bolt with path", func(c *Config) { c.Store.Driver = StoreBolt; c.Store.Path = "x.db" }, true},
		{"file without path", func(c *Config) { c.Store.Driver = StoreFile }, true},
		{"unknown driver", func(c *Config) { c.Store.Driver = "etcd" }, false},
		{"bad qos", func(c *Config) { c.MQTT.QoS = 3 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if tc.ok {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}
