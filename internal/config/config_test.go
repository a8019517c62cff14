package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// TestLoadConfigDefaults tests that a missing file falls back to defaults.
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "http://localhost:5000", cfg.Remote.URL)
	assert.Equal(t, 10*time.Second, cfg.Remote.Retry.MaxElapsed)
	assert.Equal(t, 200*time.Millisecond, cfg.Remote.Retry.InitialInterval)
	assert.Zero(t, cfg.Backtest.Timeout)
	assert.Equal(t, "AAPL", cfg.Backtest.DefaultTicker)
	assert.Equal(t, 20, cfg.Backtest.DefaultMAPeriod)
	assert.Equal(t, 14, cfg.Backtest.RSIPeriod)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "strategy-events", cfg.Kafka.Topics.StrategyEvents)
	assert.Equal(t, "backtest-events", cfg.Kafka.Topics.BacktestEvents)
	assert.Equal(t, "info", cfg.Logging.Level)
}

// TestLoadConfigFile tests values read from YAML.
func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
remote:
  url: http://strategies.internal:5000
  timeout: 30s
  serviceKey: catalog-key
  retry:
    maxElapsed: 2s
backtest:
  timeout: 45s
  defaultTicker: MSFT
  defaultMAPeriod: 50
kafka:
  brokers: kafka-1:9092,kafka-2:9092
  topics:
    strategyEvents: catalog.strategies
logging:
  level: debug
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "http://strategies.internal:5000", cfg.Remote.URL)
	assert.Equal(t, 30*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, "catalog-key", cfg.Remote.ServiceKey)
	assert.Equal(t, 2*time.Second, cfg.Remote.Retry.MaxElapsed)
	assert.Equal(t, 45*time.Second, cfg.Backtest.Timeout)
	assert.Equal(t, "MSFT", cfg.Backtest.DefaultTicker)
	assert.Equal(t, 50, cfg.Backtest.DefaultMAPeriod)
	assert.Equal(t, "kafka-1:9092,kafka-2:9092", cfg.Kafka.Brokers)
	assert.Equal(t, "catalog.strategies", cfg.Kafka.Topics.StrategyEvents)
	assert.Equal(t, "backtest-events", cfg.Kafka.Topics.BacktestEvents)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

// TestLoadConfigEnvOverride tests CATALOG_ prefixed environment variables.
func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, "remote:\n  url: http://from-file:5000\n")
	t.Setenv("CATALOG_REMOTE_URL", "http://from-env:5000")
	t.Setenv("CATALOG_BACKTEST_DEFAULTTICKER", "TSLA")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:5000", cfg.Remote.URL)
	assert.Equal(t, "TSLA", cfg.Backtest.DefaultTicker)
}

// TestLoadConfigRejectsInvalidValues tests struct validation of the result.
func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad url", content: "remote:\n  url: not a url\n"},
		{name: "bad level", content: "logging:\n  level: loud\n"},
		{name: "bad period", content: "backtest:\n  defaultMAPeriod: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

// TestLoadConfigMalformedFile tests that a present but broken file fails.
func TestLoadConfigMalformedFile(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "server: [unclosed\n"))
	assert.Error(t, err)
}
