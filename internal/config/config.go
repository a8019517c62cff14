package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yourorg/strategy-catalog/internal/validator"
)

// EnvPrefix prefixes environment overrides, e.g. CATALOG_REMOTE_URL
const EnvPrefix = "CATALOG"

// Config holds all configuration for the service
type Config struct {
	Server   ServerConfig
	Remote   RemoteConfig
	Backtest BacktestConfig
	Kafka    KafkaConfig
	Logging  LoggingConfig
}

// ServerConfig holds server specific configuration
type ServerConfig struct {
	Port         string        `validate:"required"`
	ReadTimeout  time.Duration `validate:"gte=0"`
	WriteTimeout time.Duration `validate:"gte=0"`
	IdleTimeout  time.Duration `validate:"gte=0"`
}

// RemoteConfig holds configuration for the remote strategy service
type RemoteConfig struct {
	URL        string        `validate:"required,url"`
	Timeout    time.Duration `validate:"gte=0"`
	ServiceKey string
	// JWTSecret enables bearer tokens on remote requests when set
	JWTSecret string
	TokenTTL  time.Duration `validate:"gte=0"`
	Retry     RetryConfig
}

// RetryConfig bounds retries of idempotent remote reads
type RetryConfig struct {
	MaxElapsed      time.Duration `validate:"gte=0"`
	InitialInterval time.Duration `validate:"gte=0"`
}

// BacktestConfig holds backtest request defaults
type BacktestConfig struct {
	// Timeout bounds one backtest request; zero means no internal timeout
	Timeout         time.Duration `validate:"gte=0"`
	DefaultTicker   string        `validate:"required"`
	DefaultMAPeriod int           `validate:"gte=1"`
	RSIPeriod       int           `validate:"gte=1"`
}

// KafkaConfig holds Kafka specific configuration
type KafkaConfig struct {
	// Brokers is a comma separated list; empty disables event publishing
	Brokers  string
	ClientID string
	Topics   TopicsConfig
}

// TopicsConfig names the event topics
type TopicsConfig struct {
	StrategyEvents string `validate:"required"`
	BacktestEvents string `validate:"required"`
}

// LoggingConfig holds logging specific configuration
type LoggingConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string
}

// LoadConfig loads the configuration from file and environment variables.
// A missing file is not an error; defaults and the environment apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Environment variables override
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.ValidateStruct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "10s")
	v.SetDefault("server.idleTimeout", "120s")

	// Remote service defaults
	v.SetDefault("remote.url", "http://localhost:5000")
	v.SetDefault("remote.timeout", "120s")
	v.SetDefault("remote.serviceKey", "")
	v.SetDefault("remote.jwtSecret", "")
	v.SetDefault("remote.tokenTTL", "5m")
	v.SetDefault("remote.retry.maxElapsed", "10s")
	v.SetDefault("remote.retry.initialInterval", "200ms")

	// Backtest defaults
	v.SetDefault("backtest.timeout", "0s")
	v.SetDefault("backtest.defaultTicker", "AAPL")
	v.SetDefault("backtest.defaultMAPeriod", 20)
	v.SetDefault("backtest.rsiPeriod", 14)

	// Kafka defaults
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.clientID", "strategy-catalog")
	v.SetDefault("kafka.topics.strategyEvents", "strategy-events")
	v.SetDefault("kafka.topics.backtestEvents", "backtest-events")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
