// Package config loads service settings from defaults, an optional config file, a .env file
// and DONATIONS_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/damon-houk/donation-transaction-service/internal/infrastructure/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers
const (
	DriverBadger   = "badger"
	DriverSQLite   = "sqlite"
	DriverDynamoDB = "dynamodb"
)

// EnvPrefix is prepended to every environment override, e.g. DONATIONS_SERVER_PORT
const EnvPrefix = "DONATIONS"

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	CORS         CORSConfig         `mapstructure:"cors"`
	Store        StoreConfig        `mapstructure:"store"`
	Confirmation ConfirmationConfig `mapstructure:"confirmation"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr is the listen address for the HTTP server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type StoreConfig struct {
	Driver   string         `mapstructure:"driver"`
	Badger   BadgerConfig   `mapstructure:"badger"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	DynamoDB DynamoDBConfig `mapstructure:"dynamodb"`
}

type BadgerConfig struct {
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type DynamoDBConfig struct {
	Table    string `mapstructure:"table"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

type ConfirmationConfig struct {
	Delay       time.Duration `mapstructure:"delay"`
	FailureRate float64       `mapstructure:"failure_rate"`
}

// SetDefaults registers every key with its default so environment overrides are picked up
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", string(logger.InfoLevel))

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("store.driver", DriverBadger)
	v.SetDefault("store.badger.path", "./data")
	v.SetDefault("store.badger.in_memory", false)
	v.SetDefault("store.sqlite.path", "transactions.db")
	v.SetDefault("store.dynamodb.table", "donation_transactions")
	v.SetDefault("store.dynamodb.region", "us-east-1")
	v.SetDefault("store.dynamodb.endpoint", "")

	v.SetDefault("confirmation.delay", 2*time.Second)
	v.SetDefault("confirmation.failure_rate", 0.0)
}

// Load reads the configuration. configFile may be empty, in which case config.yaml is looked
// up in the working directory and silently skipped when absent.
func Load(configFile string) (*Config, error) {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates the settings held by v
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Lists from the environment are comma separated and may carry spaces
	cfg.CORS.AllowedOrigins = splitList(strings.Join(cfg.CORS.AllowedOrigins, ","))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the service cannot start with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}

	switch c.Store.Driver {
	case DriverBadger, DriverSQLite, DriverDynamoDB:
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	if c.Store.Driver == DriverDynamoDB && c.Store.DynamoDB.Table == "" {
		return errors.New("store.dynamodb.table is required")
	}

	if c.Confirmation.Delay < 0 {
		return fmt.Errorf("invalid confirmation.delay %s", c.Confirmation.Delay)
	}

	if c.Confirmation.FailureRate < 0 || c.Confirmation.FailureRate > 1 {
		return fmt.Errorf("confirmation.failure_rate must be within [0,1], got %v", c.Confirmation.FailureRate)
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
