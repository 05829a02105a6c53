// Package config loads server configuration from PUTMEON_* environment
// variables and an optional config.yaml in the working directory.
//
// Keys are dotted ("store.driver"); the matching environment variable
// replaces dots with underscores and adds the prefix:
//
//	store.driver        → PUTMEON_STORE_DRIVER
//	auth.session_secret → PUTMEON_AUTH_SESSION_SECRET
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"

	defaultDatabase = "putmeonDB"
	testDatabase    = "putmeonDB_test"

	minSecretLength = 16
)

// Config is the full server configuration.
type Config struct {
	Server struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	Store struct {
		Driver     string `mapstructure:"driver"`
		SQLitePath string `mapstructure:"sqlite_path"`
		MongoURI   string `mapstructure:"mongo_uri"`
		Database   string `mapstructure:"database"`
	} `mapstructure:"store"`
	Auth struct {
		SessionSecret string        `mapstructure:"session_secret"`
		SessionTTL    time.Duration `mapstructure:"session_ttl"`
	} `mapstructure:"auth"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	TestMode bool `mapstructure:"test_mode"`
}

// Load reads the configuration and validates it.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PUTMEON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.sqlite_path", "data/putmeon.db")
	v.SetDefault("store.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("store.database", "")
	v.SetDefault("auth.session_secret", "")
	v.SetDefault("auth.session_ttl", 24*time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("test_mode", false)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Store.Database == "" {
		cfg.Store.Database = defaultDatabase
		if cfg.TestMode {
			cfg.Store.Database = testDatabase
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first setting the server cannot start with.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite driver")
		}
	case DriverMongo:
		if c.Store.MongoURI == "" {
			return errors.New("store.mongo_uri is required for the mongo driver")
		}
	default:
		return fmt.Errorf("store.driver %q: want %q or %q", c.Store.Driver, DriverSQLite, DriverMongo)
	}
	if len(c.Auth.SessionSecret) < minSecretLength {
		return fmt.Errorf("auth.session_secret must be at least %d characters (set PUTMEON_AUTH_SESSION_SECRET)", minSecretLength)
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive, got %s", c.Auth.SessionTTL)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses log.level ("debug", "info", "warn", "error").
func (c Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", c.Log.Level, err)
	}
	return level, nil
}
