package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/tinywideclouds/go-apns-dispatcher/apns"
	"github.com/tinywideclouds/go-apns-dispatcher/pkg/signer"
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	Environment apns.Environment
	KeyID       string
	TeamID      string
	BundleID    string
	PrivateKey  string

	Timeout       time.Duration
	TokenRefresh  time.Duration
	TokenEncoding signer.Encoding

	Redis RedisConfig
}

// DispatcherConfig returns the credentials part for apns.New.
func (c *Config) DispatcherConfig() apns.Config {
	return apns.Config{
		Environment:  c.Environment,
		KeyID:        c.KeyID,
		TeamID:       c.TeamID,
		BundleID:     c.BundleID,
		P8KeyContent: c.PrivateKey,
	}
}

// DispatcherOptions returns the tuning part for apns.New.
func (c *Config) DispatcherOptions() []apns.Option {
	return []apns.Option{
		apns.WithTimeout(c.Timeout),
		apns.WithTokenRefresh(c.TokenRefresh),
		apns.WithTokenEncoding(c.TokenEncoding),
	}
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	if val := os.Getenv("APNS_ENVIRONMENT"); val != "" {
		env, err := apns.ParseEnvironment(val)
		if err != nil {
			return nil, err
		}
		logger.Debug("Overriding config value", "key", "APNS_ENVIRONMENT", "source", "env")
		cfg.Environment = env
	}
	if val := os.Getenv("APNS_KEY_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "APNS_KEY_ID", "source", "env")
		cfg.KeyID = val
	}
	if val := os.Getenv("APNS_TEAM_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "APNS_TEAM_ID", "source", "env")
		cfg.TeamID = val
	}
	if val := os.Getenv("APNS_TOPIC"); val != "" {
		logger.Debug("Overriding config value", "key", "APNS_TOPIC", "source", "env")
		cfg.BundleID = val
	}
	if val := os.Getenv("APNS_PRIVATE_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "APNS_PRIVATE_KEY", "source", "env")
		cfg.PrivateKey = val
	} else if val := os.Getenv("APNS_PRIVATE_KEY_FILE"); val != "" {
		logger.Debug("Overriding config value", "key", "APNS_PRIVATE_KEY_FILE", "source", "env")
		if err := cfg.loadPrivateKeyFile(val); err != nil {
			return nil, err
		}
	}
	if val := os.Getenv("APNS_TIMEOUT"); val != "" {
		d, err := parseDuration(val, 0)
		if err != nil {
			return nil, fmt.Errorf("invalid APNS_TIMEOUT: %w", err)
		}
		logger.Debug("Overriding config value", "key", "APNS_TIMEOUT", "source", "env")
		cfg.Timeout = d
	}
	if val := os.Getenv("APNS_TOKEN_REFRESH"); val != "" {
		d, err := parseDuration(val, apns.DefaultTokenRefresh)
		if err != nil {
			return nil, fmt.Errorf("invalid APNS_TOKEN_REFRESH: %w", err)
		}
		logger.Debug("Overriding config value", "key", "APNS_TOKEN_REFRESH", "source", "env")
		cfg.TokenRefresh = d
	}
	if val := os.Getenv("APNS_TOKEN_ENCODING"); val != "" {
		enc, err := signer.ParseEncoding(val)
		if err != nil {
			return nil, err
		}
		logger.Debug("Overriding config value", "key", "APNS_TOKEN_ENCODING", "source", "env")
		cfg.TokenEncoding = enc
	}

	// Redis Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}

	// 2. Final Validation
	if len(cfg.KeyID) != 10 {
		return nil, fmt.Errorf("key_id must be 10 characters (set via YAML or APNS_KEY_ID env var)")
	}
	if len(cfg.TeamID) != 10 {
		return nil, fmt.Errorf("team_id must be 10 characters (set via YAML or APNS_TEAM_ID env var)")
	}
	if cfg.BundleID == "" {
		return nil, fmt.Errorf("bundle_id is required (set via YAML or APNS_TOPIC env var)")
	}
	// Parse the key now to fail fast on startup if credentials are bad.
	if _, err := signer.ParsePrivateKey(cfg.PrivateKey); err != nil {
		return nil, fmt.Errorf("failed to parse APNs P8 key: %w", err)
	}
	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis.addr is required when redis is enabled")
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}
