package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/tinywideclouds/go-apns-dispatcher/apns"
	"github.com/tinywideclouds/go-apns-dispatcher/pkg/signer"
)

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	Environment    string          `yaml:"environment"`
	KeyID          string          `yaml:"key_id"`
	TeamID         string          `yaml:"team_id"`
	BundleID       string          `yaml:"bundle_id"`
	PrivateKey     string          `yaml:"private_key"`
	PrivateKeyFile string          `yaml:"private_key_file"`
	Timeout        string          `yaml:"timeout"`
	TokenRefresh   string          `yaml:"token_refresh"`
	TokenEncoding  string          `yaml:"token_encoding"`
	RedisConfig    YamlRedisConfig `yaml:"redis"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	env, err := apns.ParseEnvironment(baseCfg.Environment)
	if err != nil {
		return nil, err
	}
	timeout, err := parseDuration(baseCfg.Timeout, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout: %w", err)
	}
	refresh, err := parseDuration(baseCfg.TokenRefresh, apns.DefaultTokenRefresh)
	if err != nil {
		return nil, fmt.Errorf("invalid token_refresh: %w", err)
	}
	encoding, err := signer.ParseEncoding(baseCfg.TokenEncoding)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment:   env,
		KeyID:         baseCfg.KeyID,
		TeamID:        baseCfg.TeamID,
		BundleID:      baseCfg.BundleID,
		PrivateKey:    baseCfg.PrivateKey,
		Timeout:       timeout,
		TokenRefresh:  refresh,
		TokenEncoding: encoding,
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
		},
	}

	if cfg.PrivateKey == "" && baseCfg.PrivateKeyFile != "" {
		if err := cfg.loadPrivateKeyFile(baseCfg.PrivateKeyFile); err != nil {
			return nil, err
		}
	}

	logger.Debug("YAML config mapping complete",
		"environment", cfg.Environment.String(),
		"key_id", cfg.KeyID,
		"bundle_id", cfg.BundleID,
	)

	return cfg, nil
}

func (c *Config) loadPrivateKeyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	c.PrivateKey = string(b)
	return nil
}

// parseDuration reads a Go duration. "" yields def; "never" and "0" yield 0.
func parseDuration(s string, def time.Duration) (time.Duration, error) {
	switch strings.TrimSpace(s) {
	case "":
		return def, nil
	case "0", "never":
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}
