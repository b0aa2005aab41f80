package config_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-apns-dispatcher/apns"
	"github.com/tinywideclouds/go-apns-dispatcher/apns/config"
	"github.com/tinywideclouds/go-apns-dispatcher/pkg/signer"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestKey(t *testing.T) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(der)
}

func TestUpdateConfigWithEnvOverrides(t *testing.T) {
	logger := newTestLogger()
	baseKey := newTestKey(t)

	baseConfig := func() *config.Config {
		return &config.Config{
			Environment:  apns.Development,
			KeyID:        "ABC123DEFG",
			TeamID:       "DEF123GHIJ",
			BundleID:     "com.example.app",
			PrivateKey:   baseKey,
			TokenRefresh: apns.DefaultTokenRefresh,
		}
	}

	t.Run("Success - All overrides applied", func(t *testing.T) {
		cfg := baseConfig()
		envKey := newTestKey(t)

		t.Setenv("APNS_ENVIRONMENT", "production")
		t.Setenv("APNS_KEY_ID", "KEY0000001")
		t.Setenv("APNS_TEAM_ID", "TEAM000001")
		t.Setenv("APNS_TOPIC", "com.example.other")
		t.Setenv("APNS_PRIVATE_KEY", envKey)
		t.Setenv("APNS_TIMEOUT", "15s")
		t.Setenv("APNS_TOKEN_REFRESH", "never")
		t.Setenv("APNS_TOKEN_ENCODING", "std")
		t.Setenv("REDIS_ADDR", "localhost:6379")
		t.Setenv("REDIS_DB", "3")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, apns.Production, finalCfg.Environment)
		assert.Equal(t, "KEY0000001", finalCfg.KeyID)
		assert.Equal(t, "TEAM000001", finalCfg.TeamID)
		assert.Equal(t, "com.example.other", finalCfg.BundleID)
		assert.Equal(t, envKey, finalCfg.PrivateKey)
		assert.Equal(t, 15*time.Second, finalCfg.Timeout)
		assert.Zero(t, finalCfg.TokenRefresh)
		assert.Equal(t, signer.StdEncoding, finalCfg.TokenEncoding)

		assert.True(t, finalCfg.Redis.Enabled)
		assert.Equal(t, "localhost:6379", finalCfg.Redis.Addr)
		assert.Equal(t, 3, finalCfg.Redis.DB)
	})

	t.Run("Success - Defaults preserved", func(t *testing.T) {
		finalCfg, err := config.UpdateConfigWithEnvOverrides(baseConfig(), logger)
		require.NoError(t, err)

		assert.Equal(t, apns.Development, finalCfg.Environment)
		assert.Equal(t, "ABC123DEFG", finalCfg.KeyID)
		assert.Equal(t, apns.DefaultTokenRefresh, finalCfg.TokenRefresh)
		assert.False(t, finalCfg.Redis.Enabled)
	})

	t.Run("Private key file", func(t *testing.T) {
		path := t.TempDir() + "/AuthKey.p8"
		require.NoError(t, writeFile(path, baseKey))
		cfg := baseConfig()
		cfg.PrivateKey = ""
		t.Setenv("APNS_PRIVATE_KEY_FILE", path)

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)
		assert.Equal(t, baseKey, finalCfg.PrivateKey)
	})

	t.Run("Redis explicitly disabled", func(t *testing.T) {
		t.Setenv("REDIS_ADDR", "localhost:6379")
		t.Setenv("REDIS_ENABLED", "false")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(baseConfig(), logger)
		require.NoError(t, err)
		assert.False(t, finalCfg.Redis.Enabled)
	})

	testCases := []struct {
		name   string
		mutate func(*config.Config)
		env    map[string]string
	}{
		{name: "Short key id", mutate: func(c *config.Config) { c.KeyID = "ABC" }},
		{name: "Missing team id", mutate: func(c *config.Config) { c.TeamID = "" }},
		{name: "Missing bundle id", mutate: func(c *config.Config) { c.BundleID = "" }},
		{name: "Missing private key", mutate: func(c *config.Config) { c.PrivateKey = "" }},
		{name: "Garbage private key", mutate: func(c *config.Config) { c.PrivateKey = "not a key" }},
		{name: "Redis enabled without addr", mutate: func(c *config.Config) { c.Redis.Enabled = true }},
		{name: "Bad environment", env: map[string]string{"APNS_ENVIRONMENT": "staging"}},
		{name: "Bad timeout", env: map[string]string{"APNS_TIMEOUT": "soon"}},
		{name: "Bad encoding", env: map[string]string{"APNS_TOKEN_ENCODING": "hex"}},
		{name: "Unreadable key file", mutate: func(c *config.Config) { c.PrivateKey = "" },
			env: map[string]string{"APNS_PRIVATE_KEY_FILE": "/nonexistent/AuthKey.p8"}},
	}
	for _, tc := range testCases {
		t.Run("Validation Failure - "+tc.name, func(t *testing.T) {
			cfg := baseConfig()
			if tc.mutate != nil {
				tc.mutate(cfg)
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
			assert.Error(t, err)
		})
	}
}

func TestConfig_DispatcherConfig(t *testing.T) {
	cfg := &config.Config{
		Environment: apns.Development,
		KeyID:       "ABC123DEFG",
		TeamID:      "DEF123GHIJ",
		BundleID:    "com.example.app",
		PrivateKey:  "key",
	}

	assert.Equal(t, apns.Config{
		Environment:  apns.Development,
		KeyID:        "ABC123DEFG",
		TeamID:       "DEF123GHIJ",
		BundleID:     "com.example.app",
		P8KeyContent: "key",
	}, cfg.DispatcherConfig())
	assert.Len(t, cfg.DispatcherOptions(), 3)
}
