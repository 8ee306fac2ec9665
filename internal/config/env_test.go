// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_AllFields(t *testing.T) {
	// Arrange
	envVars := map[string]string{
		"CONFIG": "/path/to/config.json",

		"APP_KEYSTORE_DIR": "/var/lib/umilog",
		"APP_KEY_SERVICE":  "umilog.sync",
		"APP_KEY_ACCOUNT":  "diver@example.com",

		// Storage has nested prefixes: STORAGE_ + DB_
		"STORAGE_DB_DSN": "/var/lib/umilog/umilog.db",

		"REMOTE_BASE_URL":        "https://records.example.com",
		"REMOTE_REQUEST_TIMEOUT": "30s",
		"REMOTE_AUTH_TOKEN":      "bearer-token",

		"WORKERS_UPLOAD_INTERVAL": "45s",
		"WORKERS_PULL_INTERVAL":   "2m",
		"WORKERS_BATCH_SIZE":      "50",
		"WORKERS_MAX_RETRIES":     "7",
		"WORKERS_BASE_BACKOFF":    "10s",
		"WORKERS_LEASE_TTL":       "1m",
	}
	setEnvVars(t, envVars)

	// Act
	cfg := &Config{}
	err := parseEnv(cfg)

	// Assert
	require.NoError(t, err)

	assert.Equal(t, "/path/to/config.json", cfg.JSONFilePath)

	assert.Equal(t, "/var/lib/umilog", cfg.App.KeystoreDir)
	assert.Equal(t, "umilog.sync", cfg.App.KeyService)
	assert.Equal(t, "diver@example.com", cfg.App.KeyAccount)

	assert.Equal(t, "/var/lib/umilog/umilog.db", cfg.Storage.DB.DSN)

	assert.Equal(t, "https://records.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Remote.RequestTimeout)
	assert.Equal(t, "bearer-token", cfg.Remote.AuthToken)

	assert.Equal(t, 45*time.Second, cfg.Workers.UploadInterval)
	assert.Equal(t, 2*time.Minute, cfg.Workers.PullInterval)
	assert.Equal(t, 50, cfg.Workers.BatchSize)
	assert.Equal(t, 7, cfg.Workers.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Workers.BaseBackoff)
	assert.Equal(t, time.Minute, cfg.Workers.LeaseTTL)
}

func TestParseEnv_PartialFields(t *testing.T) {
	// Arrange
	envVars := map[string]string{
		"STORAGE_DB_DSN":  "/tmp/test.db",
		"REMOTE_BASE_URL": "https://records.example.com",
	}
	setEnvVars(t, envVars)

	// Act
	cfg := &Config{}
	err := parseEnv(cfg)

	// Assert
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test.db", cfg.Storage.DB.DSN)
	assert.Equal(t, "https://records.example.com", cfg.Remote.BaseURL)

	// Others untouched
	assert.Zero(t, cfg.Remote.RequestTimeout)
	assert.Equal(t, App{}, cfg.App)
	assert.Equal(t, Workers{}, cfg.Workers)
	assert.Empty(t, cfg.JSONFilePath)
}

func TestParseEnv_EmptyEnv(t *testing.T) {
	// Arrange
	clearEnvVars(t)

	// Act
	cfg := &Config{}
	err := parseEnv(cfg)

	// Assert
	require.NoError(t, err)

	assert.Equal(t, "", cfg.JSONFilePath)
	assert.Equal(t, App{}, cfg.App)
	assert.Equal(t, Storage{}, cfg.Storage)
	assert.Equal(t, Remote{}, cfg.Remote)
	assert.Equal(t, Workers{}, cfg.Workers)
}

func TestParseEnv_InvalidDuration(t *testing.T) {
	// Arrange
	envVars := map[string]string{
		"REMOTE_REQUEST_TIMEOUT": "invalid_duration",
	}
	setEnvVars(t, envVars)

	// Act
	cfg := &Config{}
	err := parseEnv(cfg)

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "env")
}

func TestParseEnv_DurationFormats(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected time.Duration
	}{
		{"hours", "2h", 2 * time.Hour},
		{"minutes", "45m", 45 * time.Minute},
		{"seconds", "30s", 30 * time.Second},
		{"combined", "1h30m", 90 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			envVars := map[string]string{
				"WORKERS_PULL_INTERVAL": tt.envValue,
			}
			setEnvVars(t, envVars)

			// Act
			cfg := &Config{}
			err := parseEnv(cfg)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg.Workers.PullInterval)
		})
	}
}

func TestGetServerConfig_Defaults(t *testing.T) {
	// Arrange
	clearEnvVars(t)

	// Act
	cfg, err := GetServerConfig()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Empty(t, cfg.PostgresDSN)
}

// Helpers

func setEnvVars(t *testing.T, vars map[string]string) {
	t.Helper()
	clearEnvVars(t)
	for k, v := range vars {
		require.NoError(t, os.Setenv(k, v))
		t.Cleanup(func() { _ = os.Unsetenv(k) })
	}
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	keys := []string{
		"CONFIG",

		"APP_KEYSTORE_DIR",
		"APP_KEY_SERVICE",
		"APP_KEY_ACCOUNT",

		"STORAGE_DB_DSN",

		"REMOTE_BASE_URL",
		"REMOTE_REQUEST_TIMEOUT",
		"REMOTE_AUTH_TOKEN",

		"WORKERS_UPLOAD_INTERVAL",
		"WORKERS_PULL_INTERVAL",
		"WORKERS_BATCH_SIZE",
		"WORKERS_MAX_RETRIES",
		"WORKERS_BASE_BACKOFF",
		"WORKERS_LEASE_TTL",

		"RECORDSTORE_ADDRESS",
		"RECORDSTORE_TOKEN_SIGN_KEY",
		"RECORDSTORE_DATABASE_URI",
		"RECORDSTORE_REQUEST_TIMEOUT",
	}
	for _, k := range keys {
		_ = os.Unsetenv(k)
	}
}
