// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import "time"

// Config is the top-level configuration container for the sync engine. It
// aggregates all sub-configurations and is populated by merging values from
// defaults, environment variables, command-line flags, and an optional JSON
// file.
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type Config struct {
	// App holds application-level settings such as the keystore location
	// and the service/account identifiers the symmetric key is scoped to.
	App App `envPrefix:"APP_"`

	// Storage holds the engine's local SQLite database settings.
	Storage Storage `envPrefix:"STORAGE_"`

	// Remote holds the cloud record store client settings.
	Remote Remote `envPrefix:"REMOTE_"`

	// Workers holds intervals and retry budgets for the background
	// uploader and puller.
	Workers Workers `envPrefix:"WORKERS_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

type App struct {
	// KeystoreDir is where the file-backed keystore persists the field
	// encryption key on platforms without a native keychain.
	KeystoreDir string `env:"KEYSTORE_DIR"`
	// KeyService and KeyAccount scope the key inside the keystore.
	KeyService string `env:"KEY_SERVICE"`
	KeyAccount string `env:"KEY_ACCOUNT"`
}

type Storage struct {
	DB DB `envPrefix:"DB_"`
}

type DB struct {
	DSN string `env:"DSN"`
}

type Remote struct {
	BaseURL        string        `env:"BASE_URL"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
	AuthToken      string        `env:"AUTH_TOKEN"`
}

type Workers struct {
	UploadInterval time.Duration `env:"UPLOAD_INTERVAL"`
	PullInterval   time.Duration `env:"PULL_INTERVAL"`
	BatchSize      int           `env:"BATCH_SIZE"`
	MaxRetries     int           `env:"MAX_RETRIES"`
	BaseBackoff    time.Duration `env:"BASE_BACKOFF"`
	LeaseTTL       time.Duration `env:"LEASE_TTL"`
}

// defaults returns the baseline configuration other sources merge over.
func defaults() *Config {
	return &Config{
		App: App{
			KeystoreDir: ".umilog",
			KeyService:  "umilog.sync",
			KeyAccount:  "default",
		},
		Storage: Storage{DB: DB{DSN: "umilog.db"}},
		Remote: Remote{
			BaseURL:        "http://localhost:8080",
			RequestTimeout: 15 * time.Second,
		},
		Workers: Workers{
			UploadInterval: time.Minute,
			PullInterval:   5 * time.Minute,
			BatchSize:      25,
			MaxRetries:     5,
			BaseBackoff:    30 * time.Second,
			LeaseTTL:       2 * time.Minute,
		},
	}
}

// GetConfig builds the engine configuration. Sources are merged in priority
// order — environment over flags over the JSON file — with defaults filling
// whatever remains unset.
func GetConfig() (*Config, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		withDefaults().
		build()
}

// ServerConfig configures the development record-store server. Environment
// only; the dev server has no flag or JSON surface.
type ServerConfig struct {
	Address        string        `env:"RECORDSTORE_ADDRESS" envDefault:":8080"`
	TokenSignKey   string        `env:"RECORDSTORE_TOKEN_SIGN_KEY"`
	PostgresDSN    string        `env:"RECORDSTORE_DATABASE_URI"`
	RequestTimeout time.Duration `env:"RECORDSTORE_REQUEST_TIMEOUT" envDefault:"30s"`
}

func GetServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
