// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import "strings"

// validate checks that the final merged [Config] satisfies the engine's
// startup invariants. The queue must be durable, so an in-memory SQLite DSN
// is rejected outright.
func (cfg *Config) validate() error {
	if cfg.Storage.DB.DSN == "" || strings.Contains(cfg.Storage.DB.DSN, "memory") {
		return ErrInvalidStorageConfigs
	}

	if cfg.Remote.BaseURL == "" || cfg.Remote.RequestTimeout == 0 {
		return ErrInvalidRemoteConfigs
	}

	if cfg.Workers.UploadInterval == 0 || cfg.Workers.PullInterval == 0 || cfg.Workers.MaxRetries <= 0 {
		return ErrInvalidWorkerConfigs
	}

	if cfg.App.KeystoreDir == "" || cfg.App.KeyService == "" || cfg.App.KeyAccount == "" {
		return ErrInvalidAppConfigs
	}

	return nil
}
