package config

import "errors"

// Validation errors returned by [Config.validate] when required configuration
// groups are incomplete or invalid.
var (
	// ErrInvalidRemoteConfigs indicates invalid record store client settings
	// (for example, missing base URL or request timeout).
	ErrInvalidRemoteConfigs = errors.New("invalid remote configuration")
	// ErrInvalidStorageConfigs indicates invalid local storage settings
	// (for example, empty DSN or unsupported in-memory DSN).
	ErrInvalidStorageConfigs = errors.New("invalid storage configuration")
	// ErrInvalidAppConfigs indicates invalid application-level settings
	// (for example, missing keystore location).
	ErrInvalidAppConfigs = errors.New("invalid app configuration")
	// ErrInvalidWorkerConfigs indicates invalid background worker settings
	// (for example, zero drain interval or retry budget).
	ErrInvalidWorkerConfigs = errors.New("invalid worker configuration")
)
