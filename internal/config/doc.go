// Package config loads and validates the sync engine's configuration from
// environment variables, command-line flags, and an optional JSON file,
// merged in that priority order over built-in defaults.
package config
