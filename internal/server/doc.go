// Package server owns the lifecycle of the development record store's HTTP
// server: startup, signal handling, and graceful shutdown.
package server
