package store

import "errors"

var (
	// ErrRecordNotFound indicates no local record exists for the requested
	// (record type, local id) pair.
	ErrRecordNotFound = errors.New("record not found")
	// ErrOperationNotFound indicates no queued operation exists for the
	// requested operation id.
	ErrOperationNotFound = errors.New("operation not found")
	// ErrUnknownTable indicates a table outside the syncable allow-list was
	// passed to identifier resolution.
	ErrUnknownTable = errors.New("unknown syncable table")
)
