package models

import (
	"time"

	"github.com/google/uuid"
)

// OperationKind is the replication intent of a queued operation.
type OperationKind string

const (
	OperationCreate OperationKind = "create"
	OperationUpdate OperationKind = "update"
	OperationDelete OperationKind = "delete"
)

// PendingSyncOperation is the durable unit of work in the sync queue.
//
// Lifecycle: created at enqueue time, leased by the uploader (LeaseExpiresAt
// set), then either removed on confirmed replication, returned to pending with
// Attempts incremented and NextAttemptAt pushed out on failure, or moved to
// the dead-letter set once Attempts reaches the retry budget. A lease that
// expires without an outcome returns the operation to pending, so a crashed
// or cancelled upload never leaves it in-flight forever.
type PendingSyncOperation struct {
	ID         uuid.UUID     `json:"id"`
	RecordType RecordType    `json:"record_type"`
	LocalID    string        `json:"local_id"`
	Operation  OperationKind `json:"operation"`
	Payload    []byte        `json:"payload,omitempty"`
	Attempts   int           `json:"attempts"`
	Priority   int           `json:"priority"`
	CreatedAt  time.Time     `json:"created_at"`

	// NextAttemptAt is the earliest time the uploader may lease this
	// operation again. Zero means immediately.
	NextAttemptAt time.Time `json:"next_attempt_at"`

	// LeaseExpiresAt is set while the uploader holds the operation. Nil when
	// the operation is pending.
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty"`
}

// DeadLetter is a PendingSyncOperation that exhausted its retry budget, kept
// for diagnosis instead of being discarded.
type DeadLetter struct {
	Operation PendingSyncOperation `json:"operation"`
	Reason    string               `json:"reason"`
	FailedAt  time.Time            `json:"failed_at"`
}
