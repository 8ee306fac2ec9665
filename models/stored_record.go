package models

import (
	"time"

	"github.com/google/uuid"
)

// StoredRecord is the server-side representation of one synced record held by
// the record store. Fields carries the client payload as an opaque JSON
// object; sensitive values inside it stay sealed, the server never holds the
// key material needed to open them.
type StoredRecord struct {
	RecordID    string         `json:"record_id"`
	RecordType  RecordType     `json:"record_type"`
	LocalID     string         `json:"local_id"`
	Fields      map[string]any `json:"fields"`
	UpdatedAt   time.Time      `json:"updated_at"`
	OperationID uuid.UUID      `json:"operation_id"`
}

// Snapshot converts the stored record into the wire form returned by the
// fetch endpoint.
func (r StoredRecord) Snapshot() RemoteSnapshot {
	updatedAt := r.UpdatedAt
	return RemoteSnapshot{
		RecordID:  r.RecordID,
		Fields:    r.Fields,
		UpdatedAt: &updatedAt,
	}
}

// State converts the stored record into the lightweight listing entry
// returned by the states endpoint.
func (r StoredRecord) State() RemoteState {
	updatedAt := r.UpdatedAt
	return RemoteState{
		RecordID:   r.RecordID,
		RecordType: r.RecordType,
		LocalID:    r.LocalID,
		UpdatedAt:  &updatedAt,
	}
}
