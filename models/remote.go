package models

import (
	"time"

	"github.com/google/uuid"
)

// RemoteSnapshot is one record as fetched from the remote store. Fields is a
// generic JSON object; UpdatedAt is the server-side last-modified timestamp
// and is nil when the remote record carries none (such a snapshot is treated
// as not authoritative).
type RemoteSnapshot struct {
	RecordID  string         `json:"record_id"`
	Fields    map[string]any `json:"fields"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
}

// RemoteState is the lightweight listing entry returned by the remote store,
// enough for the puller to decide whether fetching the full snapshot (and
// paying the decrypt cost) is worthwhile.
type RemoteState struct {
	RecordID   string     `json:"record_id"`
	RecordType RecordType `json:"record_type"`
	LocalID    string     `json:"local_id"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// PushRequest uploads one encrypted record payload. OperationID doubles as an
// idempotency key: replaying the same push after a lost response must not
// create a duplicate remote record.
type PushRequest struct {
	OperationID uuid.UUID  `json:"operation_id"`
	RecordType  RecordType `json:"record_type"`
	LocalID     string     `json:"local_id"`
	Payload     []byte     `json:"payload"`
}

// PushResponse echoes the remote record identifier assigned by the store.
type PushResponse struct {
	RemoteRecordID string `json:"remote_record_id"`
}
