package models

import "time"

// SyncConflict describes a detected divergence between the local and remote
// version of one logical entity. It is diagnostic only: resolution does not
// depend on it, but persisting these records makes multi-device edit races
// visible in support investigations.
type SyncConflict struct {
	RecordType      RecordType `json:"record_type"`
	LocalID         string     `json:"local_id"`
	LocalUpdatedAt  time.Time  `json:"local_updated_at"`
	RemoteUpdatedAt *time.Time `json:"remote_updated_at,omitempty"`
	RemoteRecordID  string     `json:"remote_record_id"`
	DetectedAt      time.Time  `json:"detected_at"`
}

// ResolutionKind tags the outcome of conflict resolution.
type ResolutionKind string

const (
	// ResolutionLocalWins keeps the local record untouched.
	ResolutionLocalWins ResolutionKind = "local_wins"
	// ResolutionRemoteWins replaces local fields with the remote snapshot.
	ResolutionRemoteWins ResolutionKind = "remote_wins"
	// ResolutionMerged is reserved for a future field-level merge strategy.
	// The current last-write-wins policy never produces it.
	ResolutionMerged ResolutionKind = "merged"
)

// ConflictResolution is the tagged result of resolving one local/remote pair.
// Record is the authoritative record after resolution: the unchanged local
// record for ResolutionLocalWins, or a copy overwritten from the remote
// snapshot for ResolutionRemoteWins.
type ConflictResolution struct {
	Kind   ResolutionKind
	Record SyncableRecord
}

func LocalWins(record SyncableRecord) ConflictResolution {
	return ConflictResolution{Kind: ResolutionLocalWins, Record: record}
}

func RemoteWins(record SyncableRecord) ConflictResolution {
	return ConflictResolution{Kind: ResolutionRemoteWins, Record: record}
}
