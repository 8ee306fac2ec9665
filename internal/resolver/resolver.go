// Package resolver implements deterministic reconciliation between a local
// record and a remote snapshot of the same logical entity.
//
// The policy is last-write-wins at record granularity. A remote snapshot
// without a last-modified timestamp is treated as not authoritative and the
// local record wins unconditionally. Exact timestamp ties break toward the
// remote copy: the remote store is treated as canonical on ties. This is a
// known source of potential data loss under rapid multi-device edits with
// colliding millisecond timestamps; it matches the shipped behaviour and must
// not be changed without confirming intent.
package resolver

import (
	"context"
	"time"

	"github.com/finnqiao/umilog-sync/internal/logger"
	"github.com/finnqiao/umilog-sync/models"
)

// AuditSink persists SyncConflict diagnostics. Optional: a nil sink disables
// auditing without affecting resolution.
type AuditSink interface {
	RecordConflict(ctx context.Context, conflict models.SyncConflict) error
}

// Resolver is stateless after construction and safe for concurrent use.
type Resolver struct {
	audit  AuditSink
	logger *logger.Logger
	now    func() time.Time
}

func NewResolver(audit AuditSink, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{audit: audit, logger: log, now: time.Now}
}

// Resolve decides which side is authoritative and returns the reconciled
// record.
//
//   - remote has no updatedAt        → LocalWins, local unchanged
//   - local.updatedAt > remote's     → LocalWins, local unchanged
//   - remote newer or exact tie      → the remote snapshot is applied to a
//     copy of local (decrypting sealed fields via dec) and RemoteWins with
//     the updated copy is returned
//
// Any decode or decrypt failure while applying the remote snapshot fails soft
// to LocalWins: a corrupt remote merge is never propagated into the local
// store.
func (r *Resolver) Resolve(ctx context.Context, local models.SyncableRecord, remote models.RemoteSnapshot, dec models.FieldDecryptor) models.ConflictResolution {
	if remote.UpdatedAt == nil {
		return models.LocalWins(local)
	}

	localAt := local.ModifiedAt()
	remoteAt := *remote.UpdatedAt

	if !localAt.Equal(remoteAt) {
		r.recordConflict(ctx, local, remote)
	}

	if localAt.After(remoteAt) {
		return models.LocalWins(local)
	}

	// Remote is newer, or timestamps tie exactly and remote is canonical.
	updated := local.Clone()
	if err := updated.ApplyRemote(remote.Fields, dec); err != nil {
		r.logger.Warn().
			Str("record_type", string(local.Type())).
			Str("local_id", local.LocalID()).
			Str("remote_record_id", remote.RecordID).
			Err(err).
			Msg("remote snapshot failed to decode, keeping local record")
		return models.LocalWins(local)
	}

	return models.RemoteWins(updated)
}

// IsRemoteNewer is the cheap pre-check used before fetching and decrypting a
// full remote record. True whenever the remote timestamp exists and is not
// older than localUpdatedAt; ties count as newer because resolution breaks
// ties toward the remote copy.
func (r *Resolver) IsRemoteNewer(remote models.RemoteSnapshot, localUpdatedAt time.Time) bool {
	if remote.UpdatedAt == nil {
		return false
	}
	return !remote.UpdatedAt.Before(localUpdatedAt)
}

func (r *Resolver) recordConflict(ctx context.Context, local models.SyncableRecord, remote models.RemoteSnapshot) {
	if r.audit == nil {
		return
	}

	conflict := models.SyncConflict{
		RecordType:      local.Type(),
		LocalID:         local.LocalID(),
		LocalUpdatedAt:  local.ModifiedAt(),
		RemoteUpdatedAt: remote.UpdatedAt,
		RemoteRecordID:  remote.RecordID,
		DetectedAt:      r.now().UTC(),
	}

	// Auditing is diagnostics, never a reason to fail resolution.
	if err := r.audit.RecordConflict(ctx, conflict); err != nil {
		r.logger.Warn().
			Str("record_type", string(conflict.RecordType)).
			Str("local_id", conflict.LocalID).
			Err(err).
			Msg("failed to persist sync conflict audit record")
	}
}
