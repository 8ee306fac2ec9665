// Package capture turns local database commits into queueable replication
// intents. It implements the transaction-observer capability expected by the
// storage layer: row changes are buffered in memory while the transaction is
// open, enqueued in order on commit, and discarded on rollback, so a change
// is never externally visible unless the transaction that produced it
// actually committed.
package capture

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/finnqiao/umilog-sync/internal/logger"
	"github.com/finnqiao/umilog-sync/models"
)

// syncableTables is the fixed allow-list of observed tables and the record
// type each one maps to.
var syncableTables = map[string]models.RecordType{
	"dive_logs":      models.RecordTypeDiveLog,
	"sightings":      models.RecordTypeSighting,
	"photos":         models.RecordTypePhoto,
	"certifications": models.RecordTypeCertification,
	"site_states":    models.RecordTypeSiteState,
	"trips":          models.RecordTypeTrip,
}

// Enqueuer is the slice of the sync queue the observer needs. Enqueue must be
// fast and non-blocking from the caller's perspective; OnCommit runs on the
// thread that committed the transaction.
type Enqueuer interface {
	Enqueue(ctx context.Context, op models.OperationKind, rt models.RecordType, localID string, payload []byte) (uuid.UUID, bool, error)
}

// IdentifierResolver maps an internal row number to the row's stable entity
// identifier by reading the just-committed state. Implemented by the records
// repository.
type IdentifierResolver interface {
	ResolveIdentifier(ctx context.Context, table string, rowID int64) (string, error)
}

// PayloadLoader serializes the committed row for upload. A Delete change
// carries no payload and skips this lookup.
type PayloadLoader interface {
	LoadPayload(ctx context.Context, rt models.RecordType, localID string) ([]byte, error)
}

// ChangeCapture observes one database connection's transactions. The storage
// layer registers it as the connection's commit hook and calls OnRowChanged /
// OnCommit / OnRollback from the transaction's own thread, so the buffer only
// ever belongs to one open transaction at a time; the mutex guards against
// the storage engine delivering hooks from a pooled helper thread.
type ChangeCapture struct {
	queue    Enqueuer
	resolver IdentifierResolver
	payloads PayloadLoader
	logger   *logger.Logger

	mu     sync.Mutex
	buffer []models.PendingChange
}

func NewChangeCapture(queue Enqueuer, resolver IdentifierResolver, payloads PayloadLoader, log *logger.Logger) *ChangeCapture {
	return &ChangeCapture{
		queue:    queue,
		resolver: resolver,
		payloads: payloads,
		logger:   log,
	}
}

// ShouldObserve reports whether changes to table are captured. The decision
// depends only on the allow-list, never on the change kind.
func (c *ChangeCapture) ShouldObserve(table string, _ models.ChangeKind) bool {
	_, ok := syncableTables[table]
	return ok
}

// OnRowChanged buffers one row-level change. Called once per affected row
// while the transaction is still open; performs no I/O.
func (c *ChangeCapture) OnRowChanged(table string, rowID int64, kind models.ChangeKind) {
	if !c.ShouldObserve(table, kind) {
		return
	}

	c.mu.Lock()
	c.buffer = append(c.buffer, models.PendingChange{Table: table, RowID: rowID, Kind: kind})
	c.mu.Unlock()
}

// OnCommit drains the buffer, resolves each row's stable entity identifier
// from the committed state and enqueues one operation per change, preserving
// the original per-row order. A row whose identifier can no longer be
// resolved (e.g. deleted by a later statement in the same transaction) is
// logged and skipped; the commit itself is never failed from here.
func (c *ChangeCapture) OnCommit(ctx context.Context) {
	c.mu.Lock()
	changes := c.buffer
	c.buffer = nil
	c.mu.Unlock()

	log := c.logger
	if log == nil {
		log = logger.Nop()
	}

	for _, change := range changes {
		rt := syncableTables[change.Table]

		localID, err := c.resolver.ResolveIdentifier(ctx, change.Table, change.RowID)
		if err != nil {
			log.Warn().
				Str("table", change.Table).
				Int64("row_id", change.RowID).
				Err(err).
				Msg("skipping change: stable identifier resolution failed")
			continue
		}

		op, payload, err := c.materialize(ctx, rt, localID, change.Kind)
		if err != nil {
			log.Warn().
				Str("table", change.Table).
				Str("local_id", localID).
				Err(err).
				Msg("skipping change: payload load failed")
			continue
		}

		if _, _, err = c.queue.Enqueue(ctx, op, rt, localID, payload); err != nil {
			log.Error().
				Str("table", change.Table).
				Str("local_id", localID).
				Err(err).
				Msg("enqueue failed for committed change")
		}
	}
}

// OnRollback discards every buffered change. Nothing is ever enqueued for a
// transaction that rolled back.
func (c *ChangeCapture) OnRollback() {
	c.mu.Lock()
	c.buffer = nil
	c.mu.Unlock()
}

func (c *ChangeCapture) materialize(ctx context.Context, rt models.RecordType, localID string, kind models.ChangeKind) (models.OperationKind, []byte, error) {
	switch kind {
	case models.ChangeInsert:
		payload, err := c.payloads.LoadPayload(ctx, rt, localID)
		return models.OperationCreate, payload, err
	case models.ChangeUpdate:
		payload, err := c.payloads.LoadPayload(ctx, rt, localID)
		return models.OperationUpdate, payload, err
	default:
		return models.OperationDelete, nil, nil
	}
}
