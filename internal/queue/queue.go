// Package queue owns the durable, ordered set of pending replication
// operations. All mutations are serialized behind one mutex: callers never
// observe a half-applied enqueue, lease, or removal, no matter how many
// commit callbacks and background workers touch the queue concurrently.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finnqiao/umilog-sync/internal/logger"
	"github.com/finnqiao/umilog-sync/internal/store"
	"github.com/finnqiao/umilog-sync/models"
)

// Store is the durable persistence behind the queue, implemented by
// store.QueueRepository. The SyncQueue serializes access, so implementations
// do not need their own locking. Get and Update report a missing operation
// with store.ErrOperationNotFound; Delete of an ID that no longer exists is
// a no-op.
type Store interface {
	Insert(ctx context.Context, op models.PendingSyncOperation) error
	Update(ctx context.Context, op models.PendingSyncOperation) error
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (models.PendingSyncOperation, error)
	FindByEntity(ctx context.Context, rt models.RecordType, localID string) (*models.PendingSyncOperation, error)
	ListPending(ctx context.Context) ([]models.PendingSyncOperation, error)
	InsertDeadLetter(ctx context.Context, dl models.DeadLetter) error
	ListDeadLetters(ctx context.Context) ([]models.DeadLetter, error)
	Clear(ctx context.Context) error
}

// Options tune retry and lease behaviour. Zero values fall back to defaults.
type Options struct {
	MaxRetries  int           // attempts before an operation is dead-lettered
	BaseBackoff time.Duration // first retry delay; doubles per attempt
	LeaseTTL    time.Duration // how long an uploader may hold an operation
}

const (
	defaultMaxRetries  = 5
	defaultBaseBackoff = 30 * time.Second
	defaultLeaseTTL    = 2 * time.Minute
)

// SyncQueue is the single authoritative store of pending replication intents.
type SyncQueue struct {
	mu     sync.Mutex
	store  Store
	opts   Options
	logger *logger.Logger

	// now is swappable in tests.
	now func() time.Time
}

func NewSyncQueue(store Store, opts Options, log *logger.Logger) *SyncQueue {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = defaultBaseBackoff
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = defaultLeaseTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SyncQueue{store: store, opts: opts, logger: log, now: time.Now}
}

// Enqueue appends a replication intent, collapsing redundant operations for
// the same (recordType, localID) to the latest intent so queue growth stays
// bounded and the uploader never replays superseded writes:
//
//   - create followed by update stays a create with the newer payload (the
//     remote store has never seen the record, so it is still a create);
//   - create followed by delete cancels out entirely;
//   - anything else followed by delete becomes a delete;
//   - delete followed by create becomes an update (the remote record may
//     still exist, overwriting it is the safe interpretation).
//
// An operation the uploader currently holds a live lease on is never folded
// in place: its payload may already be in flight, and the uploader removes
// the leased ID once that push lands. The merged intent is re-keyed under a
// fresh ID instead, parked behind the carried-over lease, so finishing the
// stale push cannot drop it. For the same reason a delete arriving over a
// leased create stays a queued delete rather than cancelling out: the create
// may have reached the remote store.
//
// Returns the ID of the operation now representing the entity's intent.
// collapsed is true only for the create-then-delete annihilation, where both
// intents cancelled out and no operation remains; the returned ID is unusable
// in that case.
func (q *SyncQueue) Enqueue(ctx context.Context, op models.OperationKind, rt models.RecordType, localID string, payload []byte) (id uuid.UUID, collapsed bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	existing, err := q.store.FindByEntity(ctx, rt, localID)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("find existing operation: %w", err)
	}

	if existing == nil {
		fresh := models.PendingSyncOperation{
			ID:         uuid.New(),
			RecordType: rt,
			LocalID:    localID,
			Operation:  op,
			Payload:    payload,
			CreatedAt:  q.now().UTC(),
		}
		if err = q.store.Insert(ctx, fresh); err != nil {
			return uuid.Nil, false, fmt.Errorf("insert operation: %w", err)
		}
		return fresh.ID, false, nil
	}

	now := q.now().UTC()
	leased := existing.LeaseExpiresAt != nil && existing.LeaseExpiresAt.After(now)

	// Compaction: fold the new intent into the existing operation.
	merged := *existing
	switch {
	case existing.Operation == models.OperationCreate && op == models.OperationDelete && !leased:
		// The remote store never saw this record; both intents cancel out.
		if err = q.store.Delete(ctx, existing.ID); err != nil {
			return uuid.Nil, false, fmt.Errorf("cancel superseded create: %w", err)
		}
		return uuid.Nil, true, nil

	case existing.Operation == models.OperationCreate && op == models.OperationDelete:
		// The in-flight create may land; keep a delete so the remote copy
		// goes away if it does. A never-pushed record degrades this to a
		// local no-op at upload time.
		merged.Operation = models.OperationDelete
		merged.Payload = nil

	case existing.Operation == models.OperationCreate:
		merged.Payload = payload // still a create, newer content

	case op == models.OperationDelete:
		merged.Operation = models.OperationDelete
		merged.Payload = nil

	case existing.Operation == models.OperationDelete:
		// Entity resurrected locally before the delete replicated.
		merged.Operation = models.OperationUpdate
		merged.Payload = payload

	default:
		merged.Operation = op
		merged.Payload = payload
	}

	// A superseding intent resets the retry clock: the old failures applied
	// to content that no longer exists.
	merged.Attempts = 0
	merged.NextAttemptAt = time.Time{}

	if leased {
		// Re-key so the uploader's Remove of the leased ID cannot take the
		// merged intent with it. The lease expiry carries over: the new
		// operation becomes leasable only after the in-flight attempt has
		// resolved one way or the other.
		merged.ID = uuid.New()
		merged.CreatedAt = now
		if err = q.store.Delete(ctx, existing.ID); err != nil {
			return uuid.Nil, false, fmt.Errorf("supersede leased operation: %w", err)
		}
		if err = q.store.Insert(ctx, merged); err != nil {
			return uuid.Nil, false, fmt.Errorf("insert superseding operation: %w", err)
		}
		return merged.ID, false, nil
	}

	if err = q.store.Update(ctx, merged); err != nil {
		return uuid.Nil, false, fmt.Errorf("compact operation: %w", err)
	}
	return merged.ID, false, nil
}

// ListPending returns a snapshot of all queued operations ordered by priority
// then creation order. Dead letters are excluded.
func (q *SyncQueue) ListPending(ctx context.Context) ([]models.PendingSyncOperation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.ListPending(ctx)
}

// Lease hands out up to limit operations that are due (NextAttemptAt reached,
// no live lease) and marks them in-flight for LeaseTTL. An operation whose
// lease expires without Remove/MarkFailed/Release simply becomes leasable
// again; nothing stays in-flight forever.
func (q *SyncQueue) Lease(ctx context.Context, limit int) ([]models.PendingSyncOperation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending, err := q.store.ListPending(ctx)
	if err != nil {
		return nil, err
	}

	now := q.now().UTC()
	leased := make([]models.PendingSyncOperation, 0, limit)
	for _, op := range pending {
		if len(leased) >= limit {
			break
		}
		if op.NextAttemptAt.After(now) {
			continue
		}
		if op.LeaseExpiresAt != nil && op.LeaseExpiresAt.After(now) {
			continue
		}

		expiry := now.Add(q.opts.LeaseTTL)
		op.LeaseExpiresAt = &expiry
		if err = q.store.Update(ctx, op); err != nil {
			return nil, fmt.Errorf("lease operation %s: %w", op.ID, err)
		}
		leased = append(leased, op)
	}

	return leased, nil
}

// Release returns a leased operation to pending without counting a failure.
// Used when an upload is cancelled (timeout, app backgrounded) rather than
// rejected. Releasing an operation that was superseded while leased is a
// no-op.
func (q *SyncQueue) Release(ctx context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	op, err := q.store.Get(ctx, id)
	if errors.Is(err, store.ErrOperationNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	op.LeaseExpiresAt = nil
	return q.store.Update(ctx, op)
}

// Remove deletes an operation after confirmed successful replication.
func (q *SyncQueue) Remove(ctx context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.Delete(ctx, id)
}

// MarkFailed records one failed replication attempt. While the retry budget
// lasts the operation stays queued with exponential backoff and MarkFailed
// returns true; once the budget is exhausted the operation moves to the
// dead-letter set and MarkFailed returns false. Failed operations are never
// silently dropped. Failing an operation that was superseded while leased is
// a no-op: the newer intent carries its own retry budget.
func (q *SyncQueue) MarkFailed(ctx context.Context, id uuid.UUID, cause error) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	op, err := q.store.Get(ctx, id)
	if errors.Is(err, store.ErrOperationNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	op.Attempts++
	op.LeaseExpiresAt = nil

	if op.Attempts >= q.opts.MaxRetries {
		reason := "retry budget exhausted"
		if cause != nil {
			reason = cause.Error()
		}
		dl := models.DeadLetter{Operation: op, Reason: reason, FailedAt: q.now().UTC()}
		if err = q.store.InsertDeadLetter(ctx, dl); err != nil {
			return false, fmt.Errorf("dead-letter operation %s: %w", op.ID, err)
		}
		if err = q.store.Delete(ctx, op.ID); err != nil {
			return false, fmt.Errorf("remove dead-lettered operation %s: %w", op.ID, err)
		}
		q.logger.Warn().
			Str("operation_id", op.ID.String()).
			Str("record_type", string(op.RecordType)).
			Str("local_id", op.LocalID).
			Int("attempts", op.Attempts).
			Msg("operation moved to dead-letter set")
		return false, nil
	}

	op.NextAttemptAt = q.now().UTC().Add(q.backoff(op.Attempts))
	if err = q.store.Update(ctx, op); err != nil {
		return false, fmt.Errorf("reschedule operation %s: %w", op.ID, err)
	}
	return true, nil
}

// DeadLetters returns the operations that exhausted their retry budget.
func (q *SyncQueue) DeadLetters(ctx context.Context) ([]models.DeadLetter, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.ListDeadLetters(ctx)
}

// Clear drops all pending operations and dead letters. Sign-out and reset
// flows only.
func (q *SyncQueue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.Clear(ctx)
}

// backoff returns the delay before attempt n+1: base * 2^(n-1), capped so a
// long-failing operation retries at most every 30 minutes.
func (q *SyncQueue) backoff(attempts int) time.Duration {
	const maxBackoff = 30 * time.Minute

	d := q.opts.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
