package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/finnqiao/umilog-sync/internal/logger"
	"github.com/finnqiao/umilog-sync/internal/queue"
	"github.com/finnqiao/umilog-sync/internal/remote"
	"github.com/finnqiao/umilog-sync/models"
)

// RecordLinker maintains the local-to-remote identifier mapping for pushed
// records. Implemented by store.RecordsRepository.
type RecordLinker interface {
	LinkRemote(ctx context.Context, rt models.RecordType, localID, remoteID string) error
	RemoteID(ctx context.Context, rt models.RecordType, localID string) (string, error)
}

// UploaderOptions tune the drain loop. Zero values fall back to defaults.
type UploaderOptions struct {
	Interval  time.Duration
	BatchSize int
}

// Uploader drains the sync queue on a ticker: lease a batch, seal each
// payload's sensitive fields, push to the remote store, then remove the
// operation on success or hand the failure back to the queue's retry policy.
// Cancellation returns leased operations to pending, so backgrounding the app
// mid-upload never strands an operation in-flight.
type Uploader struct {
	queue     *queue.SyncQueue
	remote    remote.RecordStore
	sealer    models.FieldSealer
	records   RecordLinker
	interval  time.Duration
	batchSize int
	logger    *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewUploader(q *queue.SyncQueue, rs remote.RecordStore, sealer models.FieldSealer, records RecordLinker, opts UploaderOptions, log *logger.Logger) *Uploader {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 25
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Uploader{
		queue:     q,
		remote:    rs,
		sealer:    sealer,
		records:   records,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
		logger:    log,
	}
}

// Start implements Worker. It stops any previously running loop, then drains
// the queue every interval until ctx is cancelled or Stop is called.
func (u *Uploader) Start(ctx context.Context) {
	u.Stop()

	u.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	u.cancel = cancel
	u.wg.Add(1)
	u.mu.Unlock()

	go func() {
		defer u.wg.Done()
		t := time.NewTicker(u.interval)
		defer t.Stop()

		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				if err := u.DrainOnce(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
					u.logger.Error().Err(err).Msg("upload drain failed")
				}
			}
		}
	}()
}

// Stop implements Worker. Safe to call when the loop is not running.
func (u *Uploader) Stop() {
	u.mu.Lock()
	cancel := u.cancel
	u.cancel = nil
	u.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	u.wg.Wait()
}

// DrainOnce leases and processes one batch of due operations. Exported so
// callers (and tests) can force an immediate drain outside the ticker.
func (u *Uploader) DrainOnce(ctx context.Context) error {
	ops, err := u.queue.Lease(ctx, u.batchSize)
	if err != nil {
		return fmt.Errorf("lease operations: %w", err)
	}

	for _, op := range ops {
		err = u.process(ctx, op)

		switch {
		case err == nil:
			if err = u.queue.Remove(ctx, op.ID); err != nil {
				return fmt.Errorf("remove replicated operation %s: %w", op.ID, err)
			}

		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			// Not a rejection: return the lease and stop the drain.
			if relErr := u.queue.Release(context.WithoutCancel(ctx), op.ID); relErr != nil {
				u.logger.Error().Str("operation_id", op.ID.String()).Err(relErr).Msg("failed to release cancelled operation")
			}
			return err

		default:
			u.logger.Warn().
				Str("operation_id", op.ID.String()).
				Str("record_type", string(op.RecordType)).
				Str("local_id", op.LocalID).
				Err(err).
				Msg("replication attempt failed")
			if _, failErr := u.queue.MarkFailed(ctx, op.ID, err); failErr != nil {
				return fmt.Errorf("mark operation %s failed: %w", op.ID, failErr)
			}
		}
	}

	return nil
}

func (u *Uploader) process(ctx context.Context, op models.PendingSyncOperation) error {
	if op.Operation == models.OperationDelete {
		return u.processDelete(ctx, op)
	}
	return u.processPush(ctx, op)
}

func (u *Uploader) processDelete(ctx context.Context, op models.PendingSyncOperation) error {
	remoteID, err := u.records.RemoteID(ctx, op.RecordType, op.LocalID)
	if err != nil {
		return fmt.Errorf("look up remote id: %w", err)
	}
	if remoteID == "" {
		// Never pushed; nothing to delete remotely.
		return nil
	}
	return u.remote.Delete(ctx, remoteID)
}

func (u *Uploader) processPush(ctx context.Context, op models.PendingSyncOperation) error {
	fields, err := models.SealFields(op.RecordType, op.Payload, u.sealer)
	if err != nil {
		return fmt.Errorf("seal payload: %w", err)
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode sealed payload: %w", err)
	}

	req := models.PushRequest{
		OperationID: op.ID,
		RecordType:  op.RecordType,
		LocalID:     op.LocalID,
		Payload:     payload,
	}

	// Absorb short transient hiccups inside one attempt; real rejections go
	// back to the queue's backoff schedule.
	var remoteID string
	backoff := retry.WithMaxRetries(2, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		id, pushErr := u.remote.Push(ctx, req)
		if pushErr != nil {
			if errors.Is(pushErr, remote.ErrUnauthorized) {
				return pushErr // retrying without re-auth cannot succeed
			}
			return retry.RetryableError(pushErr)
		}
		remoteID = id
		return nil
	})
	if err != nil {
		return err
	}

	if err = u.records.LinkRemote(ctx, op.RecordType, op.LocalID, remoteID); err != nil {
		// The push itself succeeded; a missing link only degrades a future
		// delete into a no-op. Log, don't retry the whole operation.
		u.logger.Warn().
			Str("record_type", string(op.RecordType)).
			Str("local_id", op.LocalID).
			Err(err).
			Msg("failed to link remote record id")
	}
	return nil
}
