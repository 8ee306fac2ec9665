package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/finnqiao/umilog-sync/internal/logger"
	"github.com/finnqiao/umilog-sync/internal/remote"
	"github.com/finnqiao/umilog-sync/internal/resolver"
	"github.com/finnqiao/umilog-sync/internal/store"
	"github.com/finnqiao/umilog-sync/models"
)

// LocalRecords is the slice of the records repository the puller needs to
// merge remote state back into the local store.
type LocalRecords interface {
	Get(ctx context.Context, rt models.RecordType, localID string) (models.SyncableRecord, error)
	Upsert(ctx context.Context, rec models.SyncableRecord) error
	LinkRemote(ctx context.Context, rt models.RecordType, localID, remoteID string) error
}

// PullerOptions tune the pull loop. Zero values fall back to defaults.
type PullerOptions struct {
	Interval time.Duration
}

// Puller periodically lists remote record states, uses the resolver's cheap
// timestamp pre-check to skip records whose remote copy cannot win, and for
// the rest fetches the full snapshot, resolves the conflict and writes
// remote-wins results back into the local store.
type Puller struct {
	remote    remote.RecordStore
	resolver  *resolver.Resolver
	records   LocalRecords
	decryptor models.FieldDecryptor
	interval  time.Duration
	logger    *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPuller(rs remote.RecordStore, res *resolver.Resolver, records LocalRecords, dec models.FieldDecryptor, opts PullerOptions, log *logger.Logger) *Puller {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Puller{
		remote:    rs,
		resolver:  res,
		records:   records,
		decryptor: dec,
		interval:  opts.Interval,
		logger:    log,
	}
}

// Start implements Worker.
func (p *Puller) Start(ctx context.Context) {
	p.Stop()

	p.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		t := time.NewTicker(p.interval)
		defer t.Stop()

		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				if err := p.PullOnce(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
					p.logger.Error().Err(err).Msg("pull failed")
				}
			}
		}
	}()
}

// Stop implements Worker. Safe to call when the loop is not running.
func (p *Puller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

// PullOnce runs one full pull pass. Per-record failures are logged and
// skipped so one corrupt remote record cannot stall the rest of the account;
// only listing failures and cancellation abort the pass.
func (p *Puller) PullOnce(ctx context.Context) error {
	states, err := p.remote.States(ctx)
	if err != nil {
		return fmt.Errorf("list remote states: %w", err)
	}

	for _, st := range states {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = p.pullRecord(ctx, st); err != nil {
			p.logger.Warn().
				Str("record_type", string(st.RecordType)).
				Str("local_id", st.LocalID).
				Str("remote_record_id", st.RecordID).
				Err(err).
				Msg("skipping remote record")
		}
	}
	return nil
}

func (p *Puller) pullRecord(ctx context.Context, st models.RemoteState) error {
	local, err := p.records.Get(ctx, st.RecordType, st.LocalID)

	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		return p.materialize(ctx, st)

	case err != nil:
		return fmt.Errorf("load local record: %w", err)
	}

	// Cheap pre-check before paying for a fetch and decrypt.
	pre := models.RemoteSnapshot{RecordID: st.RecordID, UpdatedAt: st.UpdatedAt}
	if !p.resolver.IsRemoteNewer(pre, local.ModifiedAt()) {
		return nil
	}

	snap, err := p.remote.Fetch(ctx, st.RecordID)
	if err != nil {
		return fmt.Errorf("fetch remote snapshot: %w", err)
	}

	res := p.resolver.Resolve(ctx, local, snap, p.decryptor)
	if res.Kind != models.ResolutionRemoteWins {
		return nil
	}

	if err = p.records.Upsert(ctx, res.Record); err != nil {
		return fmt.Errorf("write back resolved record: %w", err)
	}
	return p.records.LinkRemote(ctx, st.RecordType, st.LocalID, st.RecordID)
}

// materialize creates a local record for a remote one this device has never
// seen. A snapshot that fails to decode is skipped, never half-written.
func (p *Puller) materialize(ctx context.Context, st models.RemoteState) error {
	snap, err := p.remote.Fetch(ctx, st.RecordID)
	if err != nil {
		return fmt.Errorf("fetch remote snapshot: %w", err)
	}

	rec, err := models.NewRecord(st.RecordType)
	if err != nil {
		return err
	}
	if err = rec.ApplyRemote(snap.Fields, p.decryptor); err != nil {
		return fmt.Errorf("decode remote snapshot: %w", err)
	}

	if err = p.records.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("store new remote record: %w", err)
	}
	return p.records.LinkRemote(ctx, st.RecordType, rec.LocalID(), st.RecordID)
}
