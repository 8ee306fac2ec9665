// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mattn/go-sqlite3"

	"github.com/finnqiao/umilog-sync/internal/config"
	"github.com/finnqiao/umilog-sync/internal/logger"
	"github.com/finnqiao/umilog-sync/models"
)

// TransactionObserver receives row-level change notifications from the SQLite
// driver hooks. Implemented by the change capture component.
type TransactionObserver interface {
	OnRowChanged(table string, rowID int64, kind models.ChangeKind)
	OnCommit(ctx context.Context)
	OnRollback()
}

const captureDriverName = "sqlite3_capture"

var (
	registerCaptureDriver sync.Once
	activeBridge          atomic.Pointer[CaptureBridge]
)

// CaptureBridge connects go-sqlite3's update/commit/rollback hooks to a
// TransactionObserver. Hooks fire on the connection that is committing;
// commit notifications are buffered and dispatched from Run's goroutine so
// the observer's post-commit reads never run inside the driver callback.
type CaptureBridge struct {
	logger *logger.Logger

	mu       sync.RWMutex
	observer TransactionObserver

	paused  atomic.Int32
	commits chan struct{}
}

// NewCaptureBridge constructs the bridge and registers the hooked SQLite
// driver. One bridge per process: the driver callbacks route to whichever
// bridge was created last.
func NewCaptureBridge(log *logger.Logger) *CaptureBridge {
	b := &CaptureBridge{
		logger:  log,
		commits: make(chan struct{}, 64),
	}
	activeBridge.Store(b)

	registerCaptureDriver.Do(func() {
		sql.Register(captureDriverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				conn.RegisterUpdateHook(func(op int, _ string, table string, rowID int64) {
					bridge := activeBridge.Load()
					if bridge == nil || bridge.isPaused() {
						return
					}
					kind, ok := changeKindFromOp(op)
					if !ok {
						return
					}
					if obs := bridge.getObserver(); obs != nil {
						obs.OnRowChanged(table, rowID, kind)
					}
				})
				conn.RegisterCommitHook(func() int {
					if bridge := activeBridge.Load(); bridge != nil {
						bridge.notifyCommit()
					}
					return 0
				})
				conn.RegisterRollbackHook(func() {
					bridge := activeBridge.Load()
					if bridge == nil {
						return
					}
					if obs := bridge.getObserver(); obs != nil {
						obs.OnRollback()
					}
				})
				return nil
			},
		})
	})

	return b
}

// SetObserver installs the observer the hooks deliver to. Until an observer
// is set, notifications are dropped.
func (b *CaptureBridge) SetObserver(obs TransactionObserver) {
	b.mu.Lock()
	b.observer = obs
	b.mu.Unlock()
}

// Run dispatches buffered commit notifications until ctx is cancelled. An
// empty capture buffer makes the dispatched OnCommit a no-op, so commits of
// non-observed tables cost one channel receive.
func (b *CaptureBridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.commits:
			if obs := b.getObserver(); obs != nil {
				obs.OnCommit(ctx)
			}
		}
	}
}

// Pause suppresses row-change notifications until the matching Resume.
// SQLite's single-writer lock keeps a paused window from overlapping another
// transaction's hooks.
func (b *CaptureBridge) Pause()  { b.paused.Add(1) }
func (b *CaptureBridge) Resume() { b.paused.Add(-1) }

func (b *CaptureBridge) isPaused() bool { return b.paused.Load() > 0 }

func (b *CaptureBridge) getObserver() TransactionObserver {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.observer
}

func (b *CaptureBridge) notifyCommit() {
	select {
	case b.commits <- struct{}{}:
	default:
		// Dispatcher is behind; the pending notification already covers
		// every buffered change.
	}
}

func changeKindFromOp(op int) (models.ChangeKind, bool) {
	switch op {
	case sqlite3.SQLITE_INSERT:
		return models.ChangeInsert, true
	case sqlite3.SQLITE_UPDATE:
		return models.ChangeUpdate, true
	case sqlite3.SQLITE_DELETE:
		return models.ChangeDelete, true
	default:
		return "", false
	}
}

// NewConnectSQLiteWithCapture opens the local database through the hooked
// driver so every connection reports row changes to the bridge.
func NewConnectSQLiteWithCapture(ctx context.Context, cfg config.DB, log *logger.Logger) (*DB, error) {
	if err := createLocalDBFileIfNotExists(cfg.DSN); err != nil {
		log.Err(err).Str("func", "NewConnectSQLiteWithCapture").Msg("error creating database file")
		return nil, fmt.Errorf("error creating database file")
	}

	conn, err := sql.Open(captureDriverName, cfg.DSN)
	if err != nil {
		log.Err(err).Str("func", "NewConnectSQLiteWithCapture").Msg("error connecting database")
		return nil, fmt.Errorf("error opening connection to DB")
	}

	if err = conn.PingContext(ctx); err != nil {
		log.Err(err).Str("func", "NewConnectSQLiteWithCapture").Msg("error connecting database (ping)")
		return nil, err
	}
	log.Debug().Str("func", "NewConnectSQLiteWithCapture").Msg("connected to database successfully")

	return &DB{
		DB:     conn,
		logger: log,
	}, nil
}

// SilentRecords wraps the records repository for the background workers that
// write state originating remotely (applied pulls, remote-id links). The
// bridge is paused around each write so those writes are never re-captured
// and echoed back to the remote store.
type SilentRecords struct {
	*RecordsRepository
	bridge *CaptureBridge
}

func NewSilentRecords(records *RecordsRepository, bridge *CaptureBridge) *SilentRecords {
	return &SilentRecords{RecordsRepository: records, bridge: bridge}
}

func (s *SilentRecords) Upsert(ctx context.Context, rec models.SyncableRecord) error {
	s.bridge.Pause()
	defer s.bridge.Resume()
	return s.RecordsRepository.Upsert(ctx, rec)
}

func (s *SilentRecords) LinkRemote(ctx context.Context, rt models.RecordType, localID, remoteRecordID string) error {
	s.bridge.Pause()
	defer s.bridge.Resume()
	return s.RecordsRepository.LinkRemote(ctx, rt, localID, remoteRecordID)
}
