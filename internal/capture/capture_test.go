package capture

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finnqiao/umilog-sync/internal/logger"
	"github.com/finnqiao/umilog-sync/models"
)

type enqueuedOp struct {
	op      models.OperationKind
	rt      models.RecordType
	localID string
	payload []byte
}

type fakeEnqueuer struct {
	ops []enqueuedOp
	err error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, op models.OperationKind, rt models.RecordType, localID string, payload []byte) (uuid.UUID, bool, error) {
	if f.err != nil {
		return uuid.Nil, false, f.err
	}
	f.ops = append(f.ops, enqueuedOp{op: op, rt: rt, localID: localID, payload: payload})
	return uuid.New(), false, nil
}

// fakeRecords resolves rowids to "<table>-<rowid>" identifiers and serves a
// fixed payload per entity.
type fakeRecords struct {
	failRowIDs map[int64]bool
	payloadErr error
}

func (f *fakeRecords) ResolveIdentifier(_ context.Context, table string, rowID int64) (string, error) {
	if f.failRowIDs[rowID] {
		return "", errors.New("row is gone")
	}
	return fmt.Sprintf("%s-%d", table, rowID), nil
}

func (f *fakeRecords) LoadPayload(_ context.Context, rt models.RecordType, localID string) ([]byte, error) {
	if f.payloadErr != nil {
		return nil, f.payloadErr
	}
	return []byte(fmt.Sprintf(`{"type":%q,"id":%q}`, rt, localID)), nil
}

func newTestCapture(q Enqueuer, records *fakeRecords) *ChangeCapture {
	return NewChangeCapture(q, records, records, logger.Nop())
}

func TestChangeCapture_ShouldObserve(t *testing.T) {
	c := newTestCapture(&fakeEnqueuer{}, &fakeRecords{})

	for _, table := range []string{"dive_logs", "sightings", "photos", "certifications", "site_states", "trips"} {
		assert.True(t, c.ShouldObserve(table, models.ChangeInsert), table)
	}

	for _, table := range []string{"sync_queue", "sync_dead_letters", "app_settings", "dive_sites", ""} {
		assert.False(t, c.ShouldObserve(table, models.ChangeInsert), table)
	}
}

func TestChangeCapture_CommitEnqueuesInOrder(t *testing.T) {
	q := &fakeEnqueuer{}
	c := newTestCapture(q, &fakeRecords{})

	c.OnRowChanged("dive_logs", 1, models.ChangeInsert)
	c.OnRowChanged("sightings", 2, models.ChangeInsert)
	c.OnRowChanged("dive_logs", 1, models.ChangeUpdate)

	require.Empty(t, q.ops, "nothing is enqueued before commit")

	c.OnCommit(context.Background())

	require.Len(t, q.ops, 3)

	wantOps := []models.OperationKind{models.OperationCreate, models.OperationCreate, models.OperationUpdate}
	wantIDs := []string{"dive_logs-1", "sightings-2", "dive_logs-1"}
	for i := range q.ops {
		assert.Equal(t, wantOps[i], q.ops[i].op, "op %d", i)
		assert.Equal(t, wantIDs[i], q.ops[i].localID, "op %d", i)
		assert.NotEmpty(t, q.ops[i].payload, "op %d carries the committed row", i)
	}
}

func TestChangeCapture_RollbackDiscardsEverything(t *testing.T) {
	q := &fakeEnqueuer{}
	c := newTestCapture(q, &fakeRecords{})

	c.OnRowChanged("dive_logs", 1, models.ChangeInsert)
	c.OnRowChanged("photos", 2, models.ChangeUpdate)
	c.OnRollback()

	c.OnCommit(context.Background())
	assert.Empty(t, q.ops, "rolled-back changes never reach the queue")
}

func TestChangeCapture_NonSyncableTablesAreIgnored(t *testing.T) {
	q := &fakeEnqueuer{}
	c := newTestCapture(q, &fakeRecords{})

	c.OnRowChanged("sync_queue", 1, models.ChangeInsert)
	c.OnRowChanged("dive_sites", 2, models.ChangeUpdate)
	c.OnRowChanged("trips", 3, models.ChangeInsert)

	c.OnCommit(context.Background())

	require.Len(t, q.ops, 1)
	assert.Equal(t, models.RecordTypeTrip, q.ops[0].rt)
}

func TestChangeCapture_DeleteCarriesNoPayload(t *testing.T) {
	q := &fakeEnqueuer{}
	records := &fakeRecords{payloadErr: errors.New("must not be called for deletes")}
	c := newTestCapture(q, records)

	c.OnRowChanged("photos", 7, models.ChangeDelete)
	c.OnCommit(context.Background())

	require.Len(t, q.ops, 1)
	assert.Equal(t, models.OperationDelete, q.ops[0].op)
	assert.Nil(t, q.ops[0].payload)
}

func TestChangeCapture_ResolutionFailureSkipsChange(t *testing.T) {
	q := &fakeEnqueuer{}
	records := &fakeRecords{failRowIDs: map[int64]bool{2: true}}
	c := newTestCapture(q, records)

	c.OnRowChanged("dive_logs", 1, models.ChangeInsert)
	c.OnRowChanged("dive_logs", 2, models.ChangeInsert)
	c.OnRowChanged("dive_logs", 3, models.ChangeInsert)

	c.OnCommit(context.Background())

	require.Len(t, q.ops, 2, "the unresolvable row is skipped, the rest survive")
	assert.Equal(t, "dive_logs-1", q.ops[0].localID)
	assert.Equal(t, "dive_logs-3", q.ops[1].localID)
}

func TestChangeCapture_PayloadFailureSkipsChange(t *testing.T) {
	q := &fakeEnqueuer{}
	records := &fakeRecords{payloadErr: errors.New("row vanished")}
	c := newTestCapture(q, records)

	c.OnRowChanged("trips", 1, models.ChangeInsert)
	c.OnCommit(context.Background())

	assert.Empty(t, q.ops)
}

func TestChangeCapture_EnqueueFailureDoesNotAbortCommit(t *testing.T) {
	q := &fakeEnqueuer{err: errors.New("queue store down")}
	c := newTestCapture(q, &fakeRecords{})

	c.OnRowChanged("dive_logs", 1, models.ChangeInsert)

	// must not panic or fail: the commit already happened
	c.OnCommit(context.Background())
}

func TestChangeCapture_CommitDrainsBuffer(t *testing.T) {
	q := &fakeEnqueuer{}
	c := newTestCapture(q, &fakeRecords{})

	c.OnRowChanged("dive_logs", 1, models.ChangeInsert)
	c.OnCommit(context.Background())
	require.Len(t, q.ops, 1)

	// a second commit with no new changes enqueues nothing
	c.OnCommit(context.Background())
	assert.Len(t, q.ops, 1)
}
