package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/finnqiao/umilog-sync/internal/logger"
	"github.com/finnqiao/umilog-sync/models"
)

// memoryRecords is the in-memory storage backend of the development record
// store. Records live for the lifetime of the process; restarting the server
// starts from an empty store.
type memoryRecords struct {
	logger *logger.Logger

	mu          sync.RWMutex
	byID        map[string]models.StoredRecord
	byOperation map[uuid.UUID]string
	byEntity    map[string]string
}

// NewMemoryRecords constructs the in-memory record storage used when no
// Postgres DSN is configured.
func NewMemoryRecords(logger *logger.Logger) *memoryRecords {
	logger.Debug().Msg("creating in-memory record storage")
	return &memoryRecords{
		logger:      logger,
		byID:        make(map[string]models.StoredRecord),
		byOperation: make(map[uuid.UUID]string),
		byEntity:    make(map[string]string),
	}
}

// Save upserts a record by (record type, local id). A replayed operation ID
// short-circuits to the record stored by the first attempt, so lost push
// responses never produce duplicates.
func (m *memoryRecords) Save(_ context.Context, rec models.StoredRecord) (models.StoredRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if recordID, ok := m.byOperation[rec.OperationID]; ok {
		return m.byID[recordID], nil
	}

	entityKey := string(rec.RecordType) + "/" + rec.LocalID
	if recordID, ok := m.byEntity[entityKey]; ok {
		rec.RecordID = recordID
	} else {
		rec.RecordID = uuid.NewString()
		m.byEntity[entityKey] = rec.RecordID
	}

	m.byID[rec.RecordID] = rec
	m.byOperation[rec.OperationID] = rec.RecordID

	return rec, nil
}

func (m *memoryRecords) Get(_ context.Context, recordID string) (models.StoredRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.byID[recordID]
	if !ok {
		return models.StoredRecord{}, ErrRecordNotFound
	}
	return rec, nil
}

func (m *memoryRecords) Delete(_ context.Context, recordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[recordID]
	if !ok {
		return ErrRecordNotFound
	}

	delete(m.byID, recordID)
	delete(m.byEntity, string(rec.RecordType)+"/"+rec.LocalID)
	return nil
}

func (m *memoryRecords) List(_ context.Context) ([]models.StoredRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]models.StoredRecord, 0, len(m.byID))
	for _, rec := range m.byID {
		records = append(records, rec)
	}
	return records, nil
}
