package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/finnqiao/umilog-sync/internal/logger"
	"github.com/finnqiao/umilog-sync/models"
)

// QueueRepository persists the sync queue and the dead-letter set. It carries
// no locking of its own: the queue serializes all access.
type QueueRepository struct {
	db     *DB
	sb     sq.StatementBuilderType
	logger *logger.Logger
}

func NewQueueRepository(db *DB, log *logger.Logger) *QueueRepository {
	return &QueueRepository{
		db:     db,
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Question),
		logger: log,
	}
}

func (r *QueueRepository) Insert(ctx context.Context, op models.PendingSyncOperation) error {
	query := r.sb.Insert("sync_queue").
		Columns("id", "record_type", "local_id", "operation", "payload",
			"attempts", "priority", "created_at", "next_attempt_at", "lease_expires_at").
		Values(op.ID.String(), string(op.RecordType), op.LocalID, string(op.Operation), op.Payload,
			op.Attempts, op.Priority, op.CreatedAt, nullableTime(op.NextAttemptAt), op.LeaseExpiresAt)

	if _, err := query.RunWith(r.db.DB).ExecContext(ctx); err != nil {
		return fmt.Errorf("insert sync operation %s: %w", op.ID, err)
	}
	return nil
}

func (r *QueueRepository) Update(ctx context.Context, op models.PendingSyncOperation) error {
	query := r.sb.Update("sync_queue").
		Set("operation", string(op.Operation)).
		Set("payload", op.Payload).
		Set("attempts", op.Attempts).
		Set("priority", op.Priority).
		Set("next_attempt_at", nullableTime(op.NextAttemptAt)).
		Set("lease_expires_at", op.LeaseExpiresAt).
		Where(sq.Eq{"id": op.ID.String()})

	result, err := query.RunWith(r.db.DB).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("update sync operation %s: %w", op.ID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrOperationNotFound
	}
	return nil
}

func (r *QueueRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := r.sb.Delete("sync_queue").Where(sq.Eq{"id": id.String()})
	if _, err := query.RunWith(r.db.DB).ExecContext(ctx); err != nil {
		return fmt.Errorf("delete sync operation %s: %w", id, err)
	}
	return nil
}

func (r *QueueRepository) Get(ctx context.Context, id uuid.UUID) (models.PendingSyncOperation, error) {
	query := r.sb.Select(operationColumns...).
		From("sync_queue").
		Where(sq.Eq{"id": id.String()})

	row := query.RunWith(r.db.DB).QueryRowContext(ctx)
	op, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PendingSyncOperation{}, ErrOperationNotFound
	}
	if err != nil {
		return models.PendingSyncOperation{}, fmt.Errorf("get sync operation %s: %w", id, err)
	}
	return op, nil
}

func (r *QueueRepository) FindByEntity(ctx context.Context, rt models.RecordType, localID string) (*models.PendingSyncOperation, error) {
	query := r.sb.Select(operationColumns...).
		From("sync_queue").
		Where(sq.Eq{"record_type": string(rt), "local_id": localID})

	row := query.RunWith(r.db.DB).QueryRowContext(ctx)
	op, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find sync operation for %s/%s: %w", rt, localID, err)
	}
	return &op, nil
}

func (r *QueueRepository) ListPending(ctx context.Context) ([]models.PendingSyncOperation, error) {
	query := r.sb.Select(operationColumns...).
		From("sync_queue").
		OrderBy("priority DESC", "created_at ASC")

	rows, err := query.RunWith(r.db.DB).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending sync operations: %w", err)
	}
	defer rows.Close()

	var ops []models.PendingSyncOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync operation row: %w", err)
		}
		ops = append(ops, op)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync operation rows: %w", err)
	}
	return ops, nil
}

func (r *QueueRepository) InsertDeadLetter(ctx context.Context, dl models.DeadLetter) error {
	op := dl.Operation
	query := r.sb.Insert("sync_dead_letters").
		Columns("id", "record_type", "local_id", "operation", "payload",
			"attempts", "priority", "created_at", "reason", "failed_at").
		Values(op.ID.String(), string(op.RecordType), op.LocalID, string(op.Operation), op.Payload,
			op.Attempts, op.Priority, op.CreatedAt, dl.Reason, dl.FailedAt)

	if _, err := query.RunWith(r.db.DB).ExecContext(ctx); err != nil {
		return fmt.Errorf("insert dead letter %s: %w", op.ID, err)
	}
	return nil
}

func (r *QueueRepository) ListDeadLetters(ctx context.Context) ([]models.DeadLetter, error) {
	query := r.sb.Select("id", "record_type", "local_id", "operation", "payload",
		"attempts", "priority", "created_at", "reason", "failed_at").
		From("sync_dead_letters").
		OrderBy("failed_at ASC")

	rows, err := query.RunWith(r.db.DB).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var letters []models.DeadLetter
	for rows.Next() {
		var (
			dl       models.DeadLetter
			id       string
			rt, kind string
		)
		if err = rows.Scan(&id, &rt, &dl.Operation.LocalID, &kind, &dl.Operation.Payload,
			&dl.Operation.Attempts, &dl.Operation.Priority, &dl.Operation.CreatedAt,
			&dl.Reason, &dl.FailedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter row: %w", err)
		}
		if dl.Operation.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse dead letter id: %w", err)
		}
		dl.Operation.RecordType = models.RecordType(rt)
		dl.Operation.Operation = models.OperationKind(kind)
		letters = append(letters, dl)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead letter rows: %w", err)
	}
	return letters, nil
}

func (r *QueueRepository) Clear(ctx context.Context) error {
	if _, err := r.sb.Delete("sync_queue").RunWith(r.db.DB).ExecContext(ctx); err != nil {
		return fmt.Errorf("clear sync queue: %w", err)
	}
	if _, err := r.sb.Delete("sync_dead_letters").RunWith(r.db.DB).ExecContext(ctx); err != nil {
		return fmt.Errorf("clear dead letters: %w", err)
	}
	return nil
}

var operationColumns = []string{
	"id", "record_type", "local_id", "operation", "payload",
	"attempts", "priority", "created_at", "next_attempt_at", "lease_expires_at",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (models.PendingSyncOperation, error) {
	var (
		op       models.PendingSyncOperation
		id       string
		rt, kind string
		next     sql.NullTime
		lease    sql.NullTime
	)

	err := row.Scan(&id, &rt, &op.LocalID, &kind, &op.Payload,
		&op.Attempts, &op.Priority, &op.CreatedAt, &next, &lease)
	if err != nil {
		return models.PendingSyncOperation{}, err
	}

	if op.ID, err = uuid.Parse(id); err != nil {
		return models.PendingSyncOperation{}, fmt.Errorf("parse operation id: %w", err)
	}
	op.RecordType = models.RecordType(rt)
	op.Operation = models.OperationKind(kind)
	if next.Valid {
		op.NextAttemptAt = next.Time
	}
	if lease.Valid {
		t := lease.Time
		op.LeaseExpiresAt = &t
	}
	return op, nil
}

// nullableTime maps the zero time to NULL so "retry immediately" does not
// depend on how the driver round-trips time.Time zero values.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
