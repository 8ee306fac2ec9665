package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/finnqiao/umilog-sync/internal/logger"
	"github.com/finnqiao/umilog-sync/models"
)

// ConflictRepository is the durable audit sink for detected divergences.
type ConflictRepository struct {
	db     *DB
	sb     sq.StatementBuilderType
	logger *logger.Logger
}

func NewConflictRepository(db *DB, log *logger.Logger) *ConflictRepository {
	return &ConflictRepository{
		db:     db,
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Question),
		logger: log,
	}
}

func (r *ConflictRepository) RecordConflict(ctx context.Context, c models.SyncConflict) error {
	query := r.sb.Insert("sync_conflicts").
		Columns("record_type", "local_id", "local_updated_at", "remote_updated_at",
			"remote_record_id", "detected_at").
		Values(string(c.RecordType), c.LocalID, c.LocalUpdatedAt, c.RemoteUpdatedAt,
			c.RemoteRecordID, c.DetectedAt)

	if _, err := query.RunWith(r.db.DB).ExecContext(ctx); err != nil {
		return fmt.Errorf("record sync conflict for %s/%s: %w", c.RecordType, c.LocalID, err)
	}
	return nil
}

func (r *ConflictRepository) ListConflicts(ctx context.Context) ([]models.SyncConflict, error) {
	query := r.sb.Select("record_type", "local_id", "local_updated_at", "remote_updated_at",
		"remote_record_id", "detected_at").
		From("sync_conflicts").
		OrderBy("detected_at ASC")

	rows, err := query.RunWith(r.db.DB).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sync conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []models.SyncConflict
	for rows.Next() {
		var (
			c        models.SyncConflict
			rt       string
			remoteAt sql.NullTime
		)
		if err = rows.Scan(&rt, &c.LocalID, &c.LocalUpdatedAt, &remoteAt,
			&c.RemoteRecordID, &c.DetectedAt); err != nil {
			return nil, fmt.Errorf("scan sync conflict row: %w", err)
		}
		c.RecordType = models.RecordType(rt)
		if remoteAt.Valid {
			t := remoteAt.Time
			c.RemoteUpdatedAt = &t
		}
		conflicts = append(conflicts, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync conflict rows: %w", err)
	}
	return conflicts, nil
}
