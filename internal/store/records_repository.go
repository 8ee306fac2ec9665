package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/finnqiao/umilog-sync/internal/logger"
	"github.com/finnqiao/umilog-sync/models"
)

// recordTables maps each syncable record type to its local table. The same
// names form the capture allow-list; ResolveIdentifier refuses anything else
// so a table name can never be interpolated from untrusted input.
var recordTables = map[models.RecordType]string{
	models.RecordTypeDiveLog:       "dive_logs",
	models.RecordTypeSighting:      "sightings",
	models.RecordTypePhoto:         "photos",
	models.RecordTypeCertification: "certifications",
	models.RecordTypeSiteState:     "site_states",
	models.RecordTypeTrip:          "trips",
}

var tableRecordTypes = func() map[string]models.RecordType {
	m := make(map[string]models.RecordType, len(recordTables))
	for rt, table := range recordTables {
		m[table] = rt
	}
	return m
}()

// RecordsRepository is the engine's view of the local entity tables: the
// write-back target for remote-wins resolutions, the payload source for
// uploads, and the stable-identifier lookup used by change capture.
//
// Rows are soft-deleted (deleted flag) rather than removed, so a deleted
// row's stable identifier stays resolvable in the post-commit hook until the
// delete has replicated.
type RecordsRepository struct {
	db     *DB
	sb     sq.StatementBuilderType
	logger *logger.Logger
}

func NewRecordsRepository(db *DB, log *logger.Logger) *RecordsRepository {
	return &RecordsRepository{
		db:     db,
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Question),
		logger: log,
	}
}

// Upsert writes rec into its entity table, reviving a soft-deleted row if the
// identifier is reused.
func (r *RecordsRepository) Upsert(ctx context.Context, rec models.SyncableRecord) error {
	table, ok := recordTables[rec.Type()]
	if !ok {
		return fmt.Errorf("%w: %q", models.ErrUnknownRecordType, rec.Type())
	}

	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", rec.Type(), err)
	}

	query := r.sb.Insert(table).
		Columns("local_id", "doc", "updated_at").
		Values(rec.LocalID(), string(doc), rec.ModifiedAt()).
		Suffix("ON CONFLICT(local_id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at, deleted = FALSE")

	if _, err = query.RunWith(r.db.DB).ExecContext(ctx); err != nil {
		return fmt.Errorf("upsert %s record %s: %w", rec.Type(), rec.LocalID(), err)
	}
	return nil
}

// Get loads one live record. Soft-deleted rows report ErrRecordNotFound.
func (r *RecordsRepository) Get(ctx context.Context, rt models.RecordType, localID string) (models.SyncableRecord, error) {
	table, ok := recordTables[rt]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownRecordType, rt)
	}

	query := r.sb.Select("doc").
		From(table).
		Where(sq.Eq{"local_id": localID, "deleted": false})

	var doc string
	err := query.RunWith(r.db.DB).QueryRowContext(ctx).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s record %s: %w", rt, localID, err)
	}

	rec, err := models.NewRecord(rt)
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal([]byte(doc), rec); err != nil {
		return nil, fmt.Errorf("decode %s record %s: %w", rt, localID, err)
	}
	return rec, nil
}

// SoftDelete flags a record deleted while keeping its row (and stable
// identifier) addressable.
func (r *RecordsRepository) SoftDelete(ctx context.Context, rt models.RecordType, localID string) error {
	table, ok := recordTables[rt]
	if !ok {
		return fmt.Errorf("%w: %q", models.ErrUnknownRecordType, rt)
	}

	query := r.sb.Update(table).
		Set("deleted", true).
		Where(sq.Eq{"local_id": localID})

	result, err := query.RunWith(r.db.DB).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("soft delete %s record %s: %w", rt, localID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// ResolveIdentifier maps an internal row number to the row's stable entity
// identifier by reading the committed state. Fails for rows hard-deleted
// before the lookup; the capture layer treats that as a skippable condition.
func (r *RecordsRepository) ResolveIdentifier(ctx context.Context, table string, rowID int64) (string, error) {
	if _, ok := tableRecordTypes[table]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}

	query := r.sb.Select("local_id").
		From(table).
		Where(sq.Eq{"rowid": rowID})

	var localID string
	err := query.RunWith(r.db.DB).QueryRowContext(ctx).Scan(&localID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrRecordNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve identifier for %s row %d: %w", table, rowID, err)
	}
	return localID, nil
}

// LoadPayload returns the committed record serialized for upload.
func (r *RecordsRepository) LoadPayload(ctx context.Context, rt models.RecordType, localID string) ([]byte, error) {
	table, ok := recordTables[rt]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownRecordType, rt)
	}

	query := r.sb.Select("doc").
		From(table).
		Where(sq.Eq{"local_id": localID})

	var doc string
	err := query.RunWith(r.db.DB).QueryRowContext(ctx).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load payload for %s/%s: %w", rt, localID, err)
	}
	return []byte(doc), nil
}

// LinkRemote records the remote record identifier assigned by the store on
// first push, so later deletes can address the remote copy.
func (r *RecordsRepository) LinkRemote(ctx context.Context, rt models.RecordType, localID, remoteID string) error {
	table, ok := recordTables[rt]
	if !ok {
		return fmt.Errorf("%w: %q", models.ErrUnknownRecordType, rt)
	}

	query := r.sb.Update(table).
		Set("remote_id", remoteID).
		Where(sq.Eq{"local_id": localID})

	if _, err := query.RunWith(r.db.DB).ExecContext(ctx); err != nil {
		return fmt.Errorf("link remote id for %s/%s: %w", rt, localID, err)
	}
	return nil
}

// RemoteID returns the linked remote record identifier, or "" when the record
// was never pushed.
func (r *RecordsRepository) RemoteID(ctx context.Context, rt models.RecordType, localID string) (string, error) {
	table, ok := recordTables[rt]
	if !ok {
		return "", fmt.Errorf("%w: %q", models.ErrUnknownRecordType, rt)
	}

	query := r.sb.Select("remote_id").
		From(table).
		Where(sq.Eq{"local_id": localID})

	var remoteID string
	err := query.RunWith(r.db.DB).QueryRowContext(ctx).Scan(&remoteID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("remote id for %s/%s: %w", rt, localID, err)
	}
	return remoteID, nil
}
