// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/finnqiao/umilog-sync/internal/logger"
	"github.com/finnqiao/umilog-sync/models"
)

// NewConnectPostgres opens the record store's Postgres backend and verifies
// the connection with a ping.
func NewConnectPostgres(ctx context.Context, dsn string, log *logger.Logger) (*DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Err(err).Str("func", "NewConnectPostgres").Msg("error occured during database connection")
		return nil, fmt.Errorf("error occured during database connection: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(4)

	if err = conn.PingContext(ctx); err != nil {
		log.Err(err).Str("func", "NewConnectPostgres").Msg("error connecting database (ping)")
		return nil, err
	}
	log.Info().Str("func", "NewConnectPostgres").Msg("connected to database successfully")

	return &DB{
		DB:     conn,
		logger: log,
	}, nil
}

const createServerRecordsTable = `
CREATE TABLE IF NOT EXISTS server_records (
    record_id    TEXT PRIMARY KEY,
    record_type  TEXT NOT NULL,
    local_id     TEXT NOT NULL,
    fields       JSONB NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL,
    operation_id TEXT NOT NULL UNIQUE,
    UNIQUE (record_type, local_id)
)`

// pgRecords is the Postgres-backed storage of the development record store.
type pgRecords struct {
	logger *logger.Logger
	db     *DB
	sq     sq.StatementBuilderType
}

// NewPostgresRecords constructs the Postgres record storage, creating the
// backing table when it does not exist yet.
func NewPostgresRecords(ctx context.Context, db *DB, logger *logger.Logger) (*pgRecords, error) {
	logger.Debug().Msg("creating postgres record storage")

	if _, err := db.ExecContext(ctx, createServerRecordsTable); err != nil {
		return nil, fmt.Errorf("create server_records table: %w", err)
	}

	return &pgRecords{
		logger: logger,
		db:     db,
		sq:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar).RunWith(db.DB),
	}, nil
}

// Save upserts a record by (record type, local id). The unique constraint on
// operation_id makes push replays idempotent: a violation means the first
// attempt already landed, so the stored record is returned as-is.
func (r *pgRecords) Save(ctx context.Context, rec models.StoredRecord) (models.StoredRecord, error) {
	log := logger.FromContext(ctx)

	if existing, err := r.findByOperation(ctx, rec.OperationID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrRecordNotFound) {
		return models.StoredRecord{}, err
	}

	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return models.StoredRecord{}, fmt.Errorf("encode record fields: %w", err)
	}

	rec.RecordID = uuid.NewString()
	row := r.sq.Insert("server_records").
		Columns("record_id", "record_type", "local_id", "fields", "updated_at", "operation_id").
		Values(rec.RecordID, rec.RecordType, rec.LocalID, string(fields), rec.UpdatedAt, rec.OperationID.String()).
		Suffix(`ON CONFLICT (record_type, local_id) DO UPDATE
			SET fields = EXCLUDED.fields,
			    updated_at = EXCLUDED.updated_at,
			    operation_id = EXCLUDED.operation_id
			RETURNING record_id`).
		QueryRowContext(ctx)

	if err = row.Scan(&rec.RecordID); err != nil {
		switch postgresError(err) {
		case pgerrcode.UniqueViolation:
			// Concurrent replay of the same operation won the race.
			return r.findByOperation(ctx, rec.OperationID)
		default:
			log.Err(err).Str("func", "*pgRecords.Save").Msg("error: upsert failed")
			return models.StoredRecord{}, fmt.Errorf("unexpected DB error: %w", err)
		}
	}

	return rec, nil
}

func (r *pgRecords) Get(ctx context.Context, recordID string) (models.StoredRecord, error) {
	row := r.selectRecords().Where(sq.Eq{"record_id": recordID}).QueryRowContext(ctx)
	return scanStoredRecord(row)
}

func (r *pgRecords) Delete(ctx context.Context, recordID string) error {
	res, err := r.sq.Delete("server_records").
		Where(sq.Eq{"record_id": recordID}).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("unexpected DB error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *pgRecords) List(ctx context.Context) ([]models.StoredRecord, error) {
	rows, err := r.selectRecords().OrderBy("updated_at").QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("unexpected DB error: %w", err)
	}
	defer rows.Close()

	var records []models.StoredRecord
	for rows.Next() {
		rec, err := scanStoredRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *pgRecords) findByOperation(ctx context.Context, operationID uuid.UUID) (models.StoredRecord, error) {
	row := r.selectRecords().Where(sq.Eq{"operation_id": operationID.String()}).QueryRowContext(ctx)
	return scanStoredRecord(row)
}

func (r *pgRecords) selectRecords() sq.SelectBuilder {
	return r.sq.Select("record_id", "record_type", "local_id", "fields", "updated_at", "operation_id").
		From("server_records")
}

func scanStoredRecord(row rowScanner) (models.StoredRecord, error) {
	var rec models.StoredRecord
	var fields string
	var operationID string

	err := row.Scan(&rec.RecordID, &rec.RecordType, &rec.LocalID, &fields, &rec.UpdatedAt, &operationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StoredRecord{}, ErrRecordNotFound
	}
	if err != nil {
		return models.StoredRecord{}, err
	}

	if err = json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
		return models.StoredRecord{}, fmt.Errorf("decode record fields: %w", err)
	}
	rec.OperationID, err = uuid.Parse(operationID)
	if err != nil {
		return models.StoredRecord{}, fmt.Errorf("decode operation id: %w", err)
	}

	return rec, nil
}

func postgresError(err error) string {
	var pgErr *pgconn.PgError
	// if postgres returns error
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}

	return ""
}
