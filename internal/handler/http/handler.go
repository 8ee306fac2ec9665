// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"context"

	"github.com/finnqiao/umilog-sync/internal/logger"
	"github.com/finnqiao/umilog-sync/models"
)

// RecordStorage is the storage backend behind the record store API. Save must
// be idempotent on OperationID: replaying a push after a lost response
// returns the previously stored record instead of creating a duplicate.
type RecordStorage interface {
	Save(ctx context.Context, rec models.StoredRecord) (models.StoredRecord, error)
	Get(ctx context.Context, recordID string) (models.StoredRecord, error)
	Delete(ctx context.Context, recordID string) error
	List(ctx context.Context) ([]models.StoredRecord, error)
}

// Handler bundles the route handlers of the record store API.
type Handler struct {
	storage RecordStorage
	signKey string
	logger  *logger.Logger
}

// NewHandler constructs a [Handler] over the given storage backend. signKey
// is the HMAC-SHA256 secret bearer tokens must be signed with.
func NewHandler(storage RecordStorage, signKey string, logger *logger.Logger) *Handler {
	logger.Debug().Msg("creating record store handler")
	return &Handler{
		storage: storage,
		signKey: signKey,
		logger:  logger,
	}
}
