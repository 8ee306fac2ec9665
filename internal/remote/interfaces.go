// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package remote is the boundary to the cloud record store. The store is
// opaque: the engine only requires fetch/push/delete plus a last-modified
// timestamp per record; transport details, auth and pagination live behind
// this interface.
package remote

import (
	"context"

	"github.com/finnqiao/umilog-sync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/remote_mock.go -package=mock

// RecordStore is the remote record API used by the background uploader and
// puller.
type RecordStore interface {
	// Fetch returns the full snapshot of one remote record.
	Fetch(ctx context.Context, recordID string) (models.RemoteSnapshot, error)
	// Push uploads an encrypted record payload and returns the remote record
	// identifier. The request's operation ID acts as an idempotency key.
	Push(ctx context.Context, req models.PushRequest) (string, error)
	// Delete removes a remote record.
	Delete(ctx context.Context, remoteRecordID string) error
	// States lists lightweight per-record states for change detection.
	States(ctx context.Context) ([]models.RemoteState, error)
}
