// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finnqiao/umilog-sync/internal/logger"
	"github.com/finnqiao/umilog-sync/internal/store"
	"github.com/finnqiao/umilog-sync/models"
)

const testSignKey = "test-sign-key"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	storage := store.NewMemoryRecords(logger.Nop())
	handler := NewHandler(storage, testSignKey, logger.Nop())

	srv := httptest.NewServer(handler.Init())
	t.Cleanup(srv.Close)
	return srv
}

func testToken(t *testing.T, signKey string, ttl time.Duration) string {
	t.Helper()

	claims := &jwt.RegisteredClaims{
		Issuer:    "umilog-recordstore",
		Subject:   "device-1",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signKey))
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func pushSighting(t *testing.T, srv *httptest.Server, token string, opID uuid.UUID, localID string, count int) models.PushResponse {
	t.Helper()

	payload, err := json.Marshal(map[string]any{
		"id":         localID,
		"dive_id":    "dive-1",
		"species_id": "manta-ray",
		"count":      count,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	require.NoError(t, err)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/records", token, models.PushRequest{
		OperationID: opID,
		RecordType:  models.RecordTypeSighting,
		LocalID:     localID,
		Payload:     payload,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pushed models.PushResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pushed))
	require.NotEmpty(t, pushed.RemoteRecordID)
	return pushed
}

func TestRecordsAPI_Authentication(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing token", token: ""},
		{name: "wrong sign key", token: testToken(t, "other-key", time.Hour)},
		{name: "expired token", token: testToken(t, testSignKey, -time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodGet, srv.URL+"/api/records", tt.token, nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestRecordsAPI_PushFetchRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	token := testToken(t, testSignKey, time.Hour)

	pushed := pushSighting(t, srv, token, uuid.New(), "sight-1", 2)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/records/"+pushed.RemoteRecordID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap models.RemoteSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, pushed.RemoteRecordID, snap.RecordID)
	assert.Equal(t, "sight-1", snap.Fields["id"])
	assert.Equal(t, float64(2), snap.Fields["count"])
	require.NotNil(t, snap.UpdatedAt, "server assigns a last-modified timestamp")
}

func TestRecordsAPI_PushIsIdempotent(t *testing.T) {
	srv := newTestServer(t)
	token := testToken(t, testSignKey, time.Hour)

	opID := uuid.New()
	first := pushSighting(t, srv, token, opID, "sight-1", 2)
	replay := pushSighting(t, srv, token, opID, "sight-1", 2)

	assert.Equal(t, first.RemoteRecordID, replay.RemoteRecordID, "replaying a push never creates a duplicate")

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/records", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var states []models.RemoteState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&states))
	assert.Len(t, states, 1)
}

func TestRecordsAPI_RepushUpdatesSameRecord(t *testing.T) {
	srv := newTestServer(t)
	token := testToken(t, testSignKey, time.Hour)

	first := pushSighting(t, srv, token, uuid.New(), "sight-1", 2)
	second := pushSighting(t, srv, token, uuid.New(), "sight-1", 7)

	assert.Equal(t, first.RemoteRecordID, second.RemoteRecordID, "same entity keeps its remote identity")

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/records/"+first.RemoteRecordID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap models.RemoteSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, float64(7), snap.Fields["count"])
}

func TestRecordsAPI_Delete(t *testing.T) {
	srv := newTestServer(t)
	token := testToken(t, testSignKey, time.Hour)

	pushed := pushSighting(t, srv, token, uuid.New(), "sight-1", 2)

	resp := doRequest(t, http.MethodDelete, srv.URL+"/api/records/"+pushed.RemoteRecordID, token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/records/"+pushed.RemoteRecordID, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, http.MethodDelete, srv.URL+"/api/records/"+pushed.RemoteRecordID, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "deleting twice reports not found")
}

func TestRecordsAPI_FetchUnknownRecord(t *testing.T) {
	srv := newTestServer(t)
	token := testToken(t, testSignKey, time.Hour)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/records/no-such-record", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRecordsAPI_PushValidation(t *testing.T) {
	srv := newTestServer(t)
	token := testToken(t, testSignKey, time.Hour)

	t.Run("unknown record type", func(t *testing.T) {
		resp := doRequest(t, http.MethodPost, srv.URL+"/api/records", token, models.PushRequest{
			OperationID: uuid.New(),
			RecordType:  "wishlist_item",
			LocalID:     "x-1",
			Payload:     []byte(`{}`),
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing operation id and idempotency key", func(t *testing.T) {
		resp := doRequest(t, http.MethodPost, srv.URL+"/api/records", token, models.PushRequest{
			RecordType: models.RecordTypeSighting,
			LocalID:    "sight-1",
			Payload:    []byte(`{}`),
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed payload", func(t *testing.T) {
		resp := doRequest(t, http.MethodPost, srv.URL+"/api/records", token, models.PushRequest{
			OperationID: uuid.New(),
			RecordType:  models.RecordTypeSighting,
			LocalID:     "sight-1",
			Payload:     []byte(`not json`),
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRecordsAPI_IdempotencyKeyHeaderFallback(t *testing.T) {
	srv := newTestServer(t)
	token := testToken(t, testSignKey, time.Hour)

	opID := uuid.New()
	body, err := json.Marshal(map[string]any{
		"record_type": models.RecordTypeSighting,
		"local_id":    "sight-1",
		"payload":     []byte(`{"id":"sight-1"}`),
	})
	require.NoError(t, err)

	push := func() models.PushResponse {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/records", bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", opID.String())

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var pushed models.PushResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&pushed))
		return pushed
	}

	first := push()
	replay := push()
	assert.Equal(t, first.RemoteRecordID, replay.RemoteRecordID)
}
