// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/finnqiao/umilog-sync/internal/logger"
	"github.com/finnqiao/umilog-sync/internal/store"
	"github.com/finnqiao/umilog-sync/models"
)

// pushRecord handles POST /api/records. The request body is a push request
// whose payload holds the record's fields object; sealed values inside it are
// stored verbatim. The operation ID (body, or the Idempotency-Key header when
// the body omits it) makes replays safe: pushing the same operation twice
// returns the same remote record ID.
func (h *Handler) pushRecord(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)
	ctx := r.Context()

	var req models.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Err(err).Msg("error decoding push request")
		http.Error(w, "malformed push request", http.StatusBadRequest)
		return
	}

	if req.OperationID == uuid.Nil {
		if key := r.Header.Get("Idempotency-Key"); key != "" {
			parsed, err := uuid.Parse(key)
			if err != nil {
				log.Err(err).Msg("malformed idempotency key")
				http.Error(w, "malformed idempotency key", http.StatusBadRequest)
				return
			}
			req.OperationID = parsed
		}
	}
	if req.OperationID == uuid.Nil || req.LocalID == "" {
		http.Error(w, "operation_id and local_id are required", http.StatusBadRequest)
		return
	}
	if _, err := models.NewRecord(req.RecordType); err != nil {
		log.Err(err).Str("record_type", string(req.RecordType)).Msg("unknown record type")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var fields map[string]any
	if err := json.Unmarshal(req.Payload, &fields); err != nil {
		log.Err(err).Msg("error decoding record payload")
		http.Error(w, "malformed record payload", http.StatusBadRequest)
		return
	}

	saved, err := h.storage.Save(ctx, models.StoredRecord{
		RecordType:  req.RecordType,
		LocalID:     req.LocalID,
		Fields:      fields,
		UpdatedAt:   time.Now().UTC(),
		OperationID: req.OperationID,
	})
	if err != nil {
		log.Err(err).Msg("error saving record")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, models.PushResponse{RemoteRecordID: saved.RecordID})
}

// fetchRecord handles GET /api/records/{recordID}.
func (h *Handler) fetchRecord(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	recordID := chi.URLParam(r, "recordID")
	rec, err := h.storage.Get(r.Context(), recordID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		log.Err(err).Str("record_id", recordID).Msg("error loading record")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, rec.Snapshot())
}

// deleteRecord handles DELETE /api/records/{recordID}.
func (h *Handler) deleteRecord(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	recordID := chi.URLParam(r, "recordID")
	if err := h.storage.Delete(r.Context(), recordID); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		log.Err(err).Str("record_id", recordID).Msg("error deleting record")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// listStates handles GET /api/records and returns the lightweight state
// listing the puller uses to decide which records to fetch.
func (h *Handler) listStates(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	records, err := h.storage.List(r.Context())
	if err != nil {
		log.Err(err).Msg("error listing records")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	states := make([]models.RemoteState, 0, len(records))
	for _, rec := range records {
		states = append(states, rec.State())
	}

	writeJSON(w, http.StatusOK, states)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
