package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/finnqiao/umilog-sync/models"
)

var (
	ErrUnauthorized = errors.New("client unauthorized")
	ErrNotFound     = errors.New("remote record not found")
)

type HTTPClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

type HTTPRecordStore struct {
	client *resty.Client

	mu    sync.RWMutex
	token string
}

// NewHTTPRecordStore builds a RecordStore over the store's HTTP API. Every
// request carries the caller-supplied context, so uploads and pulls inherit
// the engine's timeouts and cancellation.
func NewHTTPRecordStore(cfg HTTPClientConfig) *HTTPRecordStore {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)

	return &HTTPRecordStore{client: cli}
}

// SetToken installs the bearer token used on subsequent requests.
func (h *HTTPRecordStore) SetToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = strings.TrimSpace(token)
}

func (h *HTTPRecordStore) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// TokenExpired reports whether the installed bearer token has an exp claim in
// the past. The signature is deliberately not verified here; the server does
// that, this is only a cheap local hint to re-authenticate before a doomed
// request.
func (h *HTTPRecordStore) TokenExpired(now time.Time) bool {
	token := h.Token()
	if token == "" {
		return true
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return true
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false // no exp claim, assume long-lived token
	}
	return exp.Before(now)
}

func (h *HTTPRecordStore) Fetch(ctx context.Context, recordID string) (models.RemoteSnapshot, error) {
	resp, err := h.authedRequest(ctx).Get("/api/records/" + recordID)
	if err != nil {
		return models.RemoteSnapshot{}, fmt.Errorf("fetch request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.RemoteSnapshot{}, err
	}

	var snap models.RemoteSnapshot
	if err = json.Unmarshal(resp.Body(), &snap); err != nil {
		return models.RemoteSnapshot{}, fmt.Errorf("decode fetch response: %w", err)
	}
	return snap, nil
}

func (h *HTTPRecordStore) Push(ctx context.Context, req models.PushRequest) (string, error) {
	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Idempotency-Key", req.OperationID.String()).
		SetBody(req).
		Post("/api/records")
	if err != nil {
		return "", fmt.Errorf("push request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return "", err
	}

	var pushed models.PushResponse
	if err = json.Unmarshal(resp.Body(), &pushed); err != nil {
		return "", fmt.Errorf("decode push response: %w", err)
	}
	return pushed.RemoteRecordID, nil
}

func (h *HTTPRecordStore) Delete(ctx context.Context, remoteRecordID string) error {
	resp, err := h.authedRequest(ctx).Delete("/api/records/" + remoteRecordID)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	if err = mapHTTPError(resp); errors.Is(err, ErrNotFound) {
		// Already gone remotely; deletion is idempotent.
		return nil
	} else if err != nil {
		return err
	}
	return nil
}

func (h *HTTPRecordStore) States(ctx context.Context) ([]models.RemoteState, error) {
	resp, err := h.authedRequest(ctx).Get("/api/records")
	if err != nil {
		return nil, fmt.Errorf("states request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, err
	}

	var states []models.RemoteState
	if err = json.Unmarshal(resp.Body(), &states); err != nil {
		return nil, fmt.Errorf("decode states response: %w", err)
	}
	return states, nil
}

func (h *HTTPRecordStore) authedRequest(ctx context.Context) *resty.Request {
	req := h.client.R().SetContext(ctx)
	if token := h.Token(); token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	return req
}

func mapHTTPError(resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode() == http.StatusNotFound {
		return ErrNotFound
	}

	body := strings.TrimSpace(string(resp.Body()))
	if body == "" {
		body = http.StatusText(resp.StatusCode())
	}
	return fmt.Errorf("http %d: %s", resp.StatusCode(), body)
}
