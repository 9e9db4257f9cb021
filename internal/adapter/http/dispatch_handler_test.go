package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mehmetymw/failover-dispatch/internal/adapter/memory"
	"github.com/mehmetymw/failover-dispatch/internal/app"
	"github.com/mehmetymw/failover-dispatch/internal/domain"
	"github.com/mehmetymw/failover-dispatch/internal/port"
)

type stubProvider struct {
	name string
	fail bool

	mu    sync.Mutex
	calls int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Send(_ context.Context, _ *domain.Message) (*port.ProviderResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.fail {
		return nil, domain.ErrProviderUnavailable
	}
	return &port.ProviderResponse{MessageID: p.name + "-msg"}, nil
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type stubPublisher struct {
	keys []string
	err  error
}

func (p *stubPublisher) Enqueue(_ context.Context, key string, _ *domain.Message) error {
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, key)
	return nil
}

func (p *stubPublisher) Close() error { return nil }

type stubAttemptReader struct {
	attempts map[string][]*domain.Attempt
}

func (r *stubAttemptReader) ListByKey(_ context.Context, key string) ([]*domain.Attempt, error) {
	return r.attempts[key], nil
}

func newTestRouter(t *testing.T, providers []*stubProvider, publisher port.DispatchPublisher, opts ...app.Option) *gin.Engine {
	t.Helper()
	return newTestRouterWithAttempts(t, providers, publisher, nil, opts...)
}

func newTestRouterWithAttempts(t *testing.T, providers []*stubProvider, publisher port.DispatchPublisher, attempts port.AttemptReader, opts ...app.Option) *gin.Engine {
	t.Helper()

	ps := make([]port.Provider, len(providers))
	for i, p := range providers {
		ps[i] = p
	}

	coordinator, err := app.NewDispatchCoordinator(memory.NewStatusStore(), ps, opts...)
	require.NoError(t, err)

	r := NewRouter(RouterDeps{
		DispatchHandler: NewDispatchHandler(coordinator, publisher, attempts, time.Second),
		HealthHandler:   NewHealthHandler(nil, nil),
		MetricsHandler:  NewMetricsHandler(coordinator.Metrics()),
		Logger:          zap.NewNop(),
	})
	gin.SetMode(gin.TestMode)
	return r
}

func postJSON(r http.Handler, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func getPath(r http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateDispatch_InvalidJSON(t *testing.T) {
	r := newTestRouter(t, []*stubProvider{{name: "p1"}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatches", bytes.NewReader([]byte(`{"invalid"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Error)
}

func TestCreateDispatch_MissingKey(t *testing.T) {
	p1 := &stubProvider{name: "p1"}
	r := newTestRouter(t, []*stubProvider{p1}, nil)

	w := postJSON(r, "/api/v1/dispatches", CreateDispatchRequest{Recipient: "a@example.com", Body: "hi"}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrEmptyIdempotencyKey.Error())
	assert.Equal(t, 0, p1.callCount())
}

func TestCreateDispatch_Sent(t *testing.T) {
	r := newTestRouter(t, []*stubProvider{{name: "p1", fail: true}, {name: "p2"}}, nil)

	w := postJSON(r, "/api/v1/dispatches", CreateDispatchRequest{
		IdempotencyKey: "unique-key-123",
		Recipient:      "a@example.com",
		Body:           "hi",
	}, nil)

	require.Equal(t, http.StatusOK, w.Code)

	var resp DispatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unique-key-123", resp.IdempotencyKey)
	assert.Equal(t, "sent", resp.Status)
	assert.Equal(t, "p2", resp.Provider)
	assert.False(t, resp.Duplicate)
	require.Len(t, resp.Attempts, 2)
	assert.Equal(t, "p1", resp.Attempts[0].Provider)
	assert.False(t, resp.Attempts[0].Succeeded)
	assert.True(t, resp.Attempts[1].Succeeded)
}

func TestCreateDispatch_HeaderKeyAndDuplicate(t *testing.T) {
	p1 := &stubProvider{name: "p1"}
	r := newTestRouter(t, []*stubProvider{p1}, nil)
	headers := map[string]string{IdempotencyKeyHeader: "hdr-key"}
	body := CreateDispatchRequest{Recipient: "a@example.com", Body: "hi"}

	first := postJSON(r, "/api/v1/dispatches", body, headers)
	second := postJSON(r, "/api/v1/dispatches", body, headers)

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)

	var resp DispatchResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.Equal(t, "hdr-key", resp.IdempotencyKey)
	assert.Equal(t, "sent", resp.Status)
	assert.True(t, resp.Duplicate)
	assert.Empty(t, resp.Attempts)
	assert.Equal(t, 1, p1.callCount())
}

func TestCreateDispatch_BlankBodyKeyFallsBackToHeader(t *testing.T) {
	r := newTestRouter(t, []*stubProvider{{name: "p1"}}, nil)

	w := postJSON(r, "/api/v1/dispatches", CreateDispatchRequest{
		IdempotencyKey: "   ",
		Recipient:      "a@example.com",
		Body:           "hi",
	}, map[string]string{IdempotencyKeyHeader: "hdr-key"})

	require.Equal(t, http.StatusOK, w.Code)

	var resp DispatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "hdr-key", resp.IdempotencyKey)
	assert.Equal(t, "sent", resp.Status)
}

func TestCreateDispatch_KeyTooLong(t *testing.T) {
	p1 := &stubProvider{name: "p1"}
	r := newTestRouter(t, []*stubProvider{p1}, nil)

	w := postJSON(r, "/api/v1/dispatches", CreateDispatchRequest{
		IdempotencyKey: strings.Repeat("k", domain.MaxIdempotencyKeyLength+1),
		Recipient:      "a@example.com",
		Body:           "hi",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, p1.callCount())
}

func TestCreateDispatch_AllFail(t *testing.T) {
	r := newTestRouter(t, []*stubProvider{{name: "p1", fail: true}, {name: "p2", fail: true}}, nil, app.WithRetryLimit(2))

	w := postJSON(r, "/api/v1/dispatches", CreateDispatchRequest{IdempotencyKey: "k1", Recipient: "a@example.com", Body: "hi"}, nil)

	require.Equal(t, http.StatusOK, w.Code)

	var resp DispatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "failed", resp.Status)
	assert.Len(t, resp.Attempts, 4)
}

func TestCreateDispatch_Async(t *testing.T) {
	p1 := &stubProvider{name: "p1"}
	pub := &stubPublisher{}
	r := newTestRouter(t, []*stubProvider{p1}, pub)

	w := postJSON(r, "/api/v1/dispatches?async=true", CreateDispatchRequest{IdempotencyKey: "k1", Recipient: "a@example.com", Body: "hi"}, nil)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unknown", resp.Status)
	assert.Equal(t, []string{"k1"}, pub.keys)
	assert.Equal(t, 0, p1.callCount())
}

func TestCreateDispatch_AsyncDisabled(t *testing.T) {
	r := newTestRouter(t, []*stubProvider{{name: "p1"}}, nil)

	w := postJSON(r, "/api/v1/dispatches?async=true", CreateDispatchRequest{IdempotencyKey: "k1", Recipient: "a@example.com", Body: "hi"}, nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCreateDispatch_AsyncPublishError(t *testing.T) {
	r := newTestRouter(t, []*stubProvider{{name: "p1"}}, &stubPublisher{err: errors.New("broker down")})

	w := postJSON(r, "/api/v1/dispatches?async=true", CreateDispatchRequest{IdempotencyKey: "k1", Recipient: "a@example.com", Body: "hi"}, nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetStatus(t *testing.T) {
	r := newTestRouter(t, []*stubProvider{{name: "p1"}}, nil)

	w := getPath(r, "/api/v1/dispatches/never-seen")
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "never-seen", resp.IdempotencyKey)
	assert.Equal(t, "unknown", resp.Status)

	postJSON(r, "/api/v1/dispatches", CreateDispatchRequest{IdempotencyKey: "never-seen", Recipient: "a@example.com", Body: "hi"}, nil)

	w = getPath(r, "/api/v1/dispatches/never-seen")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "sent", resp.Status)
}

func TestCreateBatch(t *testing.T) {
	r := newTestRouter(t, []*stubProvider{{name: "p1"}}, nil)

	w := postJSON(r, "/api/v1/dispatches/batch", CreateBatchDispatchRequest{
		Dispatches: []CreateDispatchRequest{
			{IdempotencyKey: "unique-key-123", Recipient: "a@example.com", Body: "one"},
			{IdempotencyKey: "unique-key-456", Recipient: "b@example.com", Body: "two"},
			{IdempotencyKey: "unique-key-123", Recipient: "a@example.com", Body: "one"},
		},
		Concurrency: 2,
	}, nil)

	require.Equal(t, http.StatusOK, w.Code)

	var resp BatchDispatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "unique-key-123", resp.Results[0].IdempotencyKey)
	assert.Equal(t, "unique-key-456", resp.Results[1].IdempotencyKey)
	for _, res := range resp.Results {
		assert.Equal(t, "sent", res.Status)
	}

	duplicates := 0
	for _, res := range resp.Results {
		if res.Duplicate {
			duplicates++
		}
	}
	assert.Equal(t, 1, duplicates)
}

func TestCreateBatch_Empty(t *testing.T) {
	r := newTestRouter(t, []*stubProvider{{name: "p1"}}, nil)

	w := postJSON(r, "/api/v1/dispatches/batch", CreateBatchDispatchRequest{}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAttempts(t *testing.T) {
	attempt := domain.NewAttempt("k1", 1, "p1", 5*time.Millisecond, time.Now())
	attempt.MarkSucceeded("m-1")
	reader := &stubAttemptReader{attempts: map[string][]*domain.Attempt{"k1": {attempt}}}
	r := newTestRouterWithAttempts(t, []*stubProvider{{name: "p1"}}, nil, reader)

	w := getPath(r, "/api/v1/dispatches/k1/attempts")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListResponse[AttemptResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "p1", resp.Data[0].Provider)
	assert.Equal(t, int64(5), resp.Data[0].LatencyMs)
	require.NotNil(t, resp.Data[0].ProviderMessageID)
	assert.Equal(t, "m-1", *resp.Data[0].ProviderMessageID)

	w = getPath(r, "/api/v1/dispatches/missing/attempts")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAttempts_Disabled(t *testing.T) {
	r := newTestRouter(t, []*stubProvider{{name: "p1"}}, nil)

	w := getPath(r, "/api/v1/dispatches/k1/attempts")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetMetrics(t *testing.T) {
	r := newTestRouter(t, []*stubProvider{{name: "p1"}}, nil)
	postJSON(r, "/api/v1/dispatches", CreateDispatchRequest{IdempotencyKey: "k1", Recipient: "a@example.com", Body: "hi"}, nil)

	w := getPath(r, "/api/v1/metrics")
	require.Equal(t, http.StatusOK, w.Code)

	var snap app.MetricsSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, int64(1), snap.Dispatches.Sent)
	assert.Equal(t, int64(1), snap.Providers["p1"].Succeeded)
}
