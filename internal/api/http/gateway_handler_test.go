package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"job-worker/internal/domain"
	"job-worker/internal/gateway"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockForwarder implements domain.Forwarder for testing
type mockForwarder struct {
	mu          sync.Mutex
	forwardFunc func(ctx context.Context, req *domain.JobRequest) (*domain.Envelope, error)
	received    []*domain.JobRequest
}

func (m *mockForwarder) Forward(ctx context.Context, req *domain.JobRequest) (*domain.Envelope, error) {
	m.mu.Lock()
	m.received = append(m.received, req)
	m.mu.Unlock()
	return m.forwardFunc(ctx, req)
}

func echoForwarder() *mockForwarder {
	return &mockForwarder{
		forwardFunc: func(_ context.Context, req *domain.JobRequest) (*domain.Envelope, error) {
			return &domain.Envelope{
				Success: true,
				Data: &domain.JobResultData{
					RequestID: req.RequestID,
					JobType:   req.Job.Type,
					Status:    domain.JobStatusCompleted,
					Output:    map[string]any{"ok": true},
					Meta:      map[string]any{"handler": "mock"},
				},
			}, nil
		},
	}
}

func newGatewayServer(t *testing.T, fwd domain.Forwarder, opts GatewayOptions) *httptest.Server {
	t.Helper()
	if opts.AllowedOrigins == nil {
		opts.AllowedOrigins = []string{"*"}
	}
	router := NewGatewayRouter(
		NewGatewayHandler(newTestDispatcher(t), fwd, testLogger()),
		NewHealthHandler("test"),
		opts,
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func decodeEnvelope(t *testing.T, body []byte) domain.Envelope {
	t.Helper()
	var env domain.Envelope
	require.NoError(t, json.Unmarshal(body, &env))
	return env
}

func TestGateway_ForwardsValidJob(t *testing.T) {
	fwd := echoForwarder()
	srv := newGatewayServer(t, fwd, GatewayOptions{})

	resp, body := postJSON(t, srv.URL+"/api/worker", `{"requestId":"abc","job":{"type":"generateImage","payload":{"prompt":"p"}}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, body)
	assert.True(t, env.Success)
	assert.Equal(t, "abc", env.Data.RequestID)
	require.Len(t, fwd.received, 1)
	assert.Equal(t, "p", fwd.received[0].Job.Payload["prompt"])
}

func TestGateway_DefaultsRequestID(t *testing.T) {
	fwd := echoForwarder()
	srv := newGatewayServer(t, fwd, GatewayOptions{})

	resp, body := postJSON(t, srv.URL+"/api/worker", `{"job":{"type":"analyzeData","payload":{}}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, body)
	_, err := uuid.Parse(env.Data.RequestID)
	assert.NoError(t, err, "request id %q should be a uuid", env.Data.RequestID)
}

func TestGateway_RejectsInvalidJobs(t *testing.T) {
	bodies := map[string]string{
		"no prompt":    `{"job":{"type":"generateImage","payload":{}}}`,
		"unknown type": `{"job":{"type":"nope","payload":{}}}`,
		"no job":       `{}`,
		"not json":     `hello`,
	}

	fwd := echoForwarder()
	srv := newGatewayServer(t, fwd, GatewayOptions{})
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			resp, raw := postJSON(t, srv.URL+"/api/worker", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.JSONEq(t, `{"success":false,"error":{"code":"invalid_job","message":"Job payload invalid or missing."}}`, string(raw))
		})
	}
	assert.Empty(t, fwd.received)
}

func TestGateway_WorkerUnavailable(t *testing.T) {
	fwd := &mockForwarder{
		forwardFunc: func(context.Context, *domain.JobRequest) (*domain.Envelope, error) {
			return nil, &gateway.UnavailableError{Message: "Worker responded with 503", Err: errors.New("503")}
		},
	}
	srv := newGatewayServer(t, fwd, GatewayOptions{})

	resp, raw := postJSON(t, srv.URL+"/api/worker", `{"job":{"type":"analyzeData"}}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.JSONEq(t, `{"success":false,"error":{"code":"worker_unavailable","message":"Worker responded with 503"}}`, string(raw))
}

func TestGateway_UnexpectedError(t *testing.T) {
	fwd := &mockForwarder{
		forwardFunc: func(context.Context, *domain.JobRequest) (*domain.Envelope, error) {
			return nil, errors.New("kaboom")
		},
	}
	srv := newGatewayServer(t, fwd, GatewayOptions{})

	resp, raw := postJSON(t, srv.URL+"/api/worker", `{"job":{"type":"analyzeData"}}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "worker_route_error", decodeEnvelope(t, raw).Error.Code)
}

func TestGateway_UnsuccessfulEnvelopeIsBadGateway(t *testing.T) {
	fwd := &mockForwarder{
		forwardFunc: func(context.Context, *domain.JobRequest) (*domain.Envelope, error) {
			return &domain.Envelope{Success: false, Error: &domain.JobError{Code: "x", Message: "y"}}, nil
		},
	}
	srv := newGatewayServer(t, fwd, GatewayOptions{})

	resp, _ := postJSON(t, srv.URL+"/api/worker", `{"job":{"type":"analyzeData"}}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestGateway_RateLimited(t *testing.T) {
	srv := newGatewayServer(t, echoForwarder(), GatewayOptions{RateLimit: 0.001, RateBurst: 1})

	resp, _ := postJSON(t, srv.URL+"/api/worker", `{"job":{"type":"analyzeData"}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw := postJSON(t, srv.URL+"/api/worker", `{"job":{"type":"analyzeData"}}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate_limited", decodeEnvelope(t, raw).Error.Code)

	// Health is not rate limited.
	hresp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	hresp.Body.Close()
	assert.Equal(t, http.StatusOK, hresp.StatusCode)
}

func TestGateway_CORSPreflight(t *testing.T) {
	srv := newGatewayServer(t, echoForwarder(), GatewayOptions{AllowedOrigins: []string{"http://localhost:3001"}})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/worker", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3001")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:3001", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHealthHandler(t *testing.T) {
	h := NewHealthHandler("staging")
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	h.startedAt = start
	h.now = func() time.Time { return start.Add(90 * time.Second) }

	rec := httptest.NewRecorder()
	h.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"success": true,
		"data": {"status": "ok", "timestamp": "2026-01-02T03:05:35.000Z", "uptime": 90, "environment": "staging"}
	}`, rec.Body.String())
}
