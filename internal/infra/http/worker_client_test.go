package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"
	"time"

	"job-worker/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerClient_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, JobPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req domain.JobRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(domain.JobResult{
			Success: true,
			Data: &domain.JobResultData{
				RequestID: req.RequestID,
				JobType:   req.Job.Type,
				Status:    domain.JobStatusCompleted,
				Output:    map[string]any{"n": json.Number("7")},
			},
		})
	}))
	defer srv.Close()

	env, err := NewWorkerClient(time.Second).Send(context.Background(), srv.URL, &domain.JobRequest{
		RequestID: "r1",
		Job:       domain.Job{Type: domain.JobTypeAnalyzeData, Payload: domain.Payload{}},
	})
	require.NoError(t, err)
	assert.True(t, env.Success)
	assert.Equal(t, "r1", env.Data.RequestID)
	assert.Equal(t, json.Number("7"), env.Data.Output["n"])
}

func TestWorkerClient_StatusErrors(t *testing.T) {
	tests := []struct {
		code      int
		retryable bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusUnprocessableEntity, false},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"detail":"nope"}`, tt.code)
		}))

		_, err := NewWorkerClient(time.Second).Send(context.Background(), srv.URL, &domain.JobRequest{})
		srv.Close()

		require.Error(t, err)
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, tt.code, se.StatusCode)
		assert.Contains(t, se.Body, "nope")
		assert.ErrorIs(t, err, ErrWorkerStatus)
		assert.Equal(t, tt.retryable, IsRetryable(err), "status %d", tt.code)
	}
}

func TestWorkerClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewWorkerClient(time.Second).Send(context.Background(), url, &domain.JobRequest{})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestIsRetryable(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
	reset := &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}

	assert.True(t, IsRetryable(fmt.Errorf("http request failed: %w", refused)))
	assert.False(t, IsRetryable(fmt.Errorf("http request failed: %w", reset)))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(errors.New("decode failure")))
}
