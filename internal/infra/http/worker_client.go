package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"job-worker/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// JobPath is the worker endpoint jobs are posted to.
const JobPath = "/api/job"

// ErrWorkerStatus is wrapped by errors caused by a non-2xx worker response.
var ErrWorkerStatus = errors.New("worker responded with non-success status")

// StatusError reports the status code a worker answered with.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Worker responded with %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error { return ErrWorkerStatus }

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool { return e.StatusCode >= 500 }

// WorkerClient posts job requests to a worker's HTTP API.
type WorkerClient struct {
	client *http.Client
	tracer trace.Tracer
}

// NewWorkerClient creates a client with the given per-request timeout.
func NewWorkerClient(timeout time.Duration) *WorkerClient {
	return &WorkerClient{
		client: &http.Client{
			Timeout: timeout,
		},
		tracer: otel.Tracer("job-worker-http-client"),
	}
}

// Send performs a single POST to {baseURL}/api/job.
func (c *WorkerClient) Send(ctx context.Context, baseURL string, req *domain.JobRequest) (*domain.Envelope, error) {
	url := strings.TrimRight(baseURL, "/") + JobPath
	ctx, span := c.tracer.Start(ctx, "client.http.Send", trace.WithAttributes(
		attribute.String("http.url", url),
		attribute.String("request.id", req.RequestID),
	))
	defer span.End()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var env domain.Envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode worker response: %w", err)
	}
	return &env, nil
}

// IsRetryable classifies transport errors the way the forwarder retries them.
// Timeouts, 5xx answers and failed dials are retried. A dial failure means
// the request never reached the worker, the HTTP analogue of gRPC Unavailable.
// Errors after the request was sent are final.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
