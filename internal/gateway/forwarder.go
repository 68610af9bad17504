// internal/gateway/forwarder.go
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"job-worker/internal/domain"
	httpinfra "job-worker/internal/infra/http"
	"job-worker/internal/metrics"
	"job-worker/internal/rpc"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// ErrNoWorkers is returned when neither discovery nor the fallback yields an endpoint.
var ErrNoWorkers = errors.New("no available workers")

// UnavailableError means the worker could not produce an envelope.
// Message is safe to return to callers.
type UnavailableError struct {
	Message string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// RetryPolicy controls how often a failed forward is retried.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// ForwarderConfig configures a Forwarder.
type ForwarderConfig struct {
	Transport   string
	Fallback    domain.WorkerEndpoint
	Timeout     time.Duration
	Retry       RetryPolicy
	DialOptions []grpc.DialOption
}

// Forwarder sends job requests to a randomly chosen worker over HTTP or gRPC.
type Forwarder struct {
	cfg     ForwarderConfig
	source  domain.WorkerSource
	http    *httpinfra.WorkerClient
	clients map[string]rpc.WorkerClient // cached gRPC clients by address
	conns   []*grpc.ClientConn
	mu      sync.Mutex
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewForwarder creates a forwarder. source may be nil when discovery is disabled.
func NewForwarder(cfg ForwarderConfig, source domain.WorkerSource, logger *slog.Logger) (*Forwarder, error) {
	if cfg.Transport == "" {
		cfg.Transport = TransportHTTP
	}
	if cfg.Transport != TransportHTTP && cfg.Transport != TransportGRPC {
		return nil, fmt.Errorf("unknown worker transport %q", cfg.Transport)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Forwarder{
		cfg:     cfg,
		source:  source,
		http:    httpinfra.NewWorkerClient(cfg.Timeout),
		clients: make(map[string]rpc.WorkerClient),
		logger:  logger.With("component", "forwarder"),
		tracer:  otel.Tracer("job-worker-gateway"),
	}, nil
}

// Forward delivers req to a worker, retrying transient failures per the retry policy.
func (f *Forwarder) Forward(ctx context.Context, req *domain.JobRequest) (*domain.Envelope, error) {
	ctx, span := f.tracer.Start(ctx, "gateway.Forward", trace.WithAttributes(
		attribute.String("request.id", req.RequestID),
		attribute.String("job.type", string(req.Job.Type)),
		attribute.String("transport", f.cfg.Transport),
	))
	defer span.End()

	endpoint, err := f.pick()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no worker")
		metrics.ForwardTotal.WithLabelValues(f.cfg.Transport, "no_worker").Inc()
		return nil, &UnavailableError{Message: "No worker available", Err: err}
	}

	var lastErr error
	for attempt := 0; attempt <= f.cfg.Retry.MaxRetries; attempt++ {
		if attempt > 0 {
			f.logger.Warn("retrying forward after transient error",
				"attempt", attempt,
				"max_retries", f.cfg.Retry.MaxRetries,
				"worker_id", endpoint.ID,
				"error", lastErr,
			)
			select {
			case <-ctx.Done():
				return nil, &UnavailableError{Message: "Forward cancelled", Err: ctx.Err()}
			case <-time.After(f.cfg.Retry.Backoff):
			}
		}

		env, err := f.send(ctx, endpoint, req)
		if err == nil {
			metrics.ForwardTotal.WithLabelValues(f.cfg.Transport, "success").Inc()
			return env, nil
		}
		lastErr = err
		if !f.retryable(err) {
			break
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "forward failed")
	metrics.ForwardTotal.WithLabelValues(f.cfg.Transport, "failed").Inc()
	f.logger.Error("failed to forward job", "request_id", req.RequestID, "worker_id", endpoint.ID, "error", lastErr)
	return nil, &UnavailableError{Message: unavailableMessage(lastErr), Err: lastErr}
}

func (f *Forwarder) send(ctx context.Context, ep domain.WorkerEndpoint, req *domain.JobRequest) (*domain.Envelope, error) {
	if f.cfg.Transport == TransportHTTP {
		return f.http.Send(ctx, ep.HTTPURL, req)
	}

	client, err := f.getOrCreateClient(ep.GRPCAddr)
	if err != nil {
		return nil, err
	}
	in, err := rpc.ToStruct(req)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()
	out, err := client.Dispatch(callCtx, in)
	if err != nil {
		return nil, err
	}

	var env domain.Envelope
	if err := rpc.FromStruct(out, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// pick selects a worker at random among those usable for the configured transport.
func (f *Forwarder) pick() (domain.WorkerEndpoint, error) {
	var candidates []domain.WorkerEndpoint
	if f.source != nil {
		for _, ep := range f.source.GetWorkers() {
			if f.usable(ep) {
				candidates = append(candidates, ep)
			}
		}
	}
	if len(candidates) == 0 {
		if f.usable(f.cfg.Fallback) {
			return f.cfg.Fallback, nil
		}
		return domain.WorkerEndpoint{}, ErrNoWorkers
	}
	return candidates[rand.Intn(len(candidates))], nil
}

func (f *Forwarder) usable(ep domain.WorkerEndpoint) bool {
	if f.cfg.Transport == TransportGRPC {
		return ep.GRPCAddr != ""
	}
	return ep.HTTPURL != ""
}

func (f *Forwarder) retryable(err error) bool {
	if st, ok := status.FromError(err); ok && st.Code() != grpccodes.Unknown {
		return st.Code() == grpccodes.Unavailable || st.Code() == grpccodes.DeadlineExceeded
	}
	return httpinfra.IsRetryable(err)
}

func (f *Forwarder) getOrCreateClient(addr string) (rpc.WorkerClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[addr]; ok {
		return client, nil
	}

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, f.cfg.DialOptions...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to worker at %s: %w", addr, err)
	}

	client := rpc.NewWorkerClient(conn)
	f.clients[addr] = client
	f.conns = append(f.conns, conn)
	f.logger.Info("created new gRPC client for worker", "addr", addr)
	return client, nil
}

// Close releases cached gRPC connections.
func (f *Forwarder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for _, conn := range f.conns {
		errs = append(errs, conn.Close())
	}
	f.conns = nil
	f.clients = make(map[string]rpc.WorkerClient)
	return errors.Join(errs...)
}

func unavailableMessage(err error) string {
	var se *httpinfra.StatusError
	if errors.As(err, &se) {
		return se.Error()
	}
	if st, ok := status.FromError(err); ok && st.Code() != grpccodes.Unknown {
		return fmt.Sprintf("Worker responded with %s", st.Code())
	}
	return "Worker unreachable"
}
