package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"job-worker/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HealthPath is appended to the API host to build the probe URL.
const HealthPath = "/api/health"

type healthProber struct {
	client *http.Client
	url    string
	logger *slog.Logger
	tracer trace.Tracer
}

// NewHealthProber creates a prober for {baseURL}/api/health.
func NewHealthProber(baseURL string, timeout time.Duration, logger *slog.Logger) domain.HealthProber {
	return &healthProber{
		client: &http.Client{
			Timeout: timeout,
		},
		url:    strings.TrimRight(baseURL, "/") + HealthPath,
		logger: logger.With("component", "health-prober"),
		tracer: otel.Tracer("job-worker-health-prober"),
	}
}

// Probe performs a single GET. Any status code counts as a result; transport
// errors produce an unknown status and are only logged at debug level.
func (p *healthProber) Probe(ctx context.Context) domain.HealthStatus {
	ctx, span := p.tracer.Start(ctx, "prober.Probe",
		trace.WithAttributes(attribute.String("http.url", p.url)))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		p.logger.Debug("failed to build health request", "url", p.url, "error", err)
		return domain.HealthStatus{}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		span.AddEvent("unreachable")
		p.logger.Debug("health request failed", "url", p.url, "error", err)
		return domain.HealthStatus{}
	}
	defer resp.Body.Close()
	// Drain a little so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	code := resp.StatusCode
	span.SetAttributes(attribute.Int("http.status_code", code))
	return domain.HealthStatus{Code: &code}
}
