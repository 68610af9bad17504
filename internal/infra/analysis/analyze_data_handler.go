// internal/infra/analysis/analyze_data_handler.go
package analysis

import (
	"context"
	"log/slog"

	"job-worker/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HandlerName is reported in result meta for analyzeData jobs.
const HandlerName = "job-worker/analysis"

// Summary is the placeholder summary until a real analysis pipeline exists.
const Summary = "analysis stub"

// analyzeDataHandler implements domain.JobHandler for analyzeData jobs.
type analyzeDataHandler struct {
	logger *slog.Logger
	tracer trace.Tracer
}

// NewAnalyzeDataHandler creates the analyzeData handler.
func NewAnalyzeDataHandler(logger *slog.Logger) domain.JobHandler {
	return &analyzeDataHandler{
		logger: logger.With("job_type", domain.JobTypeAnalyzeData),
		tracer: otel.Tracer("job-worker-analysis"),
	}
}

func (h *analyzeDataHandler) Type() domain.JobType { return domain.JobTypeAnalyzeData }

func (h *analyzeDataHandler) Name() string { return HandlerName }

// Validate accepts any payload.
func (h *analyzeDataHandler) Validate(domain.Payload) error { return nil }

// Execute returns the stub summary along with the untouched input payload.
func (h *analyzeDataHandler) Execute(ctx context.Context, payload domain.Payload) (map[string]any, error) {
	_, span := h.tracer.Start(ctx, "handler.analysis.Execute",
		trace.WithAttributes(attribute.Int("payload.keys", len(payload))))
	defer span.End()

	h.logger.Debug("running analysis", "payload_keys", len(payload))
	return map[string]any{
		"summary": Summary,
		"source":  payload,
	}, nil
}
