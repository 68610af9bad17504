package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"job-worker/internal/domain"
	"job-worker/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DispatchService holds the job handler registry. The registry is fixed after
// construction, so Dispatch is safe to call from any number of goroutines.
type DispatchService struct {
	handlers map[domain.JobType]domain.JobHandler
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewDispatchService builds a service from the given handlers. Two handlers
// claiming the same job type is a programming error and is reported.
func NewDispatchService(logger *slog.Logger, handlers ...domain.JobHandler) (*DispatchService, error) {
	registry := make(map[domain.JobType]domain.JobHandler, len(handlers))
	for _, h := range handlers {
		if _, ok := registry[h.Type()]; ok {
			return nil, fmt.Errorf("duplicate handler for job type %q", h.Type())
		}
		registry[h.Type()] = h
	}
	return &DispatchService{
		handlers: registry,
		logger:   logger.With("component", "dispatch-service"),
		tracer:   otel.Tracer("job-worker-usecase"),
	}, nil
}

// JobTypes lists the registered job types.
func (s *DispatchService) JobTypes() []domain.JobType {
	types := make([]domain.JobType, 0, len(s.handlers))
	for t := range s.handlers {
		types = append(types, t)
	}
	return types
}

// ValidateJob checks the job against the registry and the handler's own rules.
func (s *DispatchService) ValidateJob(job *domain.Job) error {
	if job.Type == "" {
		return domain.NewInvalidRequest("job type is required")
	}
	h, ok := s.handlers[job.Type]
	if !ok {
		return domain.NewUnsupportedJobType(job.Type)
	}
	payload := job.Payload
	if payload == nil {
		payload = domain.Payload{}
	}
	return h.Validate(payload)
}

// Dispatch validates the request, runs the matching handler and wraps its
// output in a completed envelope. RequestID and job type are echoed verbatim.
func (s *DispatchService) Dispatch(ctx context.Context, req *domain.JobRequest) (*domain.JobResult, error) {
	ctx, span := s.tracer.Start(ctx, "service.Dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("job.type", string(req.Job.Type)),
		attribute.String("request.id", req.RequestID),
	)

	result, err := s.dispatch(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		metrics.JobDispatchTotal.WithLabelValues(metricLabel(req.Job.Type, s.handlers), outcomeOf(err)).Inc()
		s.logger.Warn("job rejected", "request_id", req.RequestID, "job_type", req.Job.Type, "error", err)
		return nil, err
	}

	metrics.JobDispatchTotal.WithLabelValues(string(req.Job.Type), "completed").Inc()
	s.logger.Info("job completed", "request_id", req.RequestID, "job_type", req.Job.Type)
	return result, nil
}

func (s *DispatchService) dispatch(ctx context.Context, req *domain.JobRequest) (*domain.JobResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	h, ok := s.handlers[req.Job.Type]
	if !ok {
		return nil, domain.NewUnsupportedJobType(req.Job.Type)
	}
	if err := h.Validate(req.Job.Payload); err != nil {
		return nil, err
	}

	output, err := h.Execute(ctx, req.Job.Payload)
	if err != nil {
		return nil, fmt.Errorf("handler %s: %w", h.Name(), err)
	}

	return &domain.JobResult{
		Success: true,
		Data: &domain.JobResultData{
			RequestID: req.RequestID,
			JobType:   req.Job.Type,
			Status:    domain.JobStatusCompleted,
			Output:    output,
			Meta:      map[string]any{"handler": h.Name()},
		},
	}, nil
}

// metricLabel keeps arbitrary caller-supplied types out of the label set.
func metricLabel(t domain.JobType, handlers map[domain.JobType]domain.JobHandler) string {
	if _, ok := handlers[t]; ok {
		return string(t)
	}
	return "unknown"
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnsupportedJobType):
		return "unsupported_job_type"
	case errors.Is(err, domain.ErrMissingField):
		return "missing_field"
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid_request"
	default:
		return "failed"
	}
}
