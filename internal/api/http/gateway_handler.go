package http

import (
	"errors"
	"log/slog"
	"net/http"

	"job-worker/internal/domain"
	"job-worker/internal/gateway"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// JobValidator checks a job against the handler registry without running it.
type JobValidator interface {
	ValidateJob(job *domain.Job) error
}

// GatewayHandler proxies POST /api/worker to a worker.
type GatewayHandler struct {
	validator JobValidator
	forwarder domain.Forwarder
	logger    *slog.Logger
	validate  *validator.Validate
	tracer    trace.Tracer
}

// NewGatewayHandler creates a GatewayHandler.
func NewGatewayHandler(jobValidator JobValidator, forwarder domain.Forwarder, logger *slog.Logger) *GatewayHandler {
	return &GatewayHandler{
		validator: jobValidator,
		forwarder: forwarder,
		logger:    logger.With("component", "gateway-handler"),
		validate:  newValidator(),
		tracer:    otel.Tracer("job-worker-gateway-api"),
	}
}

// RegisterRoutes registers the proxy route.
func (h *GatewayHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/worker", h.handleWorker)
}

func (h *GatewayHandler) handleWorker(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "handler.Worker")
	defer span.End()

	req, err := decodeJobRequest(w, r, h.validate)
	if err == nil {
		err = h.validator.ValidateJob(&req.Job)
	}
	if err != nil {
		span.SetStatus(codes.Error, "invalid job")
		span.RecordError(err)
		writeJSON(w, http.StatusBadRequest, failure("invalid_job", "Job payload invalid or missing."))
		return
	}

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	span.SetAttributes(
		attribute.String("job.type", string(req.Job.Type)),
		attribute.String("request.id", req.RequestID),
	)

	env, err := h.forwarder.Forward(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, "forward failed")
		span.RecordError(err)
		var ue *gateway.UnavailableError
		if errors.As(err, &ue) {
			writeJSON(w, http.StatusBadGateway, failure("worker_unavailable", ue.Message))
			return
		}
		h.logger.Error("unhandled error while proxying to worker", "request_id", req.RequestID, "error", err)
		writeJSON(w, http.StatusInternalServerError, failure("worker_route_error", "Unhandled error while proxying to worker."))
		return
	}

	status := http.StatusOK
	if !env.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, env)
}

func failure(code, message string) domain.Envelope {
	return domain.Envelope{
		Success: false,
		Error:   &domain.JobError{Code: code, Message: message},
	}
}
