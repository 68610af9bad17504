// internal/api/http/job_handler.go
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"job-worker/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxBodyBytes caps job request bodies.
const maxBodyBytes = 1 << 20

// JobHandler serves the worker's job endpoint.
type JobHandler struct {
	dispatcher domain.Dispatcher
	logger     *slog.Logger
	validate   *validator.Validate
	tracer     trace.Tracer
}

// NewJobHandler creates a new JobHandler and its validator.
func NewJobHandler(dispatcher domain.Dispatcher, logger *slog.Logger) *JobHandler {
	return &JobHandler{
		dispatcher: dispatcher,
		logger:     logger.With("component", "job-handler"),
		validate:   newValidator(),
		tracer:     otel.Tracer("job-worker-api"),
	}
}

// RegisterRoutes registers the job route.
func (h *JobHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/job", h.handleJob)
}

// handleJob runs POST /api/job synchronously. Failures answer {"detail": msg}.
func (h *JobHandler) handleJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "handler.Job")
	defer span.End()

	req, err := decodeJobRequest(w, r, h.validate)
	if err != nil {
		span.SetStatus(codes.Error, "invalid request")
		span.RecordError(err)
		writeJSON(w, http.StatusBadRequest, DetailResponse{Detail: err.Error()})
		return
	}
	span.SetAttributes(
		attribute.String("job.type", string(req.Job.Type)),
		attribute.String("request.id", req.RequestID),
	)

	result, err := h.dispatcher.Dispatch(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, "dispatch failed")
		span.RecordError(err)
		var de *domain.DispatchError
		if errors.As(err, &de) {
			writeJSON(w, de.Status, DetailResponse{Detail: de.Message})
			return
		}
		h.logger.Error("error dispatching job", "request_id", req.RequestID, "error", err)
		writeJSON(w, http.StatusInternalServerError, DetailResponse{Detail: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// decodeJobRequest reads and validates the envelope. Numbers keep their
// literal form so payloads echo back unchanged.
func decodeJobRequest(w http.ResponseWriter, r *http.Request, validate *validator.Validate) (*domain.JobRequest, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()

	var dto JobRequestDTO
	if err := dec.Decode(&dto); err != nil {
		return nil, fmt.Errorf("invalid request body")
	}
	// The body must hold exactly one JSON value.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid request body")
	}

	if err := validate.Struct(dto); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, errors.New(validationMessage(verrs[0]))
		}
		return nil, fmt.Errorf("invalid request body")
	}
	return dto.ToDomainRequest(), nil
}

// validationMessage turns a field error into e.g. "job.type is required".
func validationMessage(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "JobRequestDTO.")
	if fe.Tag() == "required" {
		return field + " is required"
	}
	return fmt.Sprintf("%s failed on the '%s' rule", field, fe.Tag())
}

// newValidator reports field names by their JSON tags.
func newValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}
