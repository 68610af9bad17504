package http

import (
	"job-worker/internal/domain"
)

// JobDTO is the wire shape of a job.
type JobDTO struct {
	Type    string         `json:"type" validate:"required"`
	Payload map[string]any `json:"payload"`
}

// JobRequestDTO is the body of POST /api/job and POST /api/worker.
// RequestID is opaque and unbounded apart from the body size limit. It may be
// empty; the gateway fills it in, the worker echoes it as is.
type JobRequestDTO struct {
	RequestID string `json:"requestId"`
	Job       JobDTO `json:"job" validate:"required"`
}

// ToDomainRequest converts the DTO, normalizing a missing payload to an empty one.
func (r *JobRequestDTO) ToDomainRequest() *domain.JobRequest {
	payload := domain.Payload(r.Job.Payload)
	if payload == nil {
		payload = domain.Payload{}
	}
	return &domain.JobRequest{
		RequestID: r.RequestID,
		Job: domain.Job{
			Type:    domain.JobType(r.Job.Type),
			Payload: payload,
		},
	}
}

// DetailResponse is the worker's error body.
type DetailResponse struct {
	Detail string `json:"detail"`
}

// HealthData is the body of GET /api/health.
type HealthData struct {
	Status      string  `json:"status"`
	Timestamp   string  `json:"timestamp"`
	Uptime      float64 `json:"uptime"`
	Environment string  `json:"environment"`
}

// HealthResponse wraps HealthData in the success envelope.
type HealthResponse struct {
	Success bool       `json:"success"`
	Data    HealthData `json:"data"`
}
