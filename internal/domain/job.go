package domain

// JobType identifies which handler a job is routed to.
type JobType string

const (
	JobTypeAnalyzeData   JobType = "analyzeData"
	JobTypeGenerateImage JobType = "generateImage"
)

// JobStatus is the lifecycle status reported in a result envelope.
type JobStatus string

// JobStatusCompleted is the only status a synchronous dispatch reports.
const JobStatusCompleted JobStatus = "completed"

// Payload is the free-form job input. Handlers decode what they need from it.
type Payload map[string]any

// Job is a unit of work: a type string plus an arbitrary payload.
type Job struct {
	Type    JobType `json:"type"`
	Payload Payload `json:"payload"`
}

// JobRequest is the inbound envelope. RequestID is an opaque correlation id
// and is never generated or rewritten by the dispatcher.
type JobRequest struct {
	RequestID string `json:"requestId"`
	Job       Job    `json:"job"`
}

// JobResultData is the body of a successful result envelope.
type JobResultData struct {
	RequestID string         `json:"requestId"`
	JobType   JobType        `json:"jobType"`
	Status    JobStatus      `json:"status"`
	Output    map[string]any `json:"output"`
	Meta      map[string]any `json:"meta"`
}

// JobResult is the outbound success envelope.
type JobResult struct {
	Success bool           `json:"success"`
	Data    *JobResultData `json:"data,omitempty"`
}

// JobError is the error body of a failed envelope.
type JobError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Envelope is what the gateway returns to its callers: either Data or Error is set.
type Envelope struct {
	Success bool           `json:"success"`
	Data    *JobResultData `json:"data,omitempty"`
	Error   *JobError      `json:"error,omitempty"`
}

// Validate checks the request shape and normalizes a missing payload to an
// empty one. It does not look at the job type registry.
func (r *JobRequest) Validate() error {
	if r.Job.Type == "" {
		return NewInvalidRequest("job type is required")
	}
	if r.Job.Payload == nil {
		r.Job.Payload = Payload{}
	}
	return nil
}
