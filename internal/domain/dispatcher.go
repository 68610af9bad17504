// internal/domain/dispatcher.go
package domain

import "context"

// Dispatcher routes a job request to its handler and wraps the result.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *JobRequest) (*JobResult, error)
	// ValidateJob runs the registry lookup and handler validation without executing.
	ValidateJob(job *Job) error
}

// Forwarder delivers a job request to a remote worker and returns its envelope.
type Forwarder interface {
	Forward(ctx context.Context, req *JobRequest) (*Envelope, error)
}
