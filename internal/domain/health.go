package domain

import "context"

// HealthStatus is the outcome of one probe. Code is nil when the endpoint
// could not be reached at all.
type HealthStatus struct {
	Code *int
}

// Known reports whether the probe got any HTTP response.
func (s HealthStatus) Known() bool {
	return s.Code != nil
}

// HealthProber checks a remote health endpoint. Network failures are folded
// into an unknown status rather than returned as errors.
type HealthProber interface {
	Probe(ctx context.Context) HealthStatus
}

// Scheduler runs periodic work until its context is cancelled.
type Scheduler interface {
	Start(ctx context.Context) error
	Stop()
}
