package domain

import "context"

// JobHandler processes one job type. Validate must not have side effects;
// Execute is only called after Validate succeeded.
type JobHandler interface {
	Type() JobType
	Name() string
	Validate(payload Payload) error
	Execute(ctx context.Context, payload Payload) (map[string]any, error)
}
