package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnsupportedJobType is returned when no handler is registered for a job type.
	ErrUnsupportedJobType = errors.New("unsupported job type")
	// ErrMissingField is returned when a handler requires a payload field that is absent or empty.
	ErrMissingField = errors.New("missing field")
	// ErrInvalidRequest is returned when the request envelope itself is malformed.
	ErrInvalidRequest = errors.New("invalid request")
)

// DispatchError carries an HTTP-style status and a caller-facing message.
// Every DispatchError is a caller-input problem; none is retried.
type DispatchError struct {
	Kind    error
	Status  int
	Message string
	Field   string
}

func (e *DispatchError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is match the sentinel kind.
func (e *DispatchError) Unwrap() error {
	return e.Kind
}

// NewUnsupportedJobType reports a job type absent from the registry.
func NewUnsupportedJobType(t JobType) *DispatchError {
	return &DispatchError{
		Kind:    ErrUnsupportedJobType,
		Status:  http.StatusBadRequest,
		Message: "unsupported job type",
		Field:   string(t),
	}
}

// NewMissingField reports a required payload field that is absent or empty.
func NewMissingField(field string) *DispatchError {
	return &DispatchError{
		Kind:    ErrMissingField,
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf("%s is required", field),
		Field:   field,
	}
}

// NewInvalidRequest reports a malformed envelope.
func NewInvalidRequest(msg string) *DispatchError {
	return &DispatchError{
		Kind:    ErrInvalidRequest,
		Status:  http.StatusBadRequest,
		Message: msg,
	}
}

// StatusOf returns the status carried by err, or 500 when err is not a DispatchError.
func StatusOf(err error) int {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Status
	}
	return http.StatusInternalServerError
}
