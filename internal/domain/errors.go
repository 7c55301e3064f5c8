package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// GenerationError reports a generation task that exhausted its retries.
type GenerationError struct {
	Task TaskKind
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation %s failed: %v", e.Task, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// PipelineError is a fatal failure of a round or aggregation unit of work.
type PipelineError struct {
	Unit  string // "round" or "aggregation"
	ID    string
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s %s failed at %s: %v", e.Unit, e.ID, e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// PreconditionError is an unmet precondition surfaced before any generation work.
type PreconditionError struct {
	Status  int
	Message string
	Err     error
}

func (e *PreconditionError) Error() string { return e.Message }

func (e *PreconditionError) Unwrap() error { return e.Err }

// NewPrecondition builds a PreconditionError whose status class follows the sentinel.
func NewPrecondition(sentinel error, format string, args ...any) *PreconditionError {
	return &PreconditionError{
		Status:  statusForSentinel(sentinel),
		Message: fmt.Sprintf(format, args...),
		Err:     sentinel,
	}
}

// StatusClass maps an error to its HTTP-equivalent status class.
func StatusClass(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var pe *PreconditionError
	if errors.As(err, &pe) && pe.Status != 0 {
		return pe.Status
	}
	var pl *PipelineError
	if errors.As(err, &pl) {
		// generation failures are never the caller's fault
		if errors.Is(err, ErrUpstreamTimeout) || errors.Is(err, ErrUpstreamRateLimit) {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	}
	return statusForSentinel(err)
}

func statusForSentinel(err error) int {
	switch {
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrSchemaInvalid):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUpstreamTimeout), errors.Is(err, ErrUpstreamRateLimit):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
