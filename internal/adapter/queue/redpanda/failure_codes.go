package redpanda

import (
	"context"
	"errors"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
)

// classifyFailureCode maps a round evaluation error to a stable code used in
// logs and dead-letter headers. The codes match the HTTP error envelope.
func classifyFailureCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrUpstreamRateLimit), errors.Is(err, domain.ErrRateLimited):
		return "UPSTREAM_RATE_LIMIT"
	case errors.Is(err, domain.ErrUpstreamTimeout), errors.Is(err, context.DeadlineExceeded):
		return "UPSTREAM_TIMEOUT"
	case errors.Is(err, domain.ErrSchemaInvalid):
		return "SCHEMA_INVALID"
	case errors.Is(err, domain.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, domain.ErrConflict):
		return "CONFLICT"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "INVALID_ARGUMENT"
	default:
		return "INTERNAL"
	}
}

// redeliverable reports whether a later attempt may succeed: the backend was
// throttled or slow.
func redeliverable(code string) bool {
	return code == "UPSTREAM_RATE_LIMIT" || code == "UPSTREAM_TIMEOUT"
}

// terminal reports failures where the round itself rules out evaluation, such as
// a round already complete. These are acknowledged without a dead letter.
func terminal(code string) bool {
	return code == "NOT_FOUND" || code == "CONFLICT" || code == "INVALID_ARGUMENT"
}
