// Package httpserver contains the HTTP handlers and middleware of the
// evaluation API: round evaluation triggers, feedback and verdict reads,
// candidate aggregation, health and readiness.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto its status class and a stable error code.
func writeError(w http.ResponseWriter, r *http.Request, err error, details interface{}) {
	status := domain.StatusClass(err)
	if status < 400 {
		status = http.StatusInternalServerError
	}
	if status >= 500 {
		LoggerFrom(r).Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, errorEnvelope{Error: apiError{Code: errorCode(err, status), Message: err.Error(), Details: details}})
}

func errorCode(err error, status int) string {
	switch {
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return "UPSTREAM_TIMEOUT"
	case errors.Is(err, domain.ErrUpstreamRateLimit):
		return "UPSTREAM_RATE_LIMIT"
	case errors.Is(err, domain.ErrSchemaInvalid) && status >= 500:
		return "SCHEMA_INVALID"
	}
	switch status {
	case http.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusPreconditionFailed:
		return "FAILED_PRECONDITION"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	}
	if status < 500 {
		return "INVALID_ARGUMENT"
	}
	return "INTERNAL"
}

// acceptsJSON rejects requests that cannot take a JSON response.
func acceptsJSON(w http.ResponseWriter, r *http.Request) bool {
	a := r.Header.Get("Accept")
	la := strings.ToLower(a)
	if a == "" || strings.Contains(la, "*/*") || strings.Contains(la, "application/json") || strings.Contains(la, "application/*") {
		return true
	}
	writeJSON(w, http.StatusNotAcceptable, errorEnvelope{Error: apiError{
		Code:    "INVALID_ARGUMENT",
		Message: "not acceptable",
		Details: map[string]any{"accept": a},
	}})
	return false
}
