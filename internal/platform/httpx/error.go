// Package httpx implements the flat JSON error envelope every handler writes:
// {"error": code, "message": ..., "status": n, ...details} plus request and
// trace identifiers when available.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ramsey2004/homekraft-api/internal/platform/requestctx"
)

const (
	maxCodeLen    = 80
	maxMessageLen = 512
	maxTraceLen   = 64
)

// Error is an API error response. Zero status renders as 500.
type Error struct {
	Code      string
	Message   string
	Status    int
	RequestID string
	TraceID   string
	Details   map[string]any
}

// NewError builds an Error with a stable machine-readable code and a
// human-readable message.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    clip(code, maxCodeLen),
		Message: clip(message, maxMessageLen),
		Status:  status,
	}
}

// WithRequestID overrides the request identifier taken from context.
func (e Error) WithRequestID(id string) Error {
	e.RequestID = clip(id, maxCodeLen)
	return e
}

// WithTraceID overrides the trace identifier taken from context.
func (e Error) WithTraceID(id string) Error {
	e.TraceID = clip(id, maxTraceLen)
	return e
}

// WithDetails merges extra fields into the top level of the envelope.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	e.Details = merged
	return e
}

// WriteError renders the envelope as JSON. Request and trace identifiers are
// filled from context when the error does not carry them.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	envelope := map[string]any{
		"error":   err.Code,
		"message": err.Message,
		"status":  status,
	}
	for k, v := range err.Details {
		envelope[k] = v
	}

	if requestID := firstOf(err.RequestID, middleware.GetReqID(ctx), maxCodeLen); requestID != "" {
		envelope["request_id"] = requestID
	}
	if traceID := firstOf(err.TraceID, requestctx.TraceID(ctx), maxTraceLen); traceID != "" {
		envelope["trace_id"] = traceID
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope)
}

func firstOf(explicit, fromContext string, limit int) string {
	if explicit != "" {
		return explicit
	}
	return clip(fromContext, limit)
}

// clip flattens newlines and bounds the value so caller input can never
// distort the log line or the envelope.
func clip(value string, limit int) string {
	value = strings.NewReplacer("\n", " ", "\r", " ").Replace(value)
	value = strings.TrimSpace(value)
	if limit > 0 && len(value) > limit {
		value = value[:limit]
	}
	return value
}
