// Package httputil holds the JSON request/response helpers shared by handlers.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "coinledger/pkg/domain-errors"
)

// maxBodyBytes bounds request bodies; every endpoint takes a small JSON object.
const maxBodyBytes = 1 << 20

// Validatable is implemented by request DTOs that parse and check their own fields.
type Validatable interface {
	Validate() error
}

// Normalizable is optionally implemented by request DTOs that trim or
// canonicalize input before validation.
type Normalizable interface {
	Normalize()
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error            string `json:"error"`
	Reason           string `json:"reason,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to an HTTP status and JSON envelope. Errors without a
// domain code are treated as internal; internal errors never leak their message.
func WriteError(w http.ResponseWriter, err error) {
	de, ok := dErrors.As(err)
	if !ok {
		de = dErrors.New(dErrors.CodeInternal, "internal error")
	}

	resp := ErrorResponse{
		Error:  string(de.Code),
		Reason: de.Reason,
	}
	if de.Code != dErrors.CodeInternal {
		resp.ErrorDescription = de.Message
	}
	WriteJSON(w, dErrors.ToHTTPStatus(de.Code), resp)
}

// DecodeJSON decodes the request body into T, rejecting unknown fields and
// bodies over maxBodyBytes.
func DecodeJSON[T any](r *http.Request) (*T, error) {
	var req T
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, dErrors.New(dErrors.CodeBadRequest, "request body is required")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid json payload")
	}
	return &req, nil
}

// DecodeAndPrepare decodes, normalizes and validates a request DTO. On failure
// it writes the error response, logs it, and returns ok=false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	req, err := DecodeJSON[T](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, err)
		return nil, false
	}

	var p PT = req
	if n, ok := any(p).(Normalizable); ok {
		n.Normalize()
	}
	if err := p.Validate(); err != nil {
		logger.WarnContext(ctx, "invalid request",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, err)
		return nil, false
	}
	return req, true
}
