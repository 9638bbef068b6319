// Package domainerrors defines the machine-readable error taxonomy shared by
// services and transports.
//
// Services return *Error values so handlers can translate failures into HTTP
// responses without inspecting messages. Stores should NOT return these; they
// return pkg/platform/sentinel facts which services translate.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code classifies an error for transport mapping.
type Code string

const (
	CodeBadRequest             Code = "bad_request"
	CodeInvalidInput           Code = "invalid_input"
	CodeValidation             Code = "validation_error"
	CodeInvariantViolation     Code = "invariant_violation"
	CodeUnauthorized           Code = "unauthorized"
	CodeForbidden              Code = "forbidden"
	CodeNotFound               Code = "not_found"
	CodeConflict               Code = "conflict"
	CodeInsufficientBalance    Code = "insufficient_balance"
	CodeInsufficientRecipients Code = "insufficient_eligible_recipients"
	CodeRateLimited            Code = "rate_limited"
	CodeTimeout                Code = "timeout"
	CodeInternal               Code = "internal_error"
)

// Error is a coded domain error. Reason is a stable, upper-snake identifier
// (e.g. ALREADY_APPROVED) that callers can branch on.
type Error struct {
	Code    Code
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error without a reason.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewWithReason creates a coded error carrying a machine-readable reason.
func NewWithReason(code Code, reason, message string) *Error {
	return &Error{Code: code, Reason: reason, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// As extracts the first *Error in the chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether the first *Error in the chain has the given code.
func HasCode(err error, code Code) bool {
	de, ok := As(err)
	return ok && de.Code == code
}

// HasReason reports whether the first *Error in the chain has the given reason.
func HasReason(err error, reason string) bool {
	de, ok := As(err)
	return ok && de.Reason == reason
}

// Is is a convenience passthrough so callers need not import errors alongside.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// ToHTTPStatus maps a code to an HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeValidation, CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInsufficientBalance, CodeInsufficientRecipients:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
