package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeInvalidSignature  Code = "INVALID_SIGNATURE"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeStateConflict     Code = "STATE_CONFLICT"
	CodeIdempotency       Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit         Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodePaymentsDisabled  Code = "PAYMENTS_DISABLED"
	CodeDependency        Code = "DEPENDENCY_ERROR"
)

// Metadata decides how a code surfaces over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	// MessageAllowed lets the typed message replace PublicMessage in responses.
	MessageAllowed bool
}

type exposure uint8

const (
	showMessage exposure = 1 << iota
	showDetails
	retryable
)

func meta(status int, public string, flags exposure) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		MessageAllowed: flags&showMessage != 0,
		DetailsAllowed: flags&showDetails != 0,
		Retryable:      flags&retryable != 0,
	}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:        meta(http.StatusBadRequest, "validation failed", showMessage|showDetails),
	CodeInsufficientStock: meta(http.StatusBadRequest, "insufficient stock", showMessage|showDetails),
	CodeInvalidSignature:  meta(http.StatusBadRequest, "invalid signature", showMessage),
	CodeUnauthorized:      meta(http.StatusUnauthorized, "authentication required", showMessage),
	CodeForbidden:         meta(http.StatusForbidden, "access denied", showMessage|showDetails),
	CodeNotFound:          meta(http.StatusNotFound, "resource not found", showMessage),
	CodeConflict:          meta(http.StatusConflict, "conflict detected", showMessage),
	CodeStateConflict:     meta(http.StatusUnprocessableEntity, "state transition disallowed", showMessage|showDetails),
	CodeIdempotency:       meta(http.StatusConflict, "idempotency key reused", showMessage|showDetails),
	CodeRateLimit:         meta(http.StatusTooManyRequests, "rate limit exceeded", showMessage|showDetails),
	CodePaymentsDisabled:  meta(http.StatusNotImplemented, "payments disabled on server", showMessage),
	// Internal failures never leak their message or details.
	CodeInternal:   meta(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency: meta(http.StatusServiceUnavailable, "dependency unavailable", showDetails|retryable),
}

// MetadataFor falls back to the internal error entry for unknown codes.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded failure. The code picks the HTTP status; the cause stays
// server side.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

// Code reports CodeInternal for a nil error.
func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails attaches client-facing details and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.code) + ": " + e.message
	if e.cause == nil {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, e.cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the first *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err == nil || !stdErrors.As(err, &typed) {
		return nil
	}
	return typed
}

// IsCode reports whether err carries the given typed code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
