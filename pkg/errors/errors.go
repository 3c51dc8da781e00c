package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code classifies failures for callers and for the HTTP adapter.
type Code string

const (
	CodeValidation Code = "VALIDATION_ERROR"
	CodeForbidden  Code = "FORBIDDEN"
	CodeNotFound   Code = "NOT_FOUND"
	CodeConflict   Code = "CONFLICT"
	CodeInternal   Code = "INTERNAL_ERROR"
	CodeDependency Code = "DEPENDENCY_ERROR"

	CodeInsufficientPayment Code = "INSUFFICIENT_PAYMENT"
	CodeTransactionFailed   Code = "TRANSACTION_FAILED"
	CodeSyncReplay          Code = "SYNC_REPLAY_FAILED"
	CodeStaleContainerMath  Code = "STALE_CONTAINER_MATH"
)

// Metadata drives the HTTP mapping. Only DetailsAllowed codes expose their details to
// clients; everything else is reduced to PublicMessage.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
	CodeForbidden:  {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied"},
	CodeNotFound:   {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found"},
	CodeConflict:   {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected"},
	CodeInternal:   {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error"},
	CodeDependency: {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable", DetailsAllowed: true},

	CodeInsufficientPayment: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "amount paid is less than the order total", DetailsAllowed: true},
	// storage internals never reach the register
	CodeTransactionFailed:  {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "order could not be recorded, please retry"},
	CodeSyncReplay:         {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "background synchronization failed"},
	CodeStaleContainerMath: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "container quantities are incomplete", DetailsAllowed: true},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

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

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

// Message is the internal message; clients see it only for DetailsAllowed codes.
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

// WithDetails attaches structured context and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	default:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// As returns the first *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
