// Package apperr defines the error kinds returned by the repair services and
// the HTTP status and numeric code each one maps to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is the machine-readable error category surfaced to API callers.
type Kind string

const (
	KindValidation        Kind = "ValidationError"
	KindNotFound          Kind = "NotFoundError"
	KindInvalidState      Kind = "InvalidStateError"
	KindInsufficientStock Kind = "InsufficientStockError"
	KindConflict          Kind = "ConflictError"
	KindAuthorization     Kind = "AuthorizationError"
	KindInternal          Kind = "InternalError"
)

// Numeric codes follow the {code, message, data} envelope: code/100 is the HTTP status.
const (
	CodeValidation        = 40000
	CodeAuthorization     = 40300
	CodeNotFound          = 40400
	CodeInvalidState      = 40900
	CodeInsufficientStock = 40901
	CodeConflict          = 40902
	CodeInternal          = 50000
)

// FieldError is a single field-level validation message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f FieldError) String() string {
	return f.Field + " " + f.Message
}

// Error is a categorized service error.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Fields  []FieldError
	Details map[string]interface{}
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Status returns the HTTP status for the error.
func (e *Error) Status() int {
	status := e.Code / 100
	if status < 100 || status > 599 {
		return http.StatusInternalServerError
	}
	return status
}

// WithDetail attaches a detail value and returns the same error.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Validation builds a ValidationError from field messages.
func Validation(fields ...FieldError) *Error {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.String())
	}
	msg := "invalid request"
	if len(parts) > 0 {
		msg = strings.Join(parts, "; ")
	}
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: msg, Fields: fields}
}

// InvalidField is a ValidationError for one field.
func InvalidField(field, message string) *Error {
	return Validation(FieldError{Field: field, Message: message})
}

func NotFound(resource, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %s not found", resource, id),
		Details: map[string]interface{}{"resource": resource, "id": id},
	}
}

func InvalidState(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidState, Code: CodeInvalidState, Message: fmt.Sprintf(format, args...)}
}

func InsufficientStock(partID string, requested, available int) *Error {
	return &Error{
		Kind:    KindInsufficientStock,
		Code:    CodeInsufficientStock,
		Message: fmt.Sprintf("insufficient stock for part %s: requested %d, available %d", partID, requested, available),
		Details: map[string]interface{}{"part_id": partID, "requested": requested, "available": available},
	}
}

func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...interface{}) *Error {
	return &Error{Kind: KindAuthorization, Code: CodeAuthorization, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure.
func Internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: msg, Cause: cause}
}

// As extracts an *Error from the chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal for uncategorized errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
