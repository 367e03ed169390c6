package metastore

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes. The Code targets automated handlers so that recovery can
// occur; Msg is for the operator diagnosing the problem.
const (
	EInternal    = "internal error"
	ENotFound    = "not found"
	EConflict    = "conflict"    // action cannot be performed
	EInvalid     = "invalid"     // validation failed
	EUnavailable = "unavailable" // backing store unreachable, retryable
)

// Error is the platform error type. Errors carry a machine-readable code, a
// human-readable message, and an optional logical stack trace through Op and
// Err.
//
// To create a simple error,
//
//	&Error{Code: ENotFound}
//
// To show where the error happens, add Op.
//
//	&Error{Code: ENotFound, Op: "registry.GetProject"}
//
// To show an error with an unpredictable value, add the value in Msg.
//
//	&Error{Code: EConflict, Msg: fmt.Sprintf("project %s already exists", name)}
type Error struct {
	Code string
	Msg  string
	Op   string
	Err  error
}

// Error implements the error interface by writing out the recursive messages.
func (e *Error) Error() string {
	if e.Msg != "" && e.Err != nil {
		var b strings.Builder
		b.WriteString(e.Msg)
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
		return b.String()
	} else if e.Msg != "" {
		return e.Msg
	} else if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("<%s>", e.Code)
}

// Unwrap exposes the wrapped error to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode returns the code of the root error, if available; otherwise
// returns EInternal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if !errors.As(err, &e) || e == nil {
		return EInternal
	}

	if e.Code != "" {
		return e.Code
	}

	if e.Err != nil {
		return ErrorCode(e.Err)
	}

	return EInternal
}

// ErrorOp returns the op of the error, if available; otherwise returns the
// empty string.
func ErrorOp(err error) string {
	var e *Error
	if !errors.As(err, &e) || e == nil {
		return ""
	}

	if e.Op != "" {
		return e.Op
	}

	if e.Err != nil {
		return ErrorOp(e.Err)
	}

	return ""
}

// ErrMessage returns the human-readable message of the error, if available;
// otherwise returns "An internal error has occurred."
func ErrMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) || e == nil {
		return "An internal error has occurred."
	}

	if e.Msg != "" {
		return e.Msg
	}

	if e.Err != nil {
		return ErrMessage(e.Err)
	}

	return "An internal error has occurred."
}

// SchemaConflictError reports a field name asserted with two different types,
// either twice within one evolution request or against the committed schema.
// The whole request fails atomically; no fields are committed.
type SchemaConflictError struct {
	Project    string
	Collection string
	Field      string
	Existing   FieldType
	Requested  FieldType
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("field %q in %s.%s already has type %s, requested %s",
		e.Field, e.Project, e.Collection, e.Existing, e.Requested)
}

// NewSchemaConflictError wraps a SchemaConflictError into a coded Error so
// that both ErrorCode and errors.As work for callers.
func NewSchemaConflictError(conflict *SchemaConflictError) *Error {
	return &Error{
		Code: EConflict,
		Msg:  conflict.Error(),
		Err:  conflict,
	}
}
