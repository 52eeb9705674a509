// Package errs provides the unified error type used across all of rostersync.
//
// Every subsystem (database, filestore, coerce, upsert, lms, …) wraps its
// native errors into *errs.Error before returning them to callers. The run
// driver uses the Is* predicates to tell precondition failures apart from
// fatal batch failures without matching on message text.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindConnectionFailed, "ping failed", pgErr)
//
//	// In the pipeline, check the error kind:
//	if errs.IsSchemaNotFound(err) {
//	    log.Error("destination table is missing")
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
// All backends (Postgres, MySQL, MinIO, the LMS API) map their native errors
// to one of these kinds, giving callers a single consistent API.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no rows, no object, no bucket
	ErrKindConnectionFailed         // cannot reach the backend
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindQueryFailed              // SQL, HTTP or storage operation error
	ErrKindInvalidInput             // bad arguments or a violated precondition
	ErrKindPermissionDenied         // access denied / auth failure
	ErrKindSchemaNotFound           // destination schema or table does not exist
	ErrKindColumnNotFound           // a configured column is absent from the batch
	ErrKindCoercion                 // a column could not be coerced to its declared type
	ErrKindUpsert                   // the upsert transaction failed and was rolled back
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindSchemaNotFound:
		return "schema_not_found"
	case ErrKindColumnNotFound:
		return "column_not_found"
	case ErrKindCoercion:
		return "coercion_failed"
	case ErrKindUpsert:
		return "upsert_failed"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all rostersync subsystems.
// Drivers produce it; callers inspect it via the Is* predicates below.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// CoercionError reports the column whose conversion aborted a coercion pass.
// It carries ErrKindCoercion for the Is* predicates.
type CoercionError struct {
	Column       string
	DeclaredType string
	Cause        error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("[%s] failed to convert column %q to %s: %v",
		ErrKindCoercion, e.Column, e.DeclaredType, e.Cause)
}

func (e *CoercionError) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a format string.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result
// (no rows, missing object, unknown bucket, …).
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a backend operation failure
// (SQL execution error, storage I/O error, unexpected HTTP status, …).
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsSchemaNotFound reports whether the destination table could not be found.
func IsSchemaNotFound(err error) bool {
	return KindOf(err) == ErrKindSchemaNotFound
}

// IsColumnNotFound reports whether a configured column is missing from a batch.
func IsColumnNotFound(err error) bool {
	return KindOf(err) == ErrKindColumnNotFound
}

// IsCoercion reports whether err aborted a coercion pass.
func IsCoercion(err error) bool {
	return KindOf(err) == ErrKindCoercion
}

// IsUpsert reports whether err is a rolled-back upsert.
func IsUpsert(err error) bool {
	return KindOf(err) == ErrKindUpsert
}

// Retryable reports whether a later run could succeed without any change to
// the data or the configuration. Only connectivity and timeouts qualify.
func Retryable(err error) bool {
	switch KindOf(err) {
	case ErrKindConnectionFailed, ErrKindTimeout:
		return true
	default:
		return false
	}
}

// KindOf extracts the ErrKind from the outermost classified error in the chain.
func KindOf(err error) ErrKind {
	for err != nil {
		switch e := err.(type) {
		case *Error:
			return e.Kind
		case *CoercionError:
			return ErrKindCoercion
		}
		err = errors.Unwrap(err)
	}
	return ErrKindUnknown
}
