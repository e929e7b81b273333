// Package errors provides the unified error type and factory functions used by
// every layer of the case core. AppError is the single carrier for structured
// error information so that HTTP responses, logs and metrics agree on the
// failure category.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// stackDepth is the maximum number of frames captured per error.
const stackDepth = 32

// captureStack returns a formatted call-stack string starting two frames above
// the caller (skipping captureStack itself and the factory).
func captureStack(skip int) string {
	pcs := make([]uintptr, stackDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		f, more := frames.Next()
		if !strings.Contains(f.File, "runtime/") {
			fmt.Fprintf(&sb, "\n\t%s:%d %s", f.File, f.Line, f.Function)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// AppError
// ─────────────────────────────────────────────────────────────────────────────

// AppError is the structured error type used throughout the service. It
// supports errors.Is / errors.As / errors.Unwrap through its Cause.
//
// Usage:
//
//	return errors.Validation("table name contains invalid characters").WithDetail(name)
//	return errors.Wrap(err, errors.CodeStorage, "failed to describe annexure table")
type AppError struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Message is the human-readable description returned to callers.
	Message string

	// Detail carries supplementary context such as table or case identifiers.
	Detail string

	// Cause is the underlying error, if any.
	Cause error

	// Stack is the call stack captured at construction. It is never part of
	// Error() output.
	Stack string
}

// Error implements the error interface.
// Format: "[<code>] <message>: <detail>: <cause>"; empty segments are omitted.
func (e *AppError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", e.Code, e.Message)
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetail returns a shallow copy of the receiver with Detail set.
// It is safe to call on a nil pointer.
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithCause returns a shallow copy of the receiver with Cause set to err.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// ─────────────────────────────────────────────────────────────────────────────
// Primary factory functions
// ─────────────────────────────────────────────────────────────────────────────

// New constructs a fresh AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Wrap constructs an AppError that wraps err. It returns nil for a nil err.
//
// When err already carries an *AppError and code is CodeUnknown the original
// code is preserved, so callers can add context without reclassifying.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if code == CodeUnknown {
		var ae *AppError
		if errors.As(err, &ae) {
			code = ae.Code
		}
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
		Stack:   captureStack(1),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Error-chain inspection helpers
// ─────────────────────────────────────────────────────────────────────────────

// IsCode reports whether any error in err's chain is an *AppError with code.
func IsCode(err error, code ErrorCode) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) && ae.Code == code {
			return true
		}
		if ae != nil {
			err = ae.Cause
			ae = nil
			continue
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsNotFound reports whether err's chain contains a not-found AppError.
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound) || IsCode(err, CodeRecordNotFound)
}

// IsValidation reports whether err's chain contains a validation AppError.
func IsValidation(err error) bool {
	return IsCode(err, CodeValidation) || IsCode(err, ErrCodeValidation) || IsCode(err, CodeInvalidParam)
}

// IsSchemaConflict reports whether err's chain contains a schema conflict.
func IsSchemaConflict(err error) bool {
	return IsCode(err, CodeSchemaConflict)
}

// GetCode extracts the ErrorCode from the first *AppError in err's chain.
func GetCode(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// ─────────────────────────────────────────────────────────────────────────────
// Taxonomy factories
// ─────────────────────────────────────────────────────────────────────────────

// Validation reports a missing or malformed identifier or form definition.
func Validation(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message, Stack: captureStack(1)}
}

// NotFound reports a schema, case or table that is absent where required.
func NotFound(message string) *AppError {
	return &AppError{Code: CodeRecordNotFound, Message: message, Stack: captureStack(1)}
}

// SchemaConflict reports a concurrent migration collision.
func SchemaConflict(message string) *AppError {
	return &AppError{Code: CodeSchemaConflict, Message: message, Stack: captureStack(1)}
}

// Computation reports a malformed TAT policy value or unparseable date.
func Computation(message string) *AppError {
	return &AppError{Code: CodeComputation, Message: message, Stack: captureStack(1)}
}

// Storage reports an unavailable store or failed query.
func Storage(message string) *AppError {
	return &AppError{Code: CodeStorage, Message: message, Stack: captureStack(1)}
}

// InvalidParam constructs a CodeInvalidParam AppError.
func InvalidParam(message string) *AppError {
	return &AppError{Code: CodeInvalidParam, Message: message, Stack: captureStack(1)}
}

// Internal constructs a CodeInternal AppError.
func Internal(message string) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Stack: captureStack(1)}
}

// Is and As re-export the standard library helpers so callers need a single
// errors import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }
