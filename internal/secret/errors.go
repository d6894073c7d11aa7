package secret

import (
	"errors"
	"fmt"
)

// Error is a classified reconciliation failure.
//
// Run-fatal codes (SOURCE_UNAVAILABLE, SINK_UNAVAILABLE,
// CONFIGURATION_INVALID) abort an invocation. Per-identifier codes
// (SECRET_READ_FAILED, SINK_WRITE_FAILED) are recorded against Identifier and
// the batch continues.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Identifier is the affected secret, empty for run-fatal errors.
	Identifier string

	// Op names the failed operation (e.g. "fetch", "tag_version").
	Op string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes reconciliation errors.
type ErrorCode string

const (
	// ErrCodeSourceUnavailable indicates the source catalog could not be listed.
	ErrCodeSourceUnavailable ErrorCode = "SOURCE_UNAVAILABLE"

	// ErrCodeSinkUnavailable indicates the sink catalog could not be listed.
	ErrCodeSinkUnavailable ErrorCode = "SINK_UNAVAILABLE"

	// ErrCodeSecretReadFailed indicates a metadata or value read failed for one secret.
	ErrCodeSecretReadFailed ErrorCode = "SECRET_READ_FAILED"

	// ErrCodeSinkWriteFailed indicates a create, value write or tag write failed.
	ErrCodeSinkWriteFailed ErrorCode = "SINK_WRITE_FAILED"

	// ErrCodeConfigurationInvalid indicates a setup-time configuration error.
	ErrCodeConfigurationInvalid ErrorCode = "CONFIGURATION_INVALID"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Identifier != "" {
		msg += fmt.Sprintf(" %q", e.Identifier)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error aborts a whole run.
func (e *Error) Fatal() bool {
	switch e.Code {
	case ErrCodeSourceUnavailable, ErrCodeSinkUnavailable, ErrCodeConfigurationInvalid:
		return true
	}
	return false
}

// NewSourceUnavailable wraps a source listing failure.
func NewSourceUnavailable(err error) *Error {
	return &Error{Code: ErrCodeSourceUnavailable, Op: "list source", Err: err}
}

// NewSinkUnavailable wraps a sink listing failure.
func NewSinkUnavailable(err error) *Error {
	return &Error{Code: ErrCodeSinkUnavailable, Op: "list sink", Err: err}
}

// NewSecretReadFailed wraps a per-identifier source read failure.
func NewSecretReadFailed(identifier, op string, err error) *Error {
	return &Error{Code: ErrCodeSecretReadFailed, Identifier: identifier, Op: op, Err: err}
}

// NewSinkWriteFailed wraps a per-identifier sink write failure.
func NewSinkWriteFailed(identifier, op string, err error) *Error {
	return &Error{Code: ErrCodeSinkWriteFailed, Identifier: identifier, Op: op, Err: err}
}

// NewConfigurationInvalid wraps a configuration error.
func NewConfigurationInvalid(err error) *Error {
	return &Error{Code: ErrCodeConfigurationInvalid, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsSourceUnavailable returns true if err is a source listing failure.
func IsSourceUnavailable(err error) bool {
	return CodeOf(err) == ErrCodeSourceUnavailable
}

// IsSinkUnavailable returns true if err is a sink listing failure.
func IsSinkUnavailable(err error) bool {
	return CodeOf(err) == ErrCodeSinkUnavailable
}

// IsSecretReadFailed returns true if err is a per-identifier read failure.
func IsSecretReadFailed(err error) bool {
	return CodeOf(err) == ErrCodeSecretReadFailed
}

// IsSinkWriteFailed returns true if err is a per-identifier write failure.
func IsSinkWriteFailed(err error) bool {
	return CodeOf(err) == ErrCodeSinkWriteFailed
}

// IsConfigurationInvalid returns true if err is a configuration error.
func IsConfigurationInvalid(err error) bool {
	return CodeOf(err) == ErrCodeConfigurationInvalid
}
