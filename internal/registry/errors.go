package registry

import "errors"

// Code is the machine-readable name of a registry failure.
type Code string

const (
	CodeInvalidBitmapSize      Code = "INVALID_BITMAP_SIZE"
	CodeIDTooLong              Code = "ID_TOO_LONG"
	CodeInvalidID              Code = "INVALID_ID"
	CodeAlreadyExists          Code = "ALREADY_EXISTS"
	CodeRegistryFull           Code = "REGISTRY_FULL"
	CodeInvalidAuthority       Code = "INVALID_AUTHORITY"
	CodeAlreadyFavorited       Code = "ALREADY_FAVORITED"
	CodeNotFavorited           Code = "NOT_FAVORITED"
	CodePatternNotFound        Code = "PATTERN_NOT_FOUND"
	CodeRegistryNotInitialized Code = "REGISTRY_NOT_INITIALIZED"
	CodeNotOwner               Code = "NOT_OWNER"
	CodeInvalidSteps           Code = "INVALID_STEPS"
	CodeCounterOverflow        Code = "COUNTER_OVERFLOW"
	CodeCorruptRecord          Code = "CORRUPT_RECORD"
)

// Error is a registry failure with a stable code. Two errors match under
// errors.Is when their codes are equal.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func wrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

var (
	ErrInvalidBitmapSize      = newError(CodeInvalidBitmapSize, "invalid grid size: bitmap must be 512 bytes")
	ErrIDTooLong              = newError(CodeIDTooLong, "cannot initialize, id too long")
	ErrInvalidID              = newError(CodeInvalidID, "id is not valid utf-8")
	ErrAlreadyExists          = newError(CodeAlreadyExists, "address already in use")
	ErrRegistryFull           = newError(CodeRegistryFull, "feed is full")
	ErrInvalidAuthority       = newError(CodeInvalidAuthority, "invalid authority for the feed")
	ErrAlreadyFavorited       = newError(CodeAlreadyFavorited, "pattern already starred")
	ErrNotFavorited           = newError(CodeNotFavorited, "pattern is not starred")
	ErrPatternNotFound        = newError(CodePatternNotFound, "pattern not found")
	ErrRegistryNotInitialized = newError(CodeRegistryNotInitialized, "feed is not initialized")
	ErrNotOwner               = newError(CodeNotOwner, "caller does not own the pattern")
	ErrInvalidSteps           = newError(CodeInvalidSteps, "invalid step count")
	ErrCounterOverflow        = newError(CodeCounterOverflow, "counter overflow")
	ErrCorruptRecord          = newError(CodeCorruptRecord, "corrupt record")
)

// CodeOf extracts the code from err, or "" when err is not a registry error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
