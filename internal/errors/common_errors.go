package errors

import (
	"errors"
)

// ErrorType classifies an AppError.
type ErrorType string

const (
	// ErrTypeLookup marks a family, series key, period or function token
	// that is not recognised. Nothing has been downloaded when it is raised.
	ErrTypeLookup ErrorType = "LOOKUP"
	// ErrTypeNetwork marks a failed or non-2xx download.
	ErrTypeNetwork ErrorType = "NETWORK"
	// ErrTypeParsing marks a downloaded payload that is not a usable workbook.
	ErrTypeParsing ErrorType = "PARSING"
	// ErrTypeValidation marks a malformed request shape (missing or
	// conflicting arguments) as opposed to an unknown token.
	ErrTypeValidation ErrorType = "VALIDATION"
)

// AppError is a classified failure. Cause is usually one of the sentinels
// exported by the series package so callers can still use errors.Is.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithContext attaches a key/value pair that the HTTP layer copies into the
// problem body.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func newAppError(t ErrorType, message string, cause error) *AppError {
	return &AppError{Type: t, Message: message, Cause: cause, Context: map[string]interface{}{}}
}

func NewLookupError(message string, cause error) *AppError {
	return newAppError(ErrTypeLookup, message, cause)
}

func NewNetworkError(message string, cause error) *AppError {
	return newAppError(ErrTypeNetwork, message, cause)
}

func NewParsingError(message string, cause error) *AppError {
	return newAppError(ErrTypeParsing, message, cause)
}

func NewValidationError(message string, cause error) *AppError {
	return newAppError(ErrTypeValidation, message, cause)
}

// TypeOf returns the type of the outermost AppError in err's chain, or ""
// when there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType reports whether err carries an AppError of type t.
func IsType(err error, t ErrorType) bool {
	return TypeOf(err) == t
}
