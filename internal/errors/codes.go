// Package errors provides coded domain errors for the roleforge store.
package errors

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an error that carries no domain code.
	CodeUnknown Code = "UNKNOWN"

	// CodeValidation marks malformed input to a mutation, e.g. empty message text.
	CodeValidation Code = "VALIDATION"
	// CodeNotFound marks an unknown character or conversation identifier.
	CodeNotFound Code = "NOT_FOUND"
	// CodeSerialization marks an import blob that failed structural validation.
	CodeSerialization Code = "SERIALIZATION"
	// CodePersistence marks a durable storage read or write failure.
	CodePersistence Code = "PERSISTENCE"

	// Reply generation
	CodeGenerationTimeout Code = "GENERATION_TIMEOUT"
	CodeGenerationFailed  Code = "GENERATION_FAILED"
	CodeReplyPending      Code = "REPLY_PENDING"
)

// Error is a domain error with a code, a message and optional metadata.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
// Returns nil when err is nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// WithMetadata adds a metadata key to the error and returns it.
func (e *Error) WithMetadata(key, value string) *Error {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}

// GetMetadata extracts metadata from an error if present.
func GetMetadata(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Metadata
	}
	return nil
}
