package model

import (
	"errors"
	"fmt"
)

// Error is the coded error returned by grid enumeration, evaluation and storage.
//
// Kinds:
//   - CONFIG: bad grid definition, morphology, boundaries or merge arguments
//   - RANGE: node ID outside the grid, or a resume marker foreign to the shard
//   - SKIP: a node that cannot be evaluated and should be passed over
//   - STORAGE: constraint violation or unusable database file
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Kind categorizes errors.
type Kind string

const (
	KindConfig  Kind = "CONFIG"
	KindRange   Kind = "RANGE"
	KindSkip    Kind = "SKIP"
	KindStorage Kind = "STORAGE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Configf creates a configuration error.
func Configf(format string, args ...any) *Error {
	return &Error{Kind: KindConfig, Message: fmt.Sprintf(format, args...)}
}

// Rangef creates a range error.
func Rangef(format string, args ...any) *Error {
	return &Error{Kind: KindRange, Message: fmt.Sprintf(format, args...)}
}

// Skip wraps err as a recoverable skip.
func Skip(message string, err error) *Error {
	return &Error{Kind: KindSkip, Message: message, Err: err}
}

// Storage wraps err as a storage integrity error.
func Storage(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool { return KindOf(err) == KindConfig }

// IsRange reports whether err is a range error.
func IsRange(err error) bool { return KindOf(err) == KindRange }

// IsSkip reports whether err is a recoverable skip.
func IsSkip(err error) bool { return KindOf(err) == KindSkip }

// IsStorage reports whether err is a storage integrity error.
func IsStorage(err error) bool { return KindOf(err) == KindStorage }
