package errors

import (
	stderrors "errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryPersistence Category = "persistence"
	CategoryStore       Category = "store"
	CategoryConfig      Category = "config"
	CategoryCLI         Category = "cli"
)

// DuxError is a structured error carrying a registered code and the store or
// storage key it concerns.
type DuxError struct {
	// Code is a unique error identifier (e.g., "D001").
	Code string

	// Category is the error type.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Store is the display name of the store involved, if any.
	Store string

	// Key is the persistence key or config path involved, if any.
	Key string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *DuxError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *DuxError) Unwrap() error {
	return e.Wrapped
}

// WithStore records the store the error concerns.
func (e *DuxError) WithStore(name string) *DuxError {
	e.Store = name
	return e
}

// WithKey records the persistence key or config path the error concerns.
func (e *DuxError) WithKey(key string) *DuxError {
	e.Key = key
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *DuxError) WithSuggestion(s string) *DuxError {
	e.Suggestion = s
	return e
}

// WithDetail replaces the registered explanation.
func (e *DuxError) WithDetail(d string) *DuxError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *DuxError) Wrap(err error) *DuxError {
	e.Wrapped = err
	return e
}

// New creates a DuxError from a registered error code.
func New(code string) *DuxError {
	template, ok := registry[code]
	if !ok {
		return &DuxError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &DuxError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
	}
}

// Newf creates a new DuxError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *DuxError {
	return &DuxError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a DuxError. Errors that already carry
// a code are returned unchanged.
func FromError(err error, code string) *DuxError {
	if err == nil {
		return nil
	}
	var de *DuxError
	if stderrors.As(err, &de) {
		return de
	}
	return New(code).Wrap(err)
}

// HasCode reports whether err, or any error it wraps, is a DuxError with code.
func HasCode(err error, code string) bool {
	var de *DuxError
	for err != nil {
		if !stderrors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Wrapped
	}
	return false
}

// As returns the first DuxError in err's chain.
func As(err error) (*DuxError, bool) {
	var de *DuxError
	if stderrors.As(err, &de) {
		return de, true
	}
	return nil, false
}
