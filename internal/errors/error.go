package errors

import (
	stderrors "errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig     Category = "config"
	CategoryRemote     Category = "remote"
	CategoryCache      Category = "cache"
	CategoryValidation Category = "validation"
	CategoryCLI        Category = "cli"
)

// DiscussError is a structured error with a registered code, suggestions and
// an optional wrapped cause.
type DiscussError struct {
	// Code is a unique error identifier (e.g., "E301").
	Code string

	// Category is the error type (config, remote, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of this occurrence.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *DiscussError) Error() string {
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
func (e *DiscussError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is a DiscussError or a Code with the same code.
func (e *DiscussError) Is(target error) bool {
	switch t := target.(type) {
	case *DiscussError:
		return t.Code != "" && t.Code == e.Code
	case Code:
		return t != "" && string(t) == e.Code
	}
	return false
}

// Code is a registered error code usable as an immutable sentinel:
// errors.Is(err, Code("E301")) matches any DiscussError with that code.
type Code string

// Error implements the error interface.
func (c Code) Error() string {
	if tmpl, ok := registry[string(c)]; ok {
		return string(c) + ": " + tmpl.Message
	}
	return string(c)
}

// WithSuggestion adds a fix suggestion to the error.
func (e *DiscussError) WithSuggestion(s string) *DiscussError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *DiscussError) WithDetail(d string) *DiscussError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *DiscussError) Wrap(err error) *DiscussError {
	e.Wrapped = err
	return e
}

// New creates a DiscussError from a registered error code.
func New(code string) *DiscussError {
	template, ok := registry[code]
	if !ok {
		return &DiscussError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &DiscussError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Suggestion: template.Suggestion,
	}
}

// Newf creates a new DiscussError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *DiscussError {
	return &DiscussError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a DiscussError.
// Errors that already are (or wrap) a DiscussError are returned as is.
func FromError(err error, code string) *DiscussError {
	if err == nil {
		return nil
	}
	var de *DiscussError
	if stderrors.As(err, &de) {
		return de
	}
	return New(code).Wrap(err)
}

// HasCode reports whether err is or wraps a DiscussError with the given code.
func HasCode(err error, code string) bool {
	return stderrors.Is(err, Code(code))
}
