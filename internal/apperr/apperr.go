// Package apperr carries the engine's error taxonomy. Every error has a kind,
// used for errors.Is matching and transport mapping, and a stable
// machine-readable code that callers translate into human text.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error
type Kind string

const (
	KindNotFound             Kind = "not_found"
	KindInvalidInput         Kind = "invalid_input"
	KindUnsupportedOperation Kind = "unsupported_operation"
	KindNoLevelsDefined      Kind = "no_levels_defined"
	KindInvalidConfiguration Kind = "invalid_configuration"
)

// Kind sentinels for errors.Is
var (
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrInvalidInput         = &Error{Kind: KindInvalidInput}
	ErrUnsupportedOperation = &Error{Kind: KindUnsupportedOperation}
	ErrNoLevelsDefined      = &Error{Kind: KindNoLevelsDefined}
	ErrInvalidConfiguration = &Error{Kind: KindInvalidConfiguration}
)

// Error is a classified domain error
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind, so errors.Is(err, ErrNotFound) holds for any not-found code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return t.Kind == e.Kind
}

// NotFound builds a not-found error
func NotFound(code, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

// InvalidInput builds an invalid-input error
func InvalidInput(code, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Unsupported builds an unsupported-operation error
func Unsupported(code, format string, args ...any) *Error {
	return &Error{Kind: KindUnsupportedOperation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// NoLevels builds a no-levels-defined error
func NoLevels(goalID string) *Error {
	return &Error{
		Kind:    KindNoLevelsDefined,
		Code:    "goal_levels_not_defined",
		Message: fmt.Sprintf("goal %s has no levels", goalID),
	}
}

// InvalidConfiguration builds an invalid-configuration error
func InvalidConfiguration(code string, err error) *Error {
	return &Error{Kind: KindInvalidConfiguration, Code: code, Message: "invalid configuration", Err: err}
}

// As extracts the *Error from err's chain
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code of a classified error, or "" for anything else
func CodeOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}
