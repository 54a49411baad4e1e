package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// FailureKind classifies why an outbound operation could not complete.
// Public APIs keep their boolean contracts; the kind travels with the logged
// error so failures are observable without string matching.
type FailureKind string

const (
	// NotConfigured: missing credentials; permanent until reconfigured.
	NotConfigured FailureKind = "not_configured"
	// Unauthenticated: no token or an expired one; resolved by the auth flow.
	Unauthenticated FailureKind = "unauthenticated"
	// NetworkFailure: timeout or connection error; transient.
	NetworkFailure FailureKind = "network_failure"
	// RemoteRejected: non-success HTTP status; treated as transient.
	RemoteRejected FailureKind = "remote_rejected"
	// MissingField: incomplete notification data; a programming error.
	MissingField FailureKind = "missing_field"
)

type Failure struct {
	Kind FailureKind
	Err  error
}

func NewFailure(kind FailureKind, err error) *Failure {
	return &Failure{Kind: kind, Err: err}
}

func NewFailuref(kind FailureKind, format string, args ...interface{}) *Failure {
	return &Failure{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// KindOf returns the FailureKind carried by err, or "" if err is not a Failure.
func KindOf(err error) FailureKind {
	if f, ok := errors.Cause(err).(*Failure); ok {
		return f.Kind
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
