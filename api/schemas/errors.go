// api/schemas/errors.go
package schemas

import (
	"errors"
	"fmt"
)

// FailureKind tags a run failure with its place in the error taxonomy.
type FailureKind string

const (
	// FailureMissingCredentials is fatal to the run and never retried.
	FailureMissingCredentials FailureKind = "missing_credentials"
	// FailureFieldsNotFound means the login form contract was broken.
	FailureFieldsNotFound FailureKind = "fields_not_found"
	// FailureTimeout means a bounded wait was exceeded.
	FailureTimeout FailureKind = "timeout"
	// FailureRejectedCredentials means the classifier saw valid signals and
	// still decided fail.
	FailureRejectedCredentials FailureKind = "rejected_credentials"
	// FailureUnexpected covers any other driver error, full message preserved.
	FailureUnexpected FailureKind = "unexpected"
)

// RunError is a classified run failure. The message is what lands in the
// StatusRecord, so it must stay human readable.
type RunError struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *RunError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *RunError) Unwrap() error { return e.Err }

// NewRunError builds a RunError wrapping an optional cause.
func NewRunError(kind FailureKind, msg string, cause error) *RunError {
	return &RunError{Kind: kind, Message: msg, Err: cause}
}

// KindOf extracts the FailureKind from err, defaulting to FailureUnexpected.
func KindOf(err error) FailureKind {
	var re *RunError
	if errors.As(err, &re) {
		return re.Kind
	}
	return FailureUnexpected
}

// Retryable reports whether a failure kind is eligible for the single
// automatic retry. Missing credentials are recorded without an attempt, so
// they are never retried.
func Retryable(kind FailureKind) bool {
	return kind != FailureMissingCredentials
}

// ErrAccountNotFound is returned by stores when no account matches a name.
var ErrAccountNotFound = errors.New("account not found")

// ErrAccountExists is returned when creation would violate name uniqueness.
var ErrAccountExists = errors.New("account already exists")
