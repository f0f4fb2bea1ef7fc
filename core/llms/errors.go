package llms

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a failed generation attempt. Every error crossing the
// adapter boundary carries exactly one kind.
type ErrorKind string

const (
	ErrorTimeout          ErrorKind = "timeout"
	ErrorAuthFailure      ErrorKind = "auth_failure"
	ErrorModelUnavailable ErrorKind = "model_unavailable"
	ErrorRateLimited      ErrorKind = "rate_limited"
	ErrorUnknown          ErrorKind = "unknown"
)

// ClassifiedError is the normalized error contract of the generation
// adapter. Transport, authentication and parsing failures are all converted
// into one of these before they leave a provider client.
type ClassifiedError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *ClassifiedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed (%s): %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("generation failed (%s): %s", e.Kind, e.Detail)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// NewError builds a ClassifiedError wrapping an optional cause.
func NewError(kind ErrorKind, detail string, cause error) *ClassifiedError {
	return &ClassifiedError{Kind: kind, Detail: detail, Err: cause}
}

// KindOf extracts the classification from an error, mapping context
// cancellation to a timeout and anything unclassified to ErrorUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorTimeout
	}
	return ErrorUnknown
}
