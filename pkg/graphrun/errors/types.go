package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Labeled is implemented by errors that name their own error_type.
type Labeled interface {
	ErrorType() string
}

// ErrorType returns the label of the first Labeled error in err's chain,
// or "Error".
func ErrorType(err error) string {
	var l Labeled
	if errors.As(err, &l) {
		return l.ErrorType()
	}
	return "Error"
}

// WithType labels err. The label is visible through ErrorType, and err
// stays reachable through errors.Is and errors.As.
func WithType(err error, label string) error {
	if err == nil {
		return nil
	}
	return &labeled{err: err, label: label}
}

type labeled struct {
	err   error
	label string
}

func (e *labeled) Error() string     { return e.err.Error() }
func (e *labeled) Unwrap() error     { return e.err }
func (e *labeled) ErrorType() string { return e.label }

// StatusError is a non-2xx answer from a remote endpoint.
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("status %d from %s: %s", e.Code, e.URL, e.Body)
}

// ErrorType implements Labeled.
func (e *StatusError) ErrorType() string { return "HTTPResponseCodeError" }

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.Code == 429 || e.Code >= 500
}

// InputError rejects a node input or configuration value.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input %s: %s", e.Field, e.Reason)
}

// ErrorType implements Labeled.
func (e *InputError) ErrorType() string { return "ValidationError" }

// TimeoutError reports an operation that ran out of time inside a node.
// It is not a run cancellation.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	if e.After <= 0 {
		return e.Op + " timed out"
	}
	return fmt.Sprintf("%s timed out after %s", e.Op, e.After)
}

// ErrorType implements Labeled.
func (e *TimeoutError) ErrorType() string { return "TimeoutError" }

// Temporary implements the temporary-error convention.
func (e *TimeoutError) Temporary() bool { return true }

// IsCanceled reports whether err stems from context cancellation or an
// expired deadline.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Temporary reports whether err is worth retrying under the default policy:
// network timeouts and errors reporting Temporary() true. Cancellation is
// never temporary.
func Temporary(err error) bool {
	if err == nil || IsCanceled(err) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var t interface{ Temporary() bool }
	return errors.As(err, &t) && t.Temporary()
}
