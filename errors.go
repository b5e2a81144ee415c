package esdex

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/esdex/internal/domain"
)

// Execution-time error types re-exported from the domain layer.
// Use errors.As() to check.
type (
	// TransportError is a connection-level failure (dial, timeout).
	TransportError = domain.TransportError
	// ResponseError is a non-success engine response with status and body.
	ResponseError = domain.ResponseError
)

// UsageError reports malformed criteria input detected while building, such
// as an unsupported value shape passed to Where. It is recorded on the
// criteria when the offending call is made and returned by Render and every
// execution entry point before any request is sent. Failsafe mode never
// swallows it.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string {
	return "invalid criteria: " + e.Reason
}

func usageErrorf(format string, args ...any) *UsageError {
	return &UsageError{Reason: fmt.Sprintf(format, args...)}
}

// BulkItemError is a single failed action inside an otherwise successful
// bulk call. It is never returned as an error; it is collected into the
// batch report.
type BulkItemError struct {
	Operation string // index, update, delete
	ID        string
	Status    int
	Reason    string
}

func (e *BulkItemError) Error() string {
	return fmt.Sprintf("bulk %s %q: status %d: %s", e.Operation, e.ID, e.Status, e.Reason)
}

// BulkReport accumulates the outcome of all batches flushed by a Batcher.
type BulkReport struct {
	Successes int
	Failures  []BulkItemError
}

// Failed reports whether any item in any batch failed.
func (r *BulkReport) Failed() bool {
	return len(r.Failures) > 0
}

// failsafeCatches reports whether err is an execution-time error that
// failsafe mode converts into an empty result. Build-time usage errors are
// deliberately excluded.
func failsafeCatches(err error) bool {
	var te *TransportError
	var re *ResponseError
	return errors.As(err, &te) || errors.As(err, &re)
}
