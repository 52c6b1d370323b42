package correlation

import (
	"fmt"
	"time"
)

// =============================================================================
// EXCEPTIONS
// =============================================================================

// DuplicateEnvelopeError is raised when an envelope id is seen a second
// time. The transport is at-least-once, so duplicates are expected;
// handling is an idempotent no-op and the error is non-fatal.
type DuplicateEnvelopeError struct {
	ID string
}

func (e *DuplicateEnvelopeError) Error() string {
	return fmt.Sprintf("envelope %s already processed", e.ID)
}

// NewDuplicateEnvelopeError creates a new DuplicateEnvelopeError.
func NewDuplicateEnvelopeError(id string) *DuplicateEnvelopeError {
	return &DuplicateEnvelopeError{ID: id}
}

// UnmatchedResponseError is raised when a response references an unknown
// or already-resolved request id. Non-fatal: the response is logged and
// discarded.
type UnmatchedResponseError struct {
	ResponseID string
	RequestID  string
}

func (e *UnmatchedResponseError) Error() string {
	if e.RequestID == "" {
		return fmt.Sprintf("response %s carries no request reference", e.ResponseID)
	}
	return fmt.Sprintf("response %s references unknown or resolved request %s", e.ResponseID, e.RequestID)
}

// NewUnmatchedResponseError creates a new UnmatchedResponseError.
func NewUnmatchedResponseError(responseID, requestID string) *UnmatchedResponseError {
	return &UnmatchedResponseError{ResponseID: responseID, RequestID: requestID}
}

// CorrelationTimeoutError is raised when no response arrives within the
// configured window. Recoverable: the caller may retry with a freshly
// minted envelope id.
type CorrelationTimeoutError struct {
	RequestID string
	Timeout   time.Duration
}

func (e *CorrelationTimeoutError) Error() string {
	return fmt.Sprintf("request %s timed out after %.2fs", e.RequestID, e.Timeout.Seconds())
}

// NewCorrelationTimeoutError creates a new CorrelationTimeoutError.
func NewCorrelationTimeoutError(requestID string, timeout time.Duration) *CorrelationTimeoutError {
	return &CorrelationTimeoutError{RequestID: requestID, Timeout: timeout}
}
