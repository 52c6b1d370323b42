package envelope

import (
	"fmt"
)

// =============================================================================
// EXCEPTIONS
// =============================================================================

// EncodingError is raised when a caller attempts to encode an invalid
// envelope. This is a programming error on the sending side: the envelope
// is surfaced immediately and never transmitted.
type EncodingError struct {
	Field  string
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("cannot encode envelope: field %q: %s", e.Field, e.Reason)
}

// NewEncodingError creates a new EncodingError.
func NewEncodingError(field, reason string) *EncodingError {
	return &EncodingError{Field: field, Reason: reason}
}

// MalformedEnvelopeError is raised when wire input fails to decode as a
// valid envelope. Malformed input is never retried; callers log it and
// drop the document.
type MalformedEnvelopeError struct {
	Field  string
	Reason string
	Cause  error
}

func (e *MalformedEnvelopeError) Error() string {
	switch {
	case e.Field != "" && e.Cause != nil:
		return fmt.Sprintf("malformed envelope: field %q: %s: %v", e.Field, e.Reason, e.Cause)
	case e.Field != "":
		return fmt.Sprintf("malformed envelope: field %q: %s", e.Field, e.Reason)
	case e.Cause != nil:
		return fmt.Sprintf("malformed envelope: %s: %v", e.Reason, e.Cause)
	default:
		return fmt.Sprintf("malformed envelope: %s", e.Reason)
	}
}

func (e *MalformedEnvelopeError) Unwrap() error {
	return e.Cause
}

// NewMalformedEnvelopeError creates a new MalformedEnvelopeError.
func NewMalformedEnvelopeError(field, reason string) *MalformedEnvelopeError {
	return &MalformedEnvelopeError{Field: field, Reason: reason}
}

// WrapMalformedEnvelopeError creates a MalformedEnvelopeError caused by a
// lower-level parse error.
func WrapMalformedEnvelopeError(reason string, cause error) *MalformedEnvelopeError {
	return &MalformedEnvelopeError{Reason: reason, Cause: cause}
}
