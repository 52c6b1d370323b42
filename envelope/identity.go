package envelope

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// IDENTITY & TIMESTAMP POLICY
// =============================================================================

// NewID mints a fresh envelope id: a random 128-bit UUID in canonical
// textual form. Uniqueness is probabilistic; a collision is a correctness
// bug, not a condition the protocol validates against.
func NewID() string {
	return uuid.New().String()
}

// ValidateID checks that id is a canonical UUID string. Applied on encode
// only: originators mint ids, so a malformed id is a local programming
// error. Decoders accept any non-empty opaque token.
func ValidateID(id string) error {
	if id == "" {
		return NewEncodingError("id", "must not be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return NewEncodingError("id", "must be a canonical UUID")
	}
	return nil
}

// Clock abstracts wall-clock reads so construction time is deterministic
// in tests.
type Clock interface {
	// NowUnix returns the current time as Unix epoch seconds, UTC.
	NowUnix() int64
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// NowUnix implements the Clock interface.
func (SystemClock) NowUnix() int64 {
	return time.Now().UTC().Unix()
}

// FixedClock always returns the same instant. Useful for tests.
type FixedClock int64

// NowUnix implements the Clock interface.
func (c FixedClock) NowUnix() int64 {
	return int64(c)
}
