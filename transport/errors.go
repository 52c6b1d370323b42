package transport

import (
	"fmt"
)

// UnknownDestinationError is raised when a send or receive names a role
// outside the two defined endpoints.
type UnknownDestinationError struct {
	Role string
}

func (e *UnknownDestinationError) Error() string {
	return fmt.Sprintf("unknown destination role %q", e.Role)
}

// NewUnknownDestinationError creates a new UnknownDestinationError.
func NewUnknownDestinationError(role string) *UnknownDestinationError {
	return &UnknownDestinationError{Role: role}
}
