// Package envelope defines the wire envelope exchanged between the server
// and agent roles, its codec, and the identity/timestamp policy.
//
// The envelope is a flat JSON document with a strict top-level schema and
// one open extension point (`extra`). The fixed fields define the protocol;
// everything inside `extra` is advisory and may be ignored by any receiver.
package envelope

import (
	"sync"
)

// =============================================================================
// CANONICAL ENUMS
// =============================================================================

// MessageType identifies how the payload of an envelope is interpreted.
//
// The set is closed but extensible: codecs accept only the types their
// TypeRegistry recognizes, and deployments may register additional types
// at startup.
type MessageType string

const (
	// MessageTypeCommandRequest asks the receiving role to execute a command.
	MessageTypeCommandRequest MessageType = "command_request"
	// MessageTypeCommandResponse carries the result of a prior request.
	MessageTypeCommandResponse MessageType = "command_response"
)

// Origin declares the logical role that constructed an envelope.
// It names a role, not a network identity.
type Origin string

const (
	// OriginServer marks envelopes constructed by the server role.
	OriginServer Origin = "server"
	// OriginAgent marks envelopes constructed by the agent role.
	OriginAgent Origin = "agent"
)

// Valid reports whether o is one of the two defined roles.
func (o Origin) Valid() bool {
	return o == OriginServer || o == OriginAgent
}

// Peer returns the opposite role.
func (o Origin) Peer() Origin {
	if o == OriginServer {
		return OriginAgent
	}
	return OriginServer
}

// =============================================================================
// RESERVED EXTRA KEYS
// =============================================================================

// Reserved advisory keys inside `extra`. None of these are ever required
// for correct interpretation of an envelope; receivers that do not
// understand them must pass them through unchanged.
const (
	// ExtraKeyInReplyTo carries the id of the request a response answers.
	// The wire format reserves no dedicated reply field, so correlation
	// rides in the extension map by convention.
	ExtraKeyInReplyTo = "in_reply_to"

	// ExtraKeyEncodedPath is a local trace path to the carrier file a
	// message was read from or written to. Meaningful only to the endpoint
	// that set it.
	ExtraKeyEncodedPath = "encoded_path"

	// ExtraKeyDecodedPath is a local trace path to the decoded form of the
	// message. Meaningful only to the endpoint that set it.
	ExtraKeyDecodedPath = "decoded_path"
)

// =============================================================================
// TYPE REGISTRY
// =============================================================================

// TypeRegistry holds the set of message types a codec recognizes.
//
// A fresh registry contains the built-in command_request/command_response
// pair. Registration is additive; there is no way to un-register the
// built-ins. Safe for concurrent use.
type TypeRegistry struct {
	types map[MessageType]struct{}
	mu    sync.RWMutex
}

// NewTypeRegistry creates a TypeRegistry seeded with the built-in types.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		types: map[MessageType]struct{}{
			MessageTypeCommandRequest:  {},
			MessageTypeCommandResponse: {},
		},
	}
}

// Register adds a message type to the recognized set.
func (r *TypeRegistry) Register(t MessageType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.types[t] = struct{}{}
}

// Recognizes reports whether t is in the recognized set.
func (r *TypeRegistry) Recognizes(t MessageType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.types[t]
	return ok
}

// Types returns the recognized message types.
func (r *TypeRegistry) Types() []MessageType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]MessageType, 0, len(r.types))
	for t := range r.types {
		result = append(result, t)
	}
	return result
}
