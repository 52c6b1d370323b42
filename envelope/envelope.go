package envelope

import (
	"encoding/base64"
)

// Envelope is the canonical message unit exchanged between the server and
// agent roles.
//
// An Envelope is immutable once constructed: a sender that wants to re-send
// modified content must mint a new envelope (and with it a new ID). The
// transport may deliver the same envelope more than once; receivers key
// idempotent handling on ID.
//
// Data always holds the Base64 text form of the payload. An absent payload
// is the empty string, never a missing field.
type Envelope struct {
	// ID is a globally unique opaque token, used for deduplication and
	// correlation.
	ID string `json:"id"`

	// MessageType determines how Data is interpreted.
	MessageType MessageType `json:"message_type"`

	// InitiatedBy is the role of the originating endpoint.
	InitiatedBy Origin `json:"initiated_by"`

	// Timestamp is Unix epoch seconds (UTC) at construction time on the
	// originator. Advisory only: receivers must not use it for ordering.
	Timestamp int64 `json:"timestamp"`

	// Data is the Base64-encoded payload, opaque to the envelope layer.
	Data string `json:"data"`

	// Extra is free-form advisory metadata. Absent, empty, and
	// unknown-keyed forms are all valid; receivers ignore keys they do
	// not recognize and relays preserve the map verbatim.
	Extra map[string]string `json:"extra,omitempty"`
}

// Option configures envelope construction.
type Option func(*Envelope)

// WithID overrides the minted id. Callers own uniqueness when using this.
func WithID(id string) Option {
	return func(e *Envelope) { e.ID = id }
}

// WithTimestamp overrides the construction-time timestamp.
func WithTimestamp(ts int64) Option {
	return func(e *Envelope) { e.Timestamp = ts }
}

// WithExtra replaces the advisory extension map.
func WithExtra(extra map[string]string) Option {
	return func(e *Envelope) { e.Extra = extra }
}

// WithExtraKey sets a single advisory key.
func WithExtraKey(key, value string) Option {
	return func(e *Envelope) {
		if e.Extra == nil {
			e.Extra = make(map[string]string)
		}
		e.Extra[key] = value
	}
}

// WithInReplyTo records the id of the request this envelope answers under
// the reserved in_reply_to key.
func WithInReplyTo(requestID string) Option {
	return WithExtraKey(ExtraKeyInReplyTo, requestID)
}

// New constructs an envelope with a freshly minted id and the current
// wall-clock timestamp. The payload is Base64-encoded here; callers hand
// in raw bytes.
func New(messageType MessageType, initiatedBy Origin, payload []byte, opts ...Option) *Envelope {
	return NewWithClock(SystemClock{}, messageType, initiatedBy, payload, opts...)
}

// NewWithClock is New with an explicit clock for deterministic timestamps.
func NewWithClock(clock Clock, messageType MessageType, initiatedBy Origin, payload []byte, opts ...Option) *Envelope {
	e := &Envelope{
		ID:          NewID(),
		MessageType: messageType,
		InitiatedBy: initiatedBy,
		Timestamp:   clock.NowUnix(),
		Data:        base64.StdEncoding.EncodeToString(payload),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewResponse constructs a command_response correlated to request. The
// response gets its own id; the request id rides in extra under
// in_reply_to.
func NewResponse(request *Envelope, initiatedBy Origin, payload []byte, opts ...Option) *Envelope {
	opts = append([]Option{WithInReplyTo(request.ID)}, opts...)
	return New(MessageTypeCommandResponse, initiatedBy, payload, opts...)
}

// Payload decodes and returns the raw payload bytes.
func (e *Envelope) Payload() ([]byte, error) {
	raw, err := base64.StdEncoding.Strict().DecodeString(e.Data)
	if err != nil {
		return nil, NewEncodingError("data", "must be valid Base64")
	}
	return raw, nil
}

// InReplyTo returns the correlated request id, if the originator recorded
// one under the reserved extra key.
func (e *Envelope) InReplyTo() (string, bool) {
	if e.Extra == nil {
		return "", false
	}
	id, ok := e.Extra[ExtraKeyInReplyTo]
	return id, ok && id != ""
}

// IsResponse reports whether this envelope is a command response.
func (e *Envelope) IsResponse() bool {
	return e.MessageType == MessageTypeCommandResponse
}

// Clone creates a deep copy of the envelope.
func (e *Envelope) Clone() *Envelope {
	clone := *e
	if e.Extra != nil {
		clone.Extra = make(map[string]string, len(e.Extra))
		for k, v := range e.Extra {
			clone.Extra[k] = v
		}
	}
	return &clone
}

// Equal reports field-for-field equality, including the distinction
// between an absent and an empty extension map.
func (e *Envelope) Equal(other *Envelope) bool {
	if e == nil || other == nil {
		return e == other
	}
	if e.ID != other.ID ||
		e.MessageType != other.MessageType ||
		e.InitiatedBy != other.InitiatedBy ||
		e.Timestamp != other.Timestamp ||
		e.Data != other.Data {
		return false
	}
	if (e.Extra == nil) != (other.Extra == nil) {
		return false
	}
	if len(e.Extra) != len(other.Extra) {
		return false
	}
	for k, v := range e.Extra {
		if ov, ok := other.Extra[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
