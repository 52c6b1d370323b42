package envelope

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
)

// =============================================================================
// CODEC
// =============================================================================

// Codec converts between the wire representation and in-memory envelopes,
// enforcing schema validity in both directions.
//
// The top-level schema is strict: a document with any key outside the six
// defined fields is rejected. The extension map is open: unknown keys
// inside `extra` pass through unvalidated. That asymmetry is the contract
// separating protocol-defining fields from advisory ones.
//
// Codecs are stateless per call and safe for concurrent use.
type Codec struct {
	types *TypeRegistry
}

// NewCodec creates a Codec using the given type registry. A nil registry
// yields a codec that recognizes only the built-in message types.
func NewCodec(types *TypeRegistry) *Codec {
	if types == nil {
		types = NewTypeRegistry()
	}
	return &Codec{types: types}
}

// Types returns the registry this codec validates message types against.
func (c *Codec) Types() *TypeRegistry {
	return c.types
}

// Encode validates e and produces its wire form: a flat UTF-8 JSON
// document with exactly the defined top-level keys. Fails with
// *EncodingError if the envelope violates the schema; an invalid envelope
// is never transmitted.
func (c *Codec) Encode(e *Envelope) ([]byte, error) {
	if e == nil {
		return nil, NewEncodingError("envelope", "must not be nil")
	}
	if err := ValidateID(e.ID); err != nil {
		return nil, err
	}
	if !c.types.Recognizes(e.MessageType) {
		return nil, NewEncodingError("message_type", "unrecognized message type "+string(e.MessageType))
	}
	if !e.InitiatedBy.Valid() {
		return nil, NewEncodingError("initiated_by", "must be \"server\" or \"agent\"")
	}
	if e.Timestamp < 0 {
		return nil, NewEncodingError("timestamp", "must be a non-negative Unix timestamp")
	}
	if _, err := base64.StdEncoding.Strict().DecodeString(e.Data); err != nil {
		return nil, NewEncodingError("data", "must be valid Base64")
	}

	// Two wire shapes so an empty-but-present extension map survives the
	// round trip: nil extra is omitted, empty extra is emitted as {}.
	if e.Extra == nil {
		return json.Marshal(struct {
			ID          string      `json:"id"`
			MessageType MessageType `json:"message_type"`
			InitiatedBy Origin      `json:"initiated_by"`
			Timestamp   int64       `json:"timestamp"`
			Data        string      `json:"data"`
		}{e.ID, e.MessageType, e.InitiatedBy, e.Timestamp, e.Data})
	}
	return json.Marshal(struct {
		ID          string            `json:"id"`
		MessageType MessageType       `json:"message_type"`
		InitiatedBy Origin            `json:"initiated_by"`
		Timestamp   int64             `json:"timestamp"`
		Data        string            `json:"data"`
		Extra       map[string]string `json:"extra"`
	}{e.ID, e.MessageType, e.InitiatedBy, e.Timestamp, e.Data, e.Extra})
}

// wireProbe detects missing required fields via pointer nil-ness before
// any value-level validation runs.
type wireProbe struct {
	ID          *string           `json:"id"`
	MessageType *string           `json:"message_type"`
	InitiatedBy *string           `json:"initiated_by"`
	Timestamp   *int64            `json:"timestamp"`
	Data        *string           `json:"data"`
	Extra       map[string]string `json:"extra"`
}

// Decode parses and validates a wire document. Fails with
// *MalformedEnvelopeError if the input is not a flat JSON object, if any
// required field is missing or of the wrong type, or if message_type or
// initiated_by fall outside their enumerations. Malformed input is dropped
// by callers, never retried.
func (c *Codec) Decode(raw []byte) (*Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var probe wireProbe
	if err := dec.Decode(&probe); err != nil {
		return nil, WrapMalformedEnvelopeError("not a valid envelope document", err)
	}
	// A single flat document only; trailing JSON values are rejected.
	if dec.More() {
		return nil, NewMalformedEnvelopeError("", "trailing data after envelope document")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, NewMalformedEnvelopeError("", "trailing data after envelope document")
	}

	switch {
	case probe.ID == nil:
		return nil, NewMalformedEnvelopeError("id", "required field missing")
	case probe.MessageType == nil:
		return nil, NewMalformedEnvelopeError("message_type", "required field missing")
	case probe.InitiatedBy == nil:
		return nil, NewMalformedEnvelopeError("initiated_by", "required field missing")
	case probe.Timestamp == nil:
		return nil, NewMalformedEnvelopeError("timestamp", "required field missing")
	case probe.Data == nil:
		return nil, NewMalformedEnvelopeError("data", "required field missing")
	}

	if *probe.ID == "" {
		return nil, NewMalformedEnvelopeError("id", "must not be empty")
	}
	if !c.types.Recognizes(MessageType(*probe.MessageType)) {
		return nil, NewMalformedEnvelopeError("message_type", "unrecognized message type "+*probe.MessageType)
	}
	origin := Origin(*probe.InitiatedBy)
	if !origin.Valid() {
		return nil, NewMalformedEnvelopeError("initiated_by", "must be \"server\" or \"agent\"")
	}
	if *probe.Timestamp < 0 {
		return nil, NewMalformedEnvelopeError("timestamp", "must be a non-negative Unix timestamp")
	}
	if _, err := base64.StdEncoding.Strict().DecodeString(*probe.Data); err != nil {
		return nil, NewMalformedEnvelopeError("data", "must be valid Base64")
	}

	return &Envelope{
		ID:          *probe.ID,
		MessageType: MessageType(*probe.MessageType),
		InitiatedBy: origin,
		Timestamp:   *probe.Timestamp,
		Data:        *probe.Data,
		Extra:       probe.Extra,
	}, nil
}
