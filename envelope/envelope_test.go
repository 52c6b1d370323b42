package envelope

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CONSTRUCTION TESTS
// =============================================================================

func TestNewMintsIdentity(t *testing.T) {
	e := New(MessageTypeCommandRequest, OriginServer, []byte("payload"))

	_, err := uuid.Parse(e.ID)
	require.NoError(t, err, "minted id must be a canonical UUID")
	assert.GreaterOrEqual(t, e.Timestamp, int64(0))
	assert.Equal(t, "cGF5bG9hZA==", e.Data)
	assert.Nil(t, e.Extra)
}

func TestNewIDsAreUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := NewID()
		_, dup := seen[id]
		require.False(t, dup, "id collision: %s", id)
		seen[id] = struct{}{}
	}
}

func TestNewWithClock(t *testing.T) {
	e := NewWithClock(FixedClock(1700000000), MessageTypeCommandRequest, OriginAgent, nil)
	assert.Equal(t, int64(1700000000), e.Timestamp)
	assert.Equal(t, "", e.Data, "absent payload is the empty string")
}

func TestOptions(t *testing.T) {
	e := New(MessageTypeCommandRequest, OriginServer, nil,
		WithID("bd65600d-8669-4903-8a14-af88203add38"),
		WithTimestamp(42),
		WithExtraKey(ExtraKeyEncodedPath, "/tmp/out.mp4"),
	)

	assert.Equal(t, "bd65600d-8669-4903-8a14-af88203add38", e.ID)
	assert.Equal(t, int64(42), e.Timestamp)
	assert.Equal(t, "/tmp/out.mp4", e.Extra[ExtraKeyEncodedPath])
}

func TestNewResponseCorrelation(t *testing.T) {
	req := New(MessageTypeCommandRequest, OriginServer, []byte("run"))
	resp := NewResponse(req, OriginAgent, []byte("done"))

	assert.Equal(t, MessageTypeCommandResponse, resp.MessageType)
	assert.Equal(t, OriginAgent, resp.InitiatedBy)
	assert.NotEqual(t, req.ID, resp.ID, "a response mints its own id")

	inReplyTo, ok := resp.InReplyTo()
	require.True(t, ok)
	assert.Equal(t, req.ID, inReplyTo)
}

func TestInReplyToAbsent(t *testing.T) {
	e := New(MessageTypeCommandResponse, OriginAgent, nil)
	_, ok := e.InReplyTo()
	assert.False(t, ok)

	e.Extra = map[string]string{ExtraKeyInReplyTo: ""}
	_, ok = e.InReplyTo()
	assert.False(t, ok, "empty in_reply_to carries no correlation")
}

// =============================================================================
// VALUE SEMANTICS TESTS
// =============================================================================

func TestCloneIsIndependent(t *testing.T) {
	e := New(MessageTypeCommandRequest, OriginServer, []byte("x"),
		WithExtraKey("foo", "bar"))
	clone := e.Clone()

	require.True(t, e.Equal(clone))

	clone.Extra["foo"] = "mutated"
	assert.Equal(t, "bar", e.Extra["foo"], "clone must not share the extension map")
}

func TestEqualDistinguishesAbsentAndEmptyExtra(t *testing.T) {
	a := validEnvelope()
	b := validEnvelope()
	require.True(t, a.Equal(b))

	b.Extra = map[string]string{}
	assert.False(t, a.Equal(b))

	a.Extra = map[string]string{}
	assert.True(t, a.Equal(b))
}

func TestPayloadRejectsBadBase64(t *testing.T) {
	e := validEnvelope()
	e.Data = "%%%"
	_, err := e.Payload()
	var encErr *EncodingError
	assert.ErrorAs(t, err, &encErr)
}

// =============================================================================
// ENUM AND REGISTRY TESTS
// =============================================================================

func TestOriginValidity(t *testing.T) {
	assert.True(t, OriginServer.Valid())
	assert.True(t, OriginAgent.Valid())
	assert.False(t, Origin("operator").Valid())
	assert.Equal(t, OriginAgent, OriginServer.Peer())
	assert.Equal(t, OriginServer, OriginAgent.Peer())
}

func TestTypeRegistry(t *testing.T) {
	r := NewTypeRegistry()
	assert.True(t, r.Recognizes(MessageTypeCommandRequest))
	assert.True(t, r.Recognizes(MessageTypeCommandResponse))
	assert.False(t, r.Recognizes(MessageType("frobnicate")))

	r.Register(MessageType("frobnicate"))
	assert.True(t, r.Recognizes(MessageType("frobnicate")))
	assert.Len(t, r.Types(), 3)
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("bd65600d-8669-4903-8a14-af88203add38"))

	var encErr *EncodingError
	assert.ErrorAs(t, ValidateID(""), &encErr)
	assert.ErrorAs(t, ValidateID("not-a-uuid"), &encErr)
}
