package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deaddrop-research/agentwire/envelope"
	"github.com/deaddrop-research/agentwire/transport"
)

// Integration tests; they need a live broker and are skipped without one.

func storeForTest(t *testing.T) *RedisStore {
	t.Helper()

	addr := os.Getenv("AGENTWIRE_REDIS_ADDR")
	if addr == "" {
		t.Skip("AGENTWIRE_REDIS_ADDR not set; skipping Redis integration test")
	}

	client, err := transport.NewRedisClient("redis://" + addr + "/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client)
}

func TestPutGetRoundTrip(t *testing.T) {
	s := storeForTest(t)
	ctx := context.Background()

	e := envelope.New(envelope.MessageTypeCommandRequest, envelope.OriginAgent, []byte("hello"),
		envelope.WithExtraKey("foo", "bar"))
	t.Cleanup(func() { _ = s.Delete(ctx, e.ID) })

	require.NoError(t, s.Put(ctx, e))

	got, err := s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, e.Equal(got))
}

func TestPutGetWithoutExtra(t *testing.T) {
	s := storeForTest(t)
	ctx := context.Background()

	e := envelope.New(envelope.MessageTypeCommandResponse, envelope.OriginServer, nil)
	t.Cleanup(func() { _ = s.Delete(ctx, e.ID) })

	require.NoError(t, s.Put(ctx, e))

	got, err := s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Extra)
	assert.True(t, e.Equal(got))
}

func TestGetMissing(t *testing.T) {
	s := storeForTest(t)

	_, err := s.Get(context.Background(), envelope.NewID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkSeen(t *testing.T) {
	s := storeForTest(t)
	ctx := context.Background()

	id := envelope.NewID()

	fresh, err := s.MarkSeen(ctx, id)
	require.NoError(t, err)
	assert.True(t, fresh)

	again, err := s.MarkSeen(ctx, id)
	require.NoError(t, err)
	assert.False(t, again, "second mark must report the id as known")

	seen, err := s.WasSeen(ctx, id)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestListIDs(t *testing.T) {
	s := storeForTest(t)
	ctx := context.Background()

	e := envelope.New(envelope.MessageTypeCommandRequest, envelope.OriginServer, nil)
	t.Cleanup(func() { _ = s.Delete(ctx, e.ID) })
	require.NoError(t, s.Put(ctx, e))

	ids, err := s.ListIDs(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, e.ID)
}
