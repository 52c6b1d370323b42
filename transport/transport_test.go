package transport

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deaddrop-research/agentwire/envelope"
)

// =============================================================================
// IN-MEMORY TRANSPORT TESTS
// =============================================================================

func TestInMemorySendReceive(t *testing.T) {
	tr := NewInMemoryTransport(8)
	ctx := context.Background()

	require.NoError(t, tr.Send(ctx, envelope.OriginAgent, []byte("one")))
	require.NoError(t, tr.Send(ctx, envelope.OriginAgent, []byte("two")))
	assert.Equal(t, 2, tr.Len(envelope.OriginAgent))
	assert.Equal(t, 0, tr.Len(envelope.OriginServer))

	got, err := tr.Receive(ctx, envelope.OriginAgent)
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), got)
}

func TestInMemoryQueuesAreIsolated(t *testing.T) {
	tr := NewInMemoryTransport(8)
	ctx := context.Background()

	require.NoError(t, tr.Send(ctx, envelope.OriginServer, []byte("for-server")))

	recvCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err := tr.Receive(recvCtx, envelope.OriginAgent)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInMemorySendCopiesPayload(t *testing.T) {
	tr := NewInMemoryTransport(1)
	ctx := context.Background()

	buf := []byte("original")
	require.NoError(t, tr.Send(ctx, envelope.OriginAgent, buf))
	copy(buf, "mutated!")

	got, err := tr.Receive(ctx, envelope.OriginAgent)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)
}

func TestInMemoryReceiveHonorsContext(t *testing.T) {
	tr := NewInMemoryTransport(1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := tr.Receive(ctx, envelope.OriginServer)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Receive did not observe cancellation")
	}
}

func TestUnknownRole(t *testing.T) {
	tr := NewInMemoryTransport(1)
	ctx := context.Background()

	var unknown *UnknownDestinationError
	assert.ErrorAs(t, tr.Send(ctx, "operator", nil), &unknown)
	_, err := tr.Receive(ctx, "operator")
	assert.ErrorAs(t, err, &unknown)
}

// =============================================================================
// REDIS TRANSPORT TESTS (integration, skipped without a broker)
// =============================================================================

func redisTransportForTest(t *testing.T) *RedisTransport {
	t.Helper()

	addr := os.Getenv("AGENTWIRE_REDIS_ADDR")
	if addr == "" {
		t.Skip("AGENTWIRE_REDIS_ADDR not set; skipping Redis integration test")
	}

	client, err := NewRedisClient("redis://" + addr + "/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisTransport(client, "agentwire-test:queue:")
}

func TestRedisSendReceive(t *testing.T) {
	tr := redisTransportForTest(t)
	ctx := context.Background()

	require.NoError(t, tr.Send(ctx, envelope.OriginServer, []byte("payload")))

	recvCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	got, err := tr.Receive(recvCtx, envelope.OriginServer)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestRedisReceiveHonorsContext(t *testing.T) {
	tr := redisTransportForTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := tr.Receive(ctx, envelope.OriginAgent)
	assert.Error(t, err)
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := NewRedisClient("not-a-url")
	assert.Error(t, err)
}
