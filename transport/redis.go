package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deaddrop-research/agentwire/envelope"
)

// DefaultQueuePrefix is prepended to the role name to form the Redis list
// key, e.g. "agentwire:queue:server".
const DefaultQueuePrefix = "agentwire:queue:"

// blockInterval bounds each server-side BRPOP wait so Receive can observe
// context cancellation between polls.
const blockInterval = 5 * time.Second

// RedisTransport is a Transport backed by Redis list queues, one list per
// role. The durable lists give at-least-once delivery across process
// restarts.
type RedisTransport struct {
	client *redis.Client
	prefix string
}

// NewRedisClient dials a Redis broker from a URL such as
// "redis://localhost:6379/0".
func NewRedisClient(brokerURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid broker URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// NewRedisTransport creates a RedisTransport on an existing client. An
// empty prefix selects DefaultQueuePrefix. The caller owns the client's
// lifecycle.
func NewRedisTransport(client *redis.Client, prefix string) *RedisTransport {
	if prefix == "" {
		prefix = DefaultQueuePrefix
	}
	return &RedisTransport{client: client, prefix: prefix}
}

// QueueKey returns the Redis list key for a role's inbound queue.
func (t *RedisTransport) QueueKey(role envelope.Origin) string {
	return t.prefix + string(role)
}

// Send implements the Transport interface.
func (t *RedisTransport) Send(ctx context.Context, to envelope.Origin, payload []byte) error {
	if !to.Valid() {
		return NewUnknownDestinationError(string(to))
	}
	if err := t.client.LPush(ctx, t.QueueKey(to), payload).Err(); err != nil {
		return fmt.Errorf("enqueue to %s: %w", t.QueueKey(to), err)
	}
	return nil
}

// Receive implements the Transport interface.
func (t *RedisTransport) Receive(ctx context.Context, as envelope.Origin) ([]byte, error) {
	if !as.Valid() {
		return nil, NewUnknownDestinationError(string(as))
	}

	key := t.QueueKey(as)
	for {
		res, err := t.client.BRPop(ctx, blockInterval, key).Result()
		if errors.Is(err, redis.Nil) {
			// Queue still empty after this poll; check for cancellation
			// and block again.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("dequeue from %s: %w", key, err)
		}
		// BRPOP returns [key, value].
		return []byte(res[1]), nil
	}
}

// Ensure RedisTransport implements Transport interface.
var _ Transport = (*RedisTransport)(nil)
