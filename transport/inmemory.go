package transport

import (
	"context"

	"github.com/deaddrop-research/agentwire/envelope"
)

// InMemoryTransport is a channel-backed Transport for single-process
// deployments and tests.
//
// Delivery within one queue is FIFO here, which is stronger than the
// contract; tests that care about unordered tolerance shuffle sends
// themselves.
type InMemoryTransport struct {
	queues map[envelope.Origin]chan []byte
}

// NewInMemoryTransport creates an InMemoryTransport with one buffered
// queue per role.
func NewInMemoryTransport(buffer int) *InMemoryTransport {
	return &InMemoryTransport{
		queues: map[envelope.Origin]chan []byte{
			envelope.OriginServer: make(chan []byte, buffer),
			envelope.OriginAgent:  make(chan []byte, buffer),
		},
	}
}

// Send implements the Transport interface.
func (t *InMemoryTransport) Send(ctx context.Context, to envelope.Origin, payload []byte) error {
	if !to.Valid() {
		return NewUnknownDestinationError(string(to))
	}

	// Copy so the sender can reuse its buffer.
	buf := make([]byte, len(payload))
	copy(buf, payload)

	select {
	case t.queues[to] <- buf:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive implements the Transport interface.
func (t *InMemoryTransport) Receive(ctx context.Context, as envelope.Origin) ([]byte, error) {
	if !as.Valid() {
		return nil, NewUnknownDestinationError(string(as))
	}

	select {
	case payload := <-t.queues[as]:
		return payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of queued envelopes for a role.
func (t *InMemoryTransport) Len(role envelope.Origin) int {
	if !role.Valid() {
		return 0
	}
	return len(t.queues[role])
}

// Ensure InMemoryTransport implements Transport interface.
var _ Transport = (*InMemoryTransport)(nil)
