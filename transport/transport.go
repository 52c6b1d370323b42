// Package transport defines the delivery substrate consumed by the
// envelope layer and two implementations: an in-process channel transport
// and a Redis list-queue transport.
//
// The protocol assumes nothing stronger than at-least-once, unordered,
// asynchronous delivery between the two role endpoints. Anything the
// substrate adds on top (durability, ordering) is incidental and must not
// be relied upon.
package transport

import (
	"context"

	"github.com/deaddrop-research/agentwire/envelope"
)

// Transport moves opaque encoded envelopes between the two roles. The
// destination names a role, not a network address; routing a role name to
// a concrete endpoint is the substrate's concern.
type Transport interface {
	// Send enqueues an encoded envelope for the given role. The payload is
	// opaque; implementations must not inspect or rewrite it.
	Send(ctx context.Context, to envelope.Origin, payload []byte) error

	// Receive blocks until an encoded envelope addressed to the given role
	// is available, or ctx is done. Delivery may duplicate and reorder.
	Receive(ctx context.Context, as envelope.Origin) ([]byte, error)
}
