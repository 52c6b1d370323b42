// Package correlation matches response envelopes to the requests they
// answer and enforces idempotent handling of duplicate deliveries.
//
// The codec itself is stateless; this is the one stateful component of the
// protocol layer. A Tracker holds the mapping from outstanding request id
// to a pending-result handle, removes entries when a correlated response
// arrives or the per-request timeout elapses, and remembers recently seen
// envelope ids so a redelivery is detected instead of reprocessed.
package correlation

import (
	"context"
	"sync"
	"time"

	"github.com/deaddrop-research/agentwire/envelope"
	"github.com/deaddrop-research/agentwire/observability"
)

const defaultSeenTTL = time.Hour

// result is what a waiter eventually receives: a correlated response or a
// timeout error, never both.
type result struct {
	env *envelope.Envelope
	err error
}

type pendingRequest struct {
	id    string
	done  chan result
	timer *time.Timer
}

// PendingRequest is the caller-side handle for one in-flight request.
type PendingRequest struct {
	tracker *Tracker
	p       *pendingRequest
}

// ID returns the tracked request id.
func (r *PendingRequest) ID() string {
	return r.p.id
}

// Wait blocks until the correlated response arrives, the timeout elapses
// (*CorrelationTimeoutError), or ctx is done. Cancelling via ctx removes
// the pending entry.
func (r *PendingRequest) Wait(ctx context.Context) (*envelope.Envelope, error) {
	select {
	case res := <-r.p.done:
		return res.env, res.err
	case <-ctx.Done():
		r.Cancel()
		return nil, ctx.Err()
	}
}

// Cancel withdraws the request from the tracker. A late response will be
// reported as unmatched. Safe to call more than once.
func (r *PendingRequest) Cancel() {
	r.tracker.cancel(r.p.id)
}

// Tracker is the correlation bookkeeper. One instance is shared by all
// call sites that send requests or receive responses; there is no ambient
// singleton. Safe for concurrent use; contention is low (one entry per
// in-flight request), so a single lock guards both maps.
type Tracker struct {
	timeout time.Duration
	seenTTL time.Duration

	pending map[string]*pendingRequest
	seen    map[string]time.Time
	mu      sync.Mutex
}

// NewTracker creates a Tracker with the given per-request response
// timeout. Seen-id records are kept for one hour.
func NewTracker(timeout time.Duration) *Tracker {
	return NewTrackerWithSeenTTL(timeout, defaultSeenTTL)
}

// NewTrackerWithSeenTTL creates a Tracker with an explicit retention
// window for the duplicate-detection index.
func NewTrackerWithSeenTTL(timeout, seenTTL time.Duration) *Tracker {
	return &Tracker{
		timeout: timeout,
		seenTTL: seenTTL,
		pending: make(map[string]*pendingRequest),
		seen:    make(map[string]time.Time),
	}
}

// Track registers an outstanding request and starts its timeout timer.
// The returned handle resolves when the correlated response arrives or
// the window elapses. Tracking the same id twice is a duplicate.
func (t *Tracker) Track(requestID string) (*PendingRequest, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.pending[requestID]; exists {
		return nil, NewDuplicateEnvelopeError(requestID)
	}

	p := &pendingRequest{
		id:   requestID,
		done: make(chan result, 1),
	}
	p.timer = time.AfterFunc(t.timeout, func() { t.expire(requestID) })
	t.pending[requestID] = p
	observability.SetPendingRequests(len(t.pending))

	return &PendingRequest{tracker: t, p: p}, nil
}

// Resolve delivers a response to the waiter of the request it references.
// Fails with *UnmatchedResponseError if the response carries no request
// reference or the referenced request is unknown or already resolved.
func (t *Tracker) Resolve(resp *envelope.Envelope) error {
	requestID, ok := resp.InReplyTo()
	if !ok {
		observability.RecordUnmatchedResponse()
		return NewUnmatchedResponseError(resp.ID, "")
	}

	t.mu.Lock()
	p, exists := t.pending[requestID]
	if exists {
		delete(t.pending, requestID)
		observability.SetPendingRequests(len(t.pending))
	}
	t.mu.Unlock()

	if !exists {
		observability.RecordUnmatchedResponse()
		return NewUnmatchedResponseError(resp.ID, requestID)
	}

	p.timer.Stop()
	p.done <- result{env: resp}
	return nil
}

// Observe records delivery of an envelope id. The second delivery of a
// known id fails with *DuplicateEnvelopeError and has no side effects
// beyond the error itself.
func (t *Tracker) Observe(envelopeID string) error {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.pruneSeenLocked(now)
	if _, dup := t.seen[envelopeID]; dup {
		observability.RecordDuplicateEnvelope()
		return NewDuplicateEnvelopeError(envelopeID)
	}
	t.seen[envelopeID] = now
	return nil
}

// PendingCount returns the number of outstanding requests.
func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.pending)
}

// Clear drops all pending entries and seen ids. Useful for testing.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, p := range t.pending {
		p.timer.Stop()
	}
	t.pending = make(map[string]*pendingRequest)
	t.seen = make(map[string]time.Time)
	observability.SetPendingRequests(0)
}

// expire removes a pending entry whose window elapsed and signals the
// waiter. Runs on the timer goroutine.
func (t *Tracker) expire(requestID string) {
	t.mu.Lock()
	p, exists := t.pending[requestID]
	if exists {
		delete(t.pending, requestID)
		observability.SetPendingRequests(len(t.pending))
	}
	t.mu.Unlock()

	if !exists {
		// Resolved or cancelled between the timer firing and this call.
		return
	}
	observability.RecordCorrelationTimeout()
	p.done <- result{err: NewCorrelationTimeoutError(requestID, t.timeout)}
}

// cancel silently removes a pending entry.
func (t *Tracker) cancel(requestID string) {
	t.mu.Lock()
	p, exists := t.pending[requestID]
	if exists {
		delete(t.pending, requestID)
		observability.SetPendingRequests(len(t.pending))
	}
	t.mu.Unlock()

	if exists {
		p.timer.Stop()
	}
}

// pruneSeenLocked evicts seen-id records older than the retention window.
// Caller holds t.mu.
func (t *Tracker) pruneSeenLocked(now time.Time) {
	for id, at := range t.seen {
		if now.Sub(at) > t.seenTTL {
			delete(t.seen, id)
		}
	}
}
