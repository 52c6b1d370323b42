// Package dispatch routes decoded envelopes to message-type handlers and
// wires the codec, correlation tracker, and transport together into a
// receive loop.
//
// No failure in this layer is fatal to the process: malformed input,
// duplicates, unmatched responses, and handler errors are each logged,
// counted, and confined to the envelope that caused them.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/deaddrop-research/agentwire/correlation"
	"github.com/deaddrop-research/agentwire/envelope"
	"github.com/deaddrop-research/agentwire/observability"
	"github.com/deaddrop-research/agentwire/transport"
)

// receiveBackoff is the pause after a transport receive error before the
// loop tries again.
const receiveBackoff = time.Second

// Handler processes one decoded envelope. Returning an error marks the
// dispatch as failed; it never stops the receive loop.
type Handler func(ctx context.Context, env *envelope.Envelope) error

// Dispatcher is the worker-side executor: it decodes received documents,
// enforces idempotence, resolves responses against the tracker, and routes
// requests to their registered handler through the middleware chain.
type Dispatcher struct {
	codec      *envelope.Codec
	tracker    *correlation.Tracker
	logger     Logger
	tracer     trace.Tracer
	handlers   map[envelope.MessageType]Handler
	middleware []Middleware
	mu         sync.RWMutex
}

// NewDispatcher creates a Dispatcher. A nil logger discards logs.
func NewDispatcher(codec *envelope.Codec, tracker *correlation.Tracker, logger Logger) *Dispatcher {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Dispatcher{
		codec:    codec,
		tracker:  tracker,
		logger:   logger,
		tracer:   otel.Tracer("github.com/deaddrop-research/agentwire/dispatch"),
		handlers: make(map[envelope.MessageType]Handler),
	}
}

// =============================================================================
// REGISTRATION
// =============================================================================

// RegisterHandler registers a handler for a message type.
// Only one handler per message type is allowed.
func (d *Dispatcher) RegisterHandler(t envelope.MessageType, handler Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.handlers[t]; exists {
		return NewHandlerAlreadyRegisteredError(string(t))
	}
	d.handlers[t] = handler
	d.logger.Debug("handler_registered", "message_type", string(t))
	return nil
}

// AddMiddleware appends middleware to the chain. Before hooks run in
// registration order, After hooks in reverse.
func (d *Dispatcher) AddMiddleware(mw Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.middleware = append(d.middleware, mw)
}

// HasHandler checks if a handler is registered for a message type.
func (d *Dispatcher) HasHandler(t envelope.MessageType) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, exists := d.handlers[t]
	return exists
}

// =============================================================================
// SENDING
// =============================================================================

// SendRequest encodes env, registers it with the tracker, and enqueues it
// for the peer role. The returned handle resolves with the correlated
// response or a timeout. On transport failure the pending entry is
// withdrawn so the id does not leak.
func (d *Dispatcher) SendRequest(ctx context.Context, tr transport.Transport, env *envelope.Envelope) (*correlation.PendingRequest, error) {
	raw, err := d.codec.Encode(env)
	if err != nil {
		return nil, err
	}

	pending, err := d.tracker.Track(env.ID)
	if err != nil {
		return nil, err
	}

	if err := tr.Send(ctx, env.InitiatedBy.Peer(), raw); err != nil {
		pending.Cancel()
		return nil, err
	}

	observability.RecordEncode(string(env.MessageType), string(env.InitiatedBy))
	d.logger.Debug("request_sent", "id", env.ID, "to", string(env.InitiatedBy.Peer()))
	return pending, nil
}

// Send encodes env and enqueues it for the peer role without tracking.
// Used for responses and fire-and-forget messages.
func (d *Dispatcher) Send(ctx context.Context, tr transport.Transport, env *envelope.Envelope) error {
	raw, err := d.codec.Encode(env)
	if err != nil {
		return err
	}
	if err := tr.Send(ctx, env.InitiatedBy.Peer(), raw); err != nil {
		return err
	}
	observability.RecordEncode(string(env.MessageType), string(env.InitiatedBy))
	return nil
}

// =============================================================================
// RECEIVING
// =============================================================================

// HandleRaw decodes one wire document and hands it to Handle. The
// returned error classifies the failure; callers treat every class as
// local to this envelope.
func (d *Dispatcher) HandleRaw(ctx context.Context, raw []byte) error {
	env, err := d.codec.Decode(raw)
	if err != nil {
		observability.RecordDecode("malformed")
		d.logger.Warn("envelope_malformed", "error", err)
		return err
	}
	observability.RecordDecode("ok")
	return d.Handle(ctx, env)
}

// Handle enforces idempotence on the envelope id, then either resolves a
// response against the tracker or routes a request to its handler.
func (d *Dispatcher) Handle(ctx context.Context, env *envelope.Envelope) error {
	ctx, span := d.tracer.Start(ctx, "dispatch."+string(env.MessageType))
	defer span.End()
	span.SetAttributes(
		attribute.String("envelope.id", env.ID),
		attribute.String("envelope.initiated_by", string(env.InitiatedBy)),
	)

	if err := d.tracker.Observe(env.ID); err != nil {
		var dup *correlation.DuplicateEnvelopeError
		if errors.As(err, &dup) {
			// At-least-once transport redelivered; drop without side effects.
			d.logger.Info("envelope_duplicate", "id", env.ID)
		}
		return err
	}

	if env.IsResponse() {
		return d.resolveResponse(env)
	}
	return d.invokeHandler(ctx, env)
}

// resolveResponse feeds a response into the correlation tracker.
func (d *Dispatcher) resolveResponse(env *envelope.Envelope) error {
	start := time.Now()
	if err := d.tracker.Resolve(env); err != nil {
		var unmatched *correlation.UnmatchedResponseError
		if errors.As(err, &unmatched) {
			d.logger.Warn("response_unmatched", "id", env.ID, "request_id", unmatched.RequestID)
		}
		observability.RecordDispatch(string(env.MessageType), "error", int(time.Since(start).Milliseconds()))
		return err
	}
	observability.RecordDispatch(string(env.MessageType), "success", int(time.Since(start).Milliseconds()))
	return nil
}

// invokeHandler runs the registered handler through the middleware chain.
func (d *Dispatcher) invokeHandler(ctx context.Context, env *envelope.Envelope) error {
	d.mu.RLock()
	handler, exists := d.handlers[env.MessageType]
	middlewareCopy := make([]Middleware, len(d.middleware))
	copy(middlewareCopy, d.middleware)
	d.mu.RUnlock()

	if !exists {
		d.logger.Warn("no_handler", "message_type", string(env.MessageType), "id", env.ID)
		observability.RecordDispatch(string(env.MessageType), "no_handler", 0)
		return NewNoHandlerError(string(env.MessageType))
	}

	current := env
	for _, mw := range middlewareCopy {
		processed, err := mw.Before(ctx, current)
		if err != nil {
			observability.RecordDispatch(string(env.MessageType), "error", 0)
			return err
		}
		if processed == nil {
			d.logger.Info("envelope_blocked", "id", env.ID)
			observability.RecordDispatch(string(env.MessageType), "blocked", 0)
			return nil
		}
		current = processed
	}

	start := time.Now()
	err := handler(ctx, current)

	for i := len(middlewareCopy) - 1; i >= 0; i-- {
		err = middlewareCopy[i].After(ctx, current, err)
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordDispatch(string(env.MessageType), status, int(time.Since(start).Milliseconds()))
	return err
}

// Run receives for the given role until ctx is done. Per-envelope failures
// are logged and skipped; transport errors back off and retry.
func (d *Dispatcher) Run(ctx context.Context, tr transport.Transport, as envelope.Origin) error {
	d.logger.Info("dispatcher_started", "role", string(as))
	for {
		raw, err := tr.Receive(ctx, as)
		if err != nil {
			if ctx.Err() != nil {
				d.logger.Info("dispatcher_stopped", "role", string(as))
				return nil
			}
			d.logger.Error("receive_failed", "error", err)
			select {
			case <-time.After(receiveBackoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		// Every error class here is local to one envelope.
		_ = d.HandleRaw(ctx, raw)
	}
}
