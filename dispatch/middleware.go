package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/deaddrop-research/agentwire/envelope"
)

// =============================================================================
// MIDDLEWARE PROTOCOL
// =============================================================================

// Middleware intercepts envelopes before and after handling, for
// cross-cutting concerns such as logging and failure protection.
type Middleware interface {
	// Before is called before the handler runs.
	// Returns the (possibly replaced) envelope, or nil to block handling.
	Before(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error)

	// After is called after the handler returns, with the handler's error.
	After(ctx context.Context, env *envelope.Envelope, err error) error
}

// =============================================================================
// LOGGING MIDDLEWARE
// =============================================================================

// LoggingMiddleware logs all envelope traffic through the dispatcher.
type LoggingMiddleware struct {
	logger Logger
}

// NewLoggingMiddleware creates a new LoggingMiddleware.
func NewLoggingMiddleware(logger Logger) *LoggingMiddleware {
	if logger == nil {
		logger = NopLogger{}
	}
	return &LoggingMiddleware{logger: logger}
}

// Before logs envelope receipt.
func (m *LoggingMiddleware) Before(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
	m.logger.Debug("envelope_received",
		"id", env.ID,
		"message_type", string(env.MessageType),
		"initiated_by", string(env.InitiatedBy))
	return env, nil
}

// After logs handling completion.
func (m *LoggingMiddleware) After(ctx context.Context, env *envelope.Envelope, err error) error {
	if err != nil {
		m.logger.Warn("envelope_handling_failed", "id", env.ID, "error", err)
	} else {
		m.logger.Debug("envelope_handled", "id", env.ID)
	}
	return err
}

// =============================================================================
// CIRCUIT BREAKER MIDDLEWARE
// =============================================================================

// circuitState is the per-message-type breaker state.
type circuitState struct {
	failures    int
	lastFailure time.Time
	state       string // "closed", "open", "half-open"
}

// CircuitBreakerMiddleware protects handlers from cascading failures.
//
// After a threshold of consecutive handler failures for one message type
// the circuit opens and envelopes of that type are blocked until the reset
// timeout elapses; a single trial envelope then closes or reopens it.
type CircuitBreakerMiddleware struct {
	failureThreshold int
	resetTimeout     time.Duration
	states           map[envelope.MessageType]*circuitState
	logger           Logger
	mu               sync.Mutex
}

// NewCircuitBreakerMiddleware creates a new CircuitBreakerMiddleware.
// A threshold of zero disables opening.
func NewCircuitBreakerMiddleware(failureThreshold int, resetTimeout time.Duration, logger Logger) *CircuitBreakerMiddleware {
	if logger == nil {
		logger = NopLogger{}
	}
	return &CircuitBreakerMiddleware{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		states:           make(map[envelope.MessageType]*circuitState),
		logger:           logger,
	}
}

// getState gets or creates state for a message type. Caller holds m.mu.
func (m *CircuitBreakerMiddleware) getState(t envelope.MessageType) *circuitState {
	if _, exists := m.states[t]; !exists {
		m.states[t] = &circuitState{state: "closed"}
	}
	return m.states[t]
}

// Before checks the breaker state for the envelope's message type.
func (m *CircuitBreakerMiddleware) Before(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.getState(env.MessageType)
	if state.state == "open" {
		if time.Since(state.lastFailure) >= m.resetTimeout {
			state.state = "half-open"
			m.logger.Info("circuit_half_open", "message_type", string(env.MessageType))
		} else {
			m.logger.Warn("circuit_open_blocking", "message_type", string(env.MessageType), "id", env.ID)
			return nil, nil // Block the envelope
		}
	}
	return env, nil
}

// After updates breaker state from the handler outcome.
func (m *CircuitBreakerMiddleware) After(ctx context.Context, env *envelope.Envelope, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.getState(env.MessageType)
	if err != nil {
		state.failures++
		state.lastFailure = time.Now()

		if state.state == "half-open" {
			state.state = "open"
			m.logger.Warn("circuit_reopened", "message_type", string(env.MessageType))
		} else if m.failureThreshold > 0 && state.failures >= m.failureThreshold {
			state.state = "open"
			m.logger.Warn("circuit_opened", "message_type", string(env.MessageType), "failures", state.failures)
		}
	} else if state.state == "half-open" {
		state.state = "closed"
		state.failures = 0
		m.logger.Info("circuit_closed", "message_type", string(env.MessageType))
	}
	return err
}

// States returns the current circuit state per message type.
func (m *CircuitBreakerMiddleware) States() map[envelope.MessageType]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make(map[envelope.MessageType]string, len(m.states))
	for t, s := range m.states {
		result[t] = s.state
	}
	return result
}

// Reset clears breaker state for one message type, or all when t is nil.
func (m *CircuitBreakerMiddleware) Reset(t *envelope.MessageType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t != nil {
		delete(m.states, *t)
	} else {
		m.states = make(map[envelope.MessageType]*circuitState)
	}
}

// Ensure all middleware types implement Middleware interface.
var (
	_ Middleware = (*LoggingMiddleware)(nil)
	_ Middleware = (*CircuitBreakerMiddleware)(nil)
)
