// Package observability provides Prometheus metrics instrumentation and
// OpenTelemetry tracing for the envelope layer.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// CODEC METRICS
// =============================================================================

var (
	envelopesEncodedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentwire_envelopes_encoded_total",
			Help: "Total number of envelopes encoded for transmission",
		},
		[]string{"message_type", "initiated_by"},
	)

	envelopesDecodedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentwire_envelopes_decoded_total",
			Help: "Total number of wire documents presented to the decoder",
		},
		[]string{"status"}, // status: ok, malformed
	)
)

// =============================================================================
// CORRELATION METRICS
// =============================================================================

var (
	pendingRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentwire_pending_requests",
			Help: "Number of requests currently awaiting a correlated response",
		},
	)

	correlationTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentwire_correlation_timeouts_total",
			Help: "Total number of requests that expired without a response",
		},
	)

	unmatchedResponsesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentwire_unmatched_responses_total",
			Help: "Total number of responses referencing an unknown or resolved request",
		},
	)

	duplicateEnvelopesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentwire_duplicate_envelopes_total",
			Help: "Total number of redelivered envelope ids dropped idempotently",
		},
	)
)

// =============================================================================
// DISPATCH METRICS
// =============================================================================

var (
	dispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentwire_dispatches_total",
			Help: "Total number of envelopes routed to a handler",
		},
		[]string{"message_type", "status"}, // status: success, error, no_handler, blocked
	)

	dispatchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentwire_dispatch_duration_seconds",
			Help:    "Handler execution duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"message_type"},
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

// RecordEncode records a successful encode.
func RecordEncode(messageType string, initiatedBy string) {
	envelopesEncodedTotal.WithLabelValues(messageType, initiatedBy).Inc()
}

// RecordDecode records the outcome of a decode attempt.
func RecordDecode(status string) {
	envelopesDecodedTotal.WithLabelValues(status).Inc()
}

// SetPendingRequests records the current number of in-flight requests.
func SetPendingRequests(n int) {
	pendingRequests.Set(float64(n))
}

// RecordCorrelationTimeout records a request that expired unanswered.
func RecordCorrelationTimeout() {
	correlationTimeoutsTotal.Inc()
}

// RecordUnmatchedResponse records a response that matched no pending request.
func RecordUnmatchedResponse() {
	unmatchedResponsesTotal.Inc()
}

// RecordDuplicateEnvelope records a redelivered envelope id.
func RecordDuplicateEnvelope() {
	duplicateEnvelopesTotal.Inc()
}

// RecordDispatch records handler routing metrics.
// This should be called after envelope handling completes.
func RecordDispatch(messageType string, status string, durationMS int) {
	dispatchesTotal.WithLabelValues(messageType, status).Inc()
	dispatchDurationSeconds.WithLabelValues(messageType).Observe(float64(durationMS) / 1000.0)
}
