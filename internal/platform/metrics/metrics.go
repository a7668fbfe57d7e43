package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the relay.
type Metrics struct {
	RequestsCreated     *prometheus.CounterVec
	CallbacksReceived   *prometheus.CounterVec
	CallbackAuthFailed  prometheus.Counter
	UpstreamDurationSec *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RequestsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vcrelay_requests_created_total",
			Help: "Verified ID requests successfully registered upstream, by flow",
		}, []string{"flow"}),
		CallbacksReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vcrelay_callbacks_received_total",
			Help: "Accepted request service callbacks, by reported status",
		}, []string{"status"}),
		CallbackAuthFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vcrelay_callback_auth_failures_total",
			Help: "Callbacks rejected for a wrong or missing api-key",
		}),
		UpstreamDurationSec: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vcrelay_upstream_request_duration_seconds",
			Help:    "Latency of outbound request service calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
	}
}

// ObserveUpstream records the latency of one outbound request service call.
func (m *Metrics) ObserveUpstream(endpoint string, d time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamDurationSec.WithLabelValues(endpoint).Observe(d.Seconds())
}

// IncRequestCreated counts a successfully registered request for a flow.
func (m *Metrics) IncRequestCreated(flow string) {
	if m == nil {
		return
	}
	m.RequestsCreated.WithLabelValues(flow).Inc()
}

// IncCallback counts an accepted callback by its reported status.
func (m *Metrics) IncCallback(status string) {
	if m == nil {
		return
	}
	m.CallbacksReceived.WithLabelValues(status).Inc()
}

// IncCallbackAuthFailure counts a callback rejected by the gate.
func (m *Metrics) IncCallbackAuthFailure() {
	if m == nil {
		return
	}
	m.CallbackAuthFailed.Inc()
}
