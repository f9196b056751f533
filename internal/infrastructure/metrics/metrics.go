package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
// It implements usecase.TransferRecorder.
type Metrics struct {
	// Transfer metrics
	Transfers              *prometheus.CounterVec
	TransferDuration       *prometheus.HistogramVec
	TransferAttempts       prometheus.Histogram
	SerializationConflicts prometheus.Counter

	// Connection guard
	ConnWait prometheus.Histogram

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge

	// Idempotency and rate limiting
	IdempotentReplays prometheus.Counter
	RateLimitHits     prometheus.Counter
}

// New registers all metrics with the default registerer.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers all metrics with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Transfers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "occledger_transfers_total",
				Help: "Transfers by outcome",
			},
			[]string{"outcome"},
		),
		TransferDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "occledger_transfer_duration_seconds",
				Help:    "Transfer duration including connection queueing and retries",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"outcome"},
		),
		TransferAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "occledger_transfer_attempts",
			Help:    "Attempts used per transfer",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
		}),
		SerializationConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "occledger_serialization_conflicts_total",
			Help: "Commits rejected with SQLSTATE 40001",
		}),

		ConnWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "occledger_connection_wait_seconds",
			Help:    "Time spent waiting for the guarded database connection",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "occledger_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "occledger_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "occledger_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),

		IdempotentReplays: factory.NewCounter(prometheus.CounterOpts{
			Name: "occledger_idempotent_replays_total",
			Help: "Responses served from the idempotency store",
		}),
		RateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "occledger_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		}),
	}
}

// RecordTransfer records the outcome, duration and attempts of one transfer.
func (m *Metrics) RecordTransfer(outcome string, elapsed time.Duration, attempts int) {
	m.Transfers.WithLabelValues(outcome).Inc()
	m.TransferDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if attempts > 0 {
		m.TransferAttempts.Observe(float64(attempts))
	}
}

// RecordConflict counts one retryable commit failure.
func (m *Metrics) RecordConflict() {
	m.SerializationConflicts.Inc()
}

// ObserveConnWait records time spent queueing for the connection.
func (m *Metrics) ObserveConnWait(d time.Duration) {
	m.ConnWait.Observe(d.Seconds())
}
