package spotify

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for provider API calls. A nil
// *Metrics records nothing.
type Metrics struct {
	Requests         *prometheus.CounterVec
	RateLimitRetries prometheus.Counter
	Refreshes        prometheus.Counter
	AuthFailures     prometheus.Counter
	RequestDuration  prometheus.Histogram
	FeatureBatches   *prometheus.CounterVec
}

// NewMetrics registers the client metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cadence_spotify_requests_total",
			Help: "Spotify API responses by status class",
		}, []string{"class"}),
		RateLimitRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "cadence_spotify_rate_limit_retries_total",
			Help: "Requests retried after a 429 response",
		}),
		Refreshes: factory.NewCounter(prometheus.CounterOpts{
			Name: "cadence_spotify_reactive_refreshes_total",
			Help: "Credential refreshes triggered by a 401 response",
		}),
		AuthFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "cadence_spotify_auth_failures_total",
			Help: "Requests that failed authentication after one refresh",
		}),
		RequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cadence_spotify_request_duration_seconds",
			Help:    "Latency of single Spotify API round trips",
			Buckets: prometheus.DefBuckets,
		}),
		FeatureBatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cadence_spotify_feature_batches_total",
			Help: "Audio feature batches by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) observeResponse(status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(statusClass(status)).Inc()
	m.RequestDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) rateLimited() {
	if m == nil {
		return
	}
	m.RateLimitRetries.Inc()
}

func (m *Metrics) refreshed() {
	if m == nil {
		return
	}
	m.Refreshes.Inc()
}

func (m *Metrics) authFailed() {
	if m == nil {
		return
	}
	m.AuthFailures.Inc()
}

func (m *Metrics) featureBatch(ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.FeatureBatches.WithLabelValues(outcome).Inc()
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
