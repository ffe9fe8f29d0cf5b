// Package metrics holds the Prometheus collectors exported by the relay.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "relay",
	Subsystem: "upstream",
	Name:      "requests_total",
	Help:      "Number of requests sent to the assistant API by endpoint, method and status code",
}, []string{"endpoint", "method", "code"})

var UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "relay",
	Subsystem: "upstream",
	Name:      "request_duration_seconds",
	Help:      "Latency of requests sent to the assistant API",
	Buckets:   prometheus.DefBuckets,
}, []string{"endpoint", "method"})

var RunPolls = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "relay",
	Subsystem: "run",
	Name:      "poll_attempts",
	Help:      "Number of status fetches needed before a run finished or the poller gave up",
	Buckets:   []float64{1, 2, 3, 5, 8, 13, 20, 30, 40},
})

var RunOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "relay",
	Subsystem: "run",
	Name:      "outcomes_total",
	Help:      "Final state of polled runs (completed, failed, cancelled, expired, timeout)",
}, []string{"outcome"})

// ObserveUpstream records one upstream call. code is 0 when the request
// never produced an HTTP response.
func ObserveUpstream(endpoint, method string, code int, elapsed time.Duration) {
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	UpstreamRequests.WithLabelValues(endpoint, method, label).Inc()
	UpstreamDuration.WithLabelValues(endpoint, method).Observe(elapsed.Seconds())
}

// ObserveRun records the result of one poll loop.
func ObserveRun(outcome string, attempts int) {
	RunOutcomes.WithLabelValues(outcome).Inc()
	RunPolls.Observe(float64(attempts))
}
