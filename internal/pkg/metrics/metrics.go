// Package metrics exposes Prometheus counters and histograms for router
// outcomes and proxy latency.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels the router's decision for one request.
type Outcome string

const (
	OutcomeResolved      Outcome = "resolved"
	OutcomeNoSession     Outcome = "no_session"
	OutcomeNoTarget      Outcome = "no_target"
	OutcomeUpstreamError Outcome = "upstream_error"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linkup_router_requests_total",
		Help: "Requests handled by the router, labeled by outcome.",
	}, []string{"outcome"})

	proxyLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "linkup_proxy_request_duration_seconds",
		Help:    "Latency of proxied requests from receipt to upstream response.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(requestsTotal, proxyLatency)
}

// RecordOutcome increments the router outcome counter and observes the
// request's latency in seconds.
func RecordOutcome(outcome Outcome, latencySeconds float64) {
	requestsTotal.WithLabelValues(string(outcome)).Inc()
	proxyLatency.WithLabelValues(string(outcome)).Observe(latencySeconds)
}

// Handler returns a gin handler serving the Prometheus exposition format.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
