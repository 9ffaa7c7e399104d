// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the chat relay.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lucidbot/chatrelay/pkg/api"
)

// LLMBuckets defines histogram buckets suited for completion latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by route, method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_requests_total",
			Help: "Total requests",
		},
		[]string{"route", "method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatrelay_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"route", "method"},
	)

	// StreamingConnections tracks the number of active SSE relays.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatrelay_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// UpstreamRequestsTotal counts completion calls sent upstream.
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_upstream_requests_total",
			Help: "Upstream requests",
		},
		[]string{"provider", "model", "status"},
	)

	// UpstreamLatency records upstream call latency in seconds. For streams
	// this is the full stream duration.
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatrelay_upstream_latency_seconds",
			Help:    "Upstream latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// UpstreamTokensTotal counts tokens reported by the upstream by
	// direction (prompt/completion).
	UpstreamTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_upstream_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)

	// StreamFramesTotal counts frames written to streaming clients by kind.
	StreamFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_stream_frames_total",
			Help: "Stream frames written",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		UpstreamRequestsTotal,
		UpstreamLatency,
		UpstreamTokensTotal,
		StreamFramesTotal,
	)
}

// ObserveUpstream records the outcome and latency of one upstream call.
func ObserveUpstream(provider, model string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	UpstreamRequestsTotal.WithLabelValues(provider, model, status).Inc()
	UpstreamLatency.WithLabelValues(provider, model).Observe(time.Since(start).Seconds())
}

// RecordTokens adds usage reported by the upstream.
func RecordTokens(provider, model string, u api.Usage) {
	UpstreamTokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(u.PromptTokens))
	UpstreamTokensTotal.WithLabelValues(provider, model, "completion").Add(float64(u.CompletionTokens))
}

// RecordFrame counts one frame written to a streaming client.
func RecordFrame(kind api.FrameKind) {
	StreamFramesTotal.WithLabelValues(kind.String()).Inc()
}
