package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/lucidbot/chatrelay/pkg/api"
)

// TestMetricsRegistered verifies that all metrics are registered in the
// default registry without panicking.
func TestMetricsRegistered(t *testing.T) {
	expected := map[string]bool{
		"chatrelay_requests_total":               false,
		"chatrelay_request_duration_seconds":     false,
		"chatrelay_streaming_connections_active": false,
		"chatrelay_upstream_requests_total":      false,
		"chatrelay_upstream_latency_seconds":     false,
		"chatrelay_upstream_tokens_total":        false,
		"chatrelay_stream_frames_total":          false,
	}

	// Vectors only appear after their first observation.
	RequestsTotal.WithLabelValues("/chat", "GET", "2xx").Inc()
	RequestDuration.WithLabelValues("/chat", "GET").Observe(0.1)
	ObserveUpstream("openai", "test", time.Now(), nil)
	RecordTokens("openai", "test", api.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2})
	RecordFrame(api.FrameDelta)

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("metric %q not found in default registry", name)
		}
	}
}

func TestObserveUpstream(t *testing.T) {
	okBefore := counterValue(t, UpstreamRequestsTotal, "openai", "m1", "success")
	errBefore := counterValue(t, UpstreamRequestsTotal, "openai", "m1", "error")
	latBefore := histogramCount(t, UpstreamLatency, "openai", "m1")

	ObserveUpstream("openai", "m1", time.Now(), nil)
	ObserveUpstream("openai", "m1", time.Now(), errors.New("boom"))

	if got := counterValue(t, UpstreamRequestsTotal, "openai", "m1", "success") - okBefore; got != 1 {
		t.Errorf("success delta = %f, want 1", got)
	}
	if got := counterValue(t, UpstreamRequestsTotal, "openai", "m1", "error") - errBefore; got != 1 {
		t.Errorf("error delta = %f, want 1", got)
	}
	if got := histogramCount(t, UpstreamLatency, "openai", "m1") - latBefore; got != 2 {
		t.Errorf("latency samples delta = %d, want 2", got)
	}
}

func TestRecordTokens(t *testing.T) {
	promptBefore := counterValue(t, UpstreamTokensTotal, "openai", "m2", "prompt")
	complBefore := counterValue(t, UpstreamTokensTotal, "openai", "m2", "completion")

	RecordTokens("openai", "m2", api.Usage{PromptTokens: 10, CompletionTokens: 3, TotalTokens: 13})

	if got := counterValue(t, UpstreamTokensTotal, "openai", "m2", "prompt") - promptBefore; got != 10 {
		t.Errorf("prompt delta = %f", got)
	}
	if got := counterValue(t, UpstreamTokensTotal, "openai", "m2", "completion") - complBefore; got != 3 {
		t.Errorf("completion delta = %f", got)
	}
}

func TestRecordFrame(t *testing.T) {
	before := counterValue(t, StreamFramesTotal, "done")
	RecordFrame(api.FrameDone)
	if got := counterValue(t, StreamFramesTotal, "done") - before; got != 1 {
		t.Errorf("done frames delta = %f", got)
	}
}

// TestMiddlewareRecordsRoutePattern verifies that requests routed by chi
// are labelled with the route pattern.
func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	before := counterValue(t, RequestsTotal, "/chat", "POST", "2xx")

	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Post("/chat", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/chat", nil))

	after := counterValue(t, RequestsTotal, "/chat", "POST", "2xx")
	if after-before != 1 {
		t.Errorf("expected request count to increase by 1, got delta=%f", after-before)
	}
}

// TestMiddlewareRecordsDuration verifies that the middleware records
// a request duration observation.
func TestMiddlewareRecordsDuration(t *testing.T) {
	before := histogramCount(t, RequestDuration, "unmatched", "POST")

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/chat", nil))

	after := histogramCount(t, RequestDuration, "unmatched", "POST")
	if after-before != 1 {
		t.Errorf("expected histogram sample count to increase by 1, got delta=%d", after-before)
	}
}

// TestMiddlewareStreamingGauge verifies that the streaming connections gauge
// increments during a streaming request and decrements after completion.
func TestMiddlewareStreamingGauge(t *testing.T) {
	baseline := gaugeValue(t, StreamingConnections)

	inHandler := make(chan float64, 1)
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inHandler <- gaugeValue(t, StreamingConnections)
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/chat/stream", nil))

	duringRequest := <-inHandler
	afterRequest := gaugeValue(t, StreamingConnections)

	if duringRequest != baseline+1 {
		t.Errorf("expected streaming gauge=%f during request, got %f", baseline+1, duringRequest)
	}
	if afterRequest != baseline {
		t.Errorf("expected streaming gauge=%f after request, got %f", baseline, afterRequest)
	}
}

// TestMiddlewareCapturesStatusCode verifies that non-200 status codes are
// captured in the status label.
func TestMiddlewareCapturesStatusCode(t *testing.T) {
	before := counterValue(t, RequestsTotal, "unmatched", "POST", "4xx")

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/chat", nil))

	after := counterValue(t, RequestsTotal, "unmatched", "POST", "4xx")
	if after-before != 1 {
		t.Errorf("expected 4xx count to increase by 1, got delta=%f", after-before)
	}
}

// TestStatusWriterFlush verifies that Flush delegates to the underlying
// writer when it implements http.Flusher.
func TestStatusWriterFlush(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}

	sw.Flush()

	if !rec.Flushed {
		t.Error("expected underlying writer to be flushed")
	}
	if sw.Unwrap() != rec {
		t.Error("Unwrap should return the wrapped writer")
	}
}

// counterValue reads the current value of a CounterVec for the given labels.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting counter metric: %v", err)
	}
	if err := c.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing counter metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

// histogramCount reads the observation count from a HistogramVec.
func histogramCount(t *testing.T, hv *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	m := &dto.Metric{}
	obs, err := hv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting histogram metric: %v", err)
	}
	if err := obs.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing histogram metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

// gaugeValue reads the current value of a Gauge.
func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("writing gauge metric: %v", err)
	}
	return m.GetGauge().GetValue()
}
