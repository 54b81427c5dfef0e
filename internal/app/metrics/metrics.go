// Package metrics exposes the platform's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "brickvault",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brickvault",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "brickvault",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	investmentTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brickvault",
			Subsystem: "investments",
			Name:      "transitions_total",
			Help:      "Total number of investment state transitions.",
		},
		[]string{"status"},
	)

	investmentVolume = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brickvault",
			Subsystem: "investments",
			Name:      "completed_volume_total",
			Help:      "Total completed investment volume by currency.",
		},
		[]string{"currency"},
	)

	kycDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brickvault",
			Subsystem: "kyc",
			Name:      "decisions_total",
			Help:      "Total number of verification decisions applied.",
		},
		[]string{"status"},
	)

	chainCalls = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "brickvault",
			Subsystem: "chain",
			Name:      "rpc_duration_seconds",
			Help:      "Duration of node RPC calls.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"method", "success"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		investmentTransitions,
		investmentVolume,
		kycDecisions,
		chainCalls,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordInvestmentTransition counts an investment entering a state; on
// completion the volume counter grows by the settled amount.
func RecordInvestmentTransition(status string, amount float64, currency string) {
	investmentTransitions.WithLabelValues(status).Inc()
	if status == "completed" && amount > 0 {
		if currency == "" {
			currency = "EUR"
		}
		investmentVolume.WithLabelValues(currency).Add(amount)
	}
}

// RecordKYCDecision counts an applied verification decision.
func RecordKYCDecision(status string) {
	kycDecisions.WithLabelValues(status).Inc()
}

// RecordChainCall records the duration of one node RPC call.
func RecordChainCall(method string, duration time.Duration, success bool) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	chainCalls.WithLabelValues(method, strconv.FormatBool(success)).Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses IDs so label cardinality stays bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) > 2 && parts[0] == "api" {
		parts = parts[2:]
	}
	if len(parts) == 0 {
		return "/"
	}
	if len(parts) == 1 {
		return "/" + parts[0]
	}
	return "/" + parts[0] + "/:id"
}
