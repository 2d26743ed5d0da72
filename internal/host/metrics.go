package host

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	responseTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "response_time",
			Help:    "http response time.",
			Buckets: []float64{0.005, 0.05, 0.5, 1, 5, 10, 30},
		},
	)

	totalHttpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "total_http_requests", Help: "http requests by code, and method"},
		[]string{"code", "method"},
	)

	scriptRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jshandler_requests_total", Help: "requests handled by a location script, by status"},
		[]string{"location", "code"},
	)

	scriptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jshandler_script_duration_seconds",
			Help:    "time from acquiring an execution context to handing the response to the server.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"location"},
	)

	scriptErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jshandler_script_errors_total", Help: "requests that failed inside the script or its context"},
		[]string{"location"},
	)

	deferredResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jshandler_deferred_responses_total", Help: "responses sent without a body"},
		[]string{"location"},
	)

	idleContexts = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "jshandler_idle_contexts", Help: "execution contexts waiting for a request"},
		[]string{"location"},
	)
)

func init() {
	prometheus.MustRegister(
		responseTime,
		totalHttpRequests,
		scriptRequests,
		scriptDuration,
		scriptErrors,
		deferredResponses,
		idleContexts,
	)
}

// Collect counts every HTTP request except scrapes of /metrics.
func Collect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			if r.URL.Path == "/metrics" {
				return
			}
			totalHttpRequests.WithLabelValues(strconv.Itoa(ww.Status()), r.Method).Inc()
			responseTime.Observe(time.Since(start).Seconds())
		}()
		next.ServeHTTP(ww, r)
	})
}

// NewPromHttpHandler returns the /metrics handler.
func NewPromHttpHandler() http.Handler { return promhttp.Handler() }
