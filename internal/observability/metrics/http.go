package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "admission"

// HTTPServerMetrics covers the API process: requests, payment flows, the state
// store and outbound resilience.
type HTTPServerMetrics struct {
	service  string
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	paymentOrdersTotal        *prometheus.CounterVec
	paymentVerificationsTotal *prometheus.CounterVec
	autosaveWritesTotal       *prometheus.CounterVec
	stateWritesTotal          *prometheus.CounterVec
	stateFallbackReadsTotal   *prometheus.CounterVec

	*resilienceMetrics
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	paymentOrdersTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payment",
			Name:      "orders_total",
			Help:      "Payment orders requested from the gateway by flow and result.",
		},
		[]string{"service", "flow", "result"},
	)
	paymentVerificationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payment",
			Name:      "verifications_total",
			Help:      "Payment signature verifications by flow and result.",
		},
		[]string{"service", "flow", "result"},
	)
	autosaveWritesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "autosave",
			Name:      "writes_total",
			Help:      "Debounced form progress writes by step and result.",
		},
		[]string{"service", "step", "result"},
	)
	stateWritesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "state_store",
			Name:      "writes_total",
			Help:      "State store writes by substrate and result.",
		},
		[]string{"service", "substrate", "result"},
	)
	stateFallbackReadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "state_store",
			Name:      "fallback_reads_total",
			Help:      "Reads answered by the secondary substrate.",
		},
		[]string{"service", "key"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		paymentOrdersTotal,
		paymentVerificationsTotal,
		autosaveWritesTotal,
		stateWritesTotal,
		stateFallbackReadsTotal,
	)

	return &HTTPServerMetrics{
		service:                   service,
		registry:                  registry,
		requestTotal:              requestTotal,
		requestDuration:           requestDuration,
		requestInFlight:           requestInFlight,
		paymentOrdersTotal:        paymentOrdersTotal,
		paymentVerificationsTotal: paymentVerificationsTotal,
		autosaveWritesTotal:       autosaveWritesTotal,
		stateWritesTotal:          stateWritesTotal,
		stateFallbackReadsTotal:   stateFallbackReadsTotal,
		resilienceMetrics:         newResilienceMetrics(registry, service),
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			m.service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath folds path parameters so label cardinality stays bounded.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/session/progress/"):
		if strings.HasSuffix(path, "/flush") {
			return "/v1/session/progress/{step}/flush"
		}
		return "/v1/session/progress/{step}"
	case strings.HasPrefix(path, "/v1/session/steps/") && strings.HasSuffix(path, "/submit"):
		return "/v1/session/steps/{step}/submit"
	case strings.HasPrefix(path, "/v1/session/documents/"):
		return "/v1/session/documents/{kind}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) ObserveOrder(flow string, err error) {
	m.paymentOrdersTotal.WithLabelValues(m.service, flow, result(err)).Inc()
}

func (m *HTTPServerMetrics) ObserveVerification(flow string, ok bool) {
	status := "ok"
	if !ok {
		status = "rejected"
	}
	m.paymentVerificationsTotal.WithLabelValues(m.service, flow, status).Inc()
}

func (m *HTTPServerMetrics) ObserveAutoSave(step string, err error) {
	m.autosaveWritesTotal.WithLabelValues(m.service, step, result(err)).Inc()
}

func (m *HTTPServerMetrics) ObserveStateWrite(substrate string, err error) {
	m.stateWritesTotal.WithLabelValues(m.service, substrate, result(err)).Inc()
}

func (m *HTTPServerMetrics) ObserveFallbackRead(key string) {
	m.stateFallbackReadsTotal.WithLabelValues(m.service, key).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
