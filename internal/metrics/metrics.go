// Package metrics records request, assertion and scenario counters for a
// harness run and exports them in the Prometheus text format.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "restqa"

// Metrics owns a private registry so a run never mixes with process-wide
// collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	RequestDuration   *prometheus.HistogramVec
	RequestsTotal     *prometheus.CounterVec
	RetriesTotal      prometheus.Counter
	AssertionFailures *prometheus.CounterVec
	ScenariosTotal    *prometheus.CounterVec
}

func New() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of dispatched API calls",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2, 5, 10},
		}, []string{"method", "code"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Dispatched API calls by method and status code",
		}, []string{"method", "code"}),
		RetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_retries_total",
			Help:      "Retried API calls",
		}),
		AssertionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assertion_failures_total",
			Help:      "Failed assertions by assertion mode",
		}, []string{"mode"}),
		ScenariosTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_total",
			Help:      "Executed scenarios by runner and result",
		}, []string{"runner", "result"}),
	}
	r.MustRegister(m.RequestDuration, m.RequestsTotal, m.RetriesTotal, m.AssertionFailures, m.ScenariosTotal)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveRequest records one attempt. Status 0 means a transport error.
func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.RequestsTotal.WithLabelValues(method, code).Inc()
	m.RequestDuration.WithLabelValues(method, code).Observe(d.Seconds())
}

func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

func (m *Metrics) ObserveAssertionFailures(mode string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.AssertionFailures.WithLabelValues(mode).Add(float64(n))
}

func (m *Metrics) ObserveScenario(runner string, passed bool) {
	if m == nil {
		return
	}
	result := "passed"
	if !passed {
		result = "failed"
	}
	m.ScenariosTotal.WithLabelValues(runner, result).Inc()
}

// WriteFile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
