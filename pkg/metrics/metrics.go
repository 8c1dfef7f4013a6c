package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"
)

// Metrics holds the daemon's Prometheus collectors on a private registry
type Metrics struct {
	registry  *prometheus.Registry
	startTime time.Time

	compiles        *prometheus.CounterVec
	compileDuration prometheus.Histogram
	commands        *prometheus.CounterVec
	units           *prometheus.CounterVec
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
		compiles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "charon_compile_total",
				Help: "Package compilations by result",
			},
			[]string{"result"},
		),
		compileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "charon_compile_duration_seconds",
				Help:    "Time to load and compile a package",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "charon_command_synthesis_total",
				Help: "Command lines generated by backend and result",
			},
			[]string{"backend", "result"},
		),
		units: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "charon_unit_operations_total",
				Help: "Unit file writes and removals by result",
			},
			[]string{"operation", "result"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "charon_http_requests_total",
				Help: "Requests served over the control socket",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "charon_http_request_duration_seconds",
				Help:    "Request latency over the control socket",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	uptime := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "charon_uptime_seconds",
			Help: "Time since the daemon started",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	m.registry.MustRegister(
		m.compiles,
		m.compileDuration,
		m.commands,
		m.units,
		m.requests,
		m.requestDuration,
		uptime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordCompile records one compilation
func (m *Metrics) RecordCompile(d time.Duration, err error) {
	m.compiles.WithLabelValues(result(err)).Inc()
	m.compileDuration.Observe(d.Seconds())
}

// RecordCommand records one command synthesis
func (m *Metrics) RecordCommand(backend string, err error) {
	m.commands.WithLabelValues(backend, result(err)).Inc()
}

// RecordUnit records one unit write or removal
func (m *Metrics) RecordUnit(operation string, err error) {
	m.units.WithLabelValues(operation, result(err)).Inc()
}

// RecordRequest records one served request
func (m *Metrics) RecordRequest(method, route string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ServeHTTP serves Prometheus-compatible metrics at /metrics
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	families, err := m.registry.Gather()
	if err != nil {
		http.Error(w, fmt.Sprintf("Error gathering metrics: %v", err), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			http.Error(w, fmt.Sprintf("Error encoding metrics: %v", err), http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", string(expfmt.FmtText))
	w.Write(buf.Bytes())
}
