package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agentmitra/portalctl/internal/dataimport"
	"github.com/agentmitra/portalctl/internal/errors"
	"github.com/agentmitra/portalctl/internal/guard"
)

// Metrics holds all Prometheus metrics for portalctl
type Metrics struct {
	// Command execution metrics
	CommandExecutions *prometheus.CounterVec
	CommandDuration   *prometheus.HistogramVec

	// Portal API client metrics
	APIRequests *prometheus.CounterVec
	APILatency  *prometheus.HistogramVec

	// Route guard metrics
	GuardDecisions *prometheus.CounterVec

	// Import metrics
	ImportStages *prometheus.CounterVec
	Imports      *prometheus.CounterVec
	ImportRows   *prometheus.CounterVec

	// Local portal server metrics
	ServerRequests *prometheus.CounterVec
	ServerLatency  *prometheus.HistogramVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		CommandExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portalctl_command_executions_total",
				Help: "Total number of command executions",
			},
			[]string{"command", "success"},
		),
		CommandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portalctl_command_duration_seconds",
				Help:    "Command execution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),

		APIRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portalctl_api_requests_total",
				Help: "Total number of portal API requests by route pattern and status",
			},
			[]string{"method", "route", "status"},
		),
		APILatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portalctl_api_request_duration_seconds",
				Help:    "Portal API request latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"method", "route"},
		),

		GuardDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portalctl_guard_decisions_total",
				Help: "Total number of route guard decisions by route and outcome",
			},
			[]string{"route", "state"},
		),

		ImportStages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portalctl_import_stage_events_total",
				Help: "Total number of import progress events by stage",
			},
			[]string{"stage"},
		),
		Imports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portalctl_imports_total",
				Help: "Total number of imports submitted by final status",
			},
			[]string{"status"},
		),
		ImportRows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portalctl_import_rows_total",
				Help: "Rows seen by imports, split into imported and invalid",
			},
			[]string{"kind"},
		),

		ServerRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portalctl_server_requests_total",
				Help: "Total number of requests served by the local portal server",
			},
			[]string{"method", "route", "status"},
		),
		ServerLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portalctl_server_request_duration_seconds",
				Help:    "Local portal server request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portalctl_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code", "component"},
		),
	}
}

// RecordCommand records one command run.
func (m *Metrics) RecordCommand(command string, elapsed time.Duration, err error) {
	m.CommandExecutions.WithLabelValues(command, strconv.FormatBool(err == nil)).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(elapsed.Seconds())
	if err != nil {
		m.RecordError(err, "cmd")
	}
}

// RecordError counts err under its structured code. Plain errors are
// counted as "unknown".
func (m *Metrics) RecordError(err error, component string) {
	if err == nil {
		return
	}
	code := string(errors.CodeOf(err))
	if code == "" {
		code = "unknown"
	}
	m.Errors.WithLabelValues(code, component).Inc()
}

// ObserveRequest has the shape of api.RequestObserver. A zero status means
// the request never got a response.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	s := "error"
	if status > 0 {
		s = strconv.Itoa(status)
	}
	m.APIRequests.WithLabelValues(method, route, s).Inc()
	m.APILatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveDecision has the shape of guard.Observer.
func (m *Metrics) ObserveDecision(d guard.Decision) {
	m.GuardDecisions.WithLabelValues(d.Route, d.State.String()).Inc()
}

// ObserveProgress counts wizard progress events by stage.
func (m *Metrics) ObserveProgress(p dataimport.Progress) {
	m.ImportStages.WithLabelValues(string(p.Stage)).Inc()
}

// ObserveImport records the outcome of a wizard import.
func (m *Metrics) ObserveImport(res *dataimport.ImportResult, err error) {
	if err != nil {
		m.Imports.WithLabelValues(string(dataimport.StatusFailed)).Inc()
		m.RecordError(err, "import")
		return
	}
	if res == nil {
		return
	}
	m.Imports.WithLabelValues(string(res.Status)).Inc()
	m.ImportRows.WithLabelValues("imported").Add(float64(res.ImportedRows))
	m.ImportRows.WithLabelValues("invalid").Add(float64(res.InvalidRows))
}

// ObserveServer records one request handled by the local portal server.
func (m *Metrics) ObserveServer(method, route string, status int, elapsed time.Duration) {
	m.ServerRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.ServerLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
