// Package metrics holds Shashin's Prometheus collectors. They register with
// the default registry and are exposed on /metrics by the health server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Command results used as the "result" label.
const (
	ResultOK      = "ok"
	ResultInvalid = "invalid"
	ResultError   = "error"
	ResultUnknown = "unknown"
)

var (
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shashin_commands_total",
		Help: "The total number of handled commands by command and result",
	}, []string{"command", "result"})
	reportsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shashin_reports_generated_total",
		Help: "The total number of rendered reports",
	})
	reportSendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shashin_report_send_failures_total",
		Help: "The total number of reports that could not be delivered",
	})
	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shashin_rate_limited_total",
		Help: "The total number of report requests refused by the rate limiter",
	})
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shashin_sessions_active",
		Help: "The current number of caller sessions held in memory",
	})
	sessionsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shashin_sessions_evicted_total",
		Help: "The total number of idle sessions evicted",
	})
)

// ObserveCommand counts one handled command.
func ObserveCommand(command, result string) {
	commandsTotal.WithLabelValues(command, result).Inc()
}

// ReportGenerated counts one rendered report.
func ReportGenerated() { reportsGenerated.Inc() }

// ReportSendFailed counts one undelivered report.
func ReportSendFailed() { reportSendFailures.Inc() }

// RateLimited counts one refused report request.
func RateLimited() { rateLimited.Inc() }

// SessionsSwept records a sweep: removed sessions and the remaining count.
func SessionsSwept(removed, remaining int) {
	sessionsEvicted.Add(float64(removed))
	sessionsActive.Set(float64(remaining))
}

// SetSessions records the current number of live sessions.
func SetSessions(n int) { sessionsActive.Set(float64(n)) }
