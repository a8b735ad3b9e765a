// Package telemetry holds the Prometheus metrics of the prayer server.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "prayer_server"

var (
	// APIRequestsTotal counts HTTP requests by method, route and status
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_requests_total",
		Help:      "Total HTTP API requests.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes HTTP latency
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "api_request_duration_seconds",
		Help:      "HTTP API request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections tracks in-flight HTTP requests
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "api_active_connections",
		Help:      "In-flight HTTP API requests.",
	})

	// ScheduleFetches counts schedule refresh attempts by result
	ScheduleFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "schedule_fetches_total",
		Help:      "Schedule fetches by result.",
	}, []string{"result"})

	// CountdownSeconds is the remaining time to the next prayer, -1 when unavailable
	CountdownSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "countdown_seconds",
		Help:      "Seconds until the next prayer.",
	})

	// AlertsFired counts crossings handed to the dispatcher
	AlertsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_fired_total",
		Help:      "Prayer alerts fired.",
	}, []string{"prayer"})

	// AlertsDropped counts fires lost to a full dispatch buffer or a lost claim
	AlertsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_dropped_total",
		Help:      "Prayer alerts not delivered.",
	}, []string{"reason"})

	// SinkErrors counts delivery failures per sink
	SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alert_sink_errors_total",
		Help:      "Alert delivery failures.",
	}, []string{"sink"})

	// StreamClients tracks connected countdown displays
	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stream_clients",
		Help:      "Connected countdown stream clients.",
	})

	// TasbeehTaps counts counter taps
	TasbeehTaps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasbeeh_taps_total",
		Help:      "Tasbeeh counter taps.",
	})
)

// Handler exposes the metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
