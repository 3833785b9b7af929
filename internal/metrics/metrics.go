// Package metrics holds the dedicated Prometheus registry and the daemon's
// collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the daemon.
	Registry = prometheus.NewRegistry()

	// PositionsReceived counts position samples accepted from feeders.
	PositionsReceived = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "positions_received_total", Help: "Position samples received from feeders."},
	)

	// SamplesEvaluated counts proximity evaluations performed.
	SamplesEvaluated = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "proximity_samples_evaluated_total", Help: "Position samples evaluated against active alarms."},
	)

	// TriggersFired counts geofence entries by alarm.
	TriggersFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "alarm_triggers_fired_total", Help: "Geofence entry events by alarm."},
		[]string{"alarm"},
	)

	// PlaceLookups counts place lookup calls by operation and outcome.
	PlaceLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "place_lookups_total", Help: "Place lookup calls by operation and status."},
		[]string{"op", "status"},
	)

	// HTTPRequests counts API requests by method, path, and status.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
)

var registerOnce sync.Once

// RegisterDefault registers all collectors on the dedicated registry.
func RegisterDefault() {
	registerOnce.Do(func() {
		Registry.MustRegister(PositionsReceived)
		Registry.MustRegister(SamplesEvaluated)
		Registry.MustRegister(TriggersFired)
		Registry.MustRegister(PlaceLookups)
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
