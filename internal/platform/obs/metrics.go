package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service.
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	OptimizationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "route_optimization_duration_seconds", Help: "Solver wall time per route build.", Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10}},
	)
	OptimizationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "route_optimization_failures_total", Help: "Route builds that produced no usable order."},
	)

	// StopCompletions counts stops moved to done, by source (manual, skip, proximity).
	StopCompletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stop_completions_total", Help: "Stops marked done by source."},
		[]string{"source"},
	)

	RoadPathFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "road_path_fallbacks_total", Help: "Road path lookups that fell back to straight lines, by reason."},
		[]string{"reason"},
	)
)

var regOnce sync.Once

// RegisterDefault registers the collectors on Registry. Safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(OptimizationDuration)
		Registry.MustRegister(OptimizationFailures)
		Registry.MustRegister(StopCompletions)
		Registry.MustRegister(RoadPathFallbacks)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
