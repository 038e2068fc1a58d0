package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry dedicated registry of the engine
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ecoflow_http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "ecoflow_http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// RouteQueries counts solver invocations by operation (find_route, optimize_waypoints) and outcome.
	RouteQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ecoflow_route_queries_total", Help: "Route queries by operation and outcome."},
		[]string{"operation", "outcome"},
	)
	RouteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "ecoflow_route_duration_seconds", Help: "Route query duration in seconds.", Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30}},
		[]string{"operation"},
	)
	SettledNodes = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "ecoflow_astar_settled_nodes", Help: "Nodes settled per A* search.", Buckets: prometheus.ExponentialBuckets(1, 4, 10)},
	)
	OptimizerGenerations = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ecoflow_optimizer_generations_total", Help: "NSGA-II generations evaluated."},
	)
	RouteCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ecoflow_route_cache_lookups_total", Help: "Route cache lookups by result."},
		[]string{"result"},
	)

	TrafficUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ecoflow_traffic_update_cycles_total", Help: "Traffic update cycles by outcome."},
		[]string{"outcome"},
	)
	TrafficEdgesUpdated = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ecoflow_traffic_edges_updated_total", Help: "Edges written by traffic updates."},
	)
	SensorReadings = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ecoflow_sensor_readings_total", Help: "Sensor readings by source and result."},
		[]string{"source", "result"},
	)
)

var regOnce sync.Once

// RegisterDefault registers every collector on Registry. safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(RouteQueries)
		Registry.MustRegister(RouteDuration)
		Registry.MustRegister(SettledNodes)
		Registry.MustRegister(OptimizerGenerations)
		Registry.MustRegister(RouteCacheLookups)
		Registry.MustRegister(TrafficUpdates)
		Registry.MustRegister(TrafficEdgesUpdated)
		Registry.MustRegister(SensorReadings)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
