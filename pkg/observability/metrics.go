package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aymericbeaumet/loupe/domain/graph"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Query session metrics
	Fetches       *prometheus.CounterVec
	FetchDuration prometheus.Histogram
	Elements      *prometheus.CounterVec

	// Index metrics
	RecordsIndexed prometheus.Counter
	IndexQueries   *prometheus.CounterVec
	StoreOps       *prometheus.CounterVec

	// Websocket metrics
	ViewConnections prometheus.Gauge
}

// NewCollector creates a metrics collector with its own registry.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetches_total",
				Help:      "Trie fragment requests by outcome",
			},
			[]string{"outcome"},
		),
		FetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Time spent waiting for trie fragments",
				Buckets:   prometheus.DefBuckets,
			},
		),
		Elements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "elements_built_total",
				Help:      "Graph elements emitted by kind",
			},
			[]string{"kind"},
		),
		RecordsIndexed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_indexed_total",
				Help:      "Records inserted into the development index",
			},
		),
		IndexQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "index_queries_total",
				Help:      "Queries served by the development index",
			},
			[]string{"kind"},
		),
		StoreOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Record store operations",
			},
			[]string{"operation", "status"},
		),
		ViewConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "view_connections",
				Help:      "Open interactive view connections",
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Fetches,
		c.FetchDuration,
		c.Elements,
		c.RecordsIndexed,
		c.IndexQueries,
		c.StoreOps,
		c.ViewConnections,
		collectors.NewGoCollector(),
	)

	return c
}

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveFetch records the outcome of one session request.
func (c *Collector) ObserveFetch(outcome string, elapsed time.Duration) {
	c.Fetches.WithLabelValues(outcome).Inc()
	c.FetchDuration.Observe(elapsed.Seconds())
}

// ObserveBuild records the elements emitted by one build.
func (c *Collector) ObserveBuild(stats graph.Stats) {
	c.Elements.WithLabelValues(string(graph.KindByteNode)).Add(float64(stats.ByteNodes))
	c.Elements.WithLabelValues(string(graph.KindRecordNode)).Add(float64(stats.RecordNodes))
	c.Elements.WithLabelValues(string(graph.KindEdge)).Add(float64(stats.Edges))
}

// ObserveIndexed counts records inserted into the index.
func (c *Collector) ObserveIndexed(n int) {
	c.RecordsIndexed.Add(float64(n))
}

// ObserveIndexQuery counts one index query.
func (c *Collector) ObserveIndexQuery(kind string) {
	c.IndexQueries.WithLabelValues(kind).Inc()
}

// ObserveStore records one record store operation.
func (c *Collector) ObserveStore(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.StoreOps.WithLabelValues(operation, status).Inc()
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
