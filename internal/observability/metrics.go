// Package observability holds the Prometheus metrics for the gateway.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the gateway. Each Collector
// owns a private registry so tests can create them freely without
// duplicate-registration panics.
type Collector struct {
	registry *prometheus.Registry

	// Interception metrics
	InterceptTotal *prometheus.CounterVec

	// Cache metrics
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	EvictionsTotal *prometheus.CounterVec

	// Store metrics
	StoreWriteFailures prometheus.Counter

	// Origin fetch metrics
	FetchTotal    *prometheus.CounterVec
	FetchDuration prometheus.Histogram

	// Background refresh metrics
	RefreshTotal *prometheus.CounterVec
}

// NewCollector creates a metrics collector with the given namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		InterceptTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "intercept_total",
				Help:      "Total number of intercepted requests by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits by logical container",
			},
			[]string{"container"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses by logical container",
			},
			[]string{"container"},
		),
		EvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evictions_total",
				Help:      "Total number of FIFO evictions by logical container",
			},
			[]string{"container"},
		),
		StoreWriteFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_write_failures_total",
				Help:      "Total number of swallowed store write failures",
			},
		),
		FetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_total",
				Help:      "Total number of origin fetches by status class",
			},
			[]string{"status_class"},
		),
		FetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Origin fetch duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_total",
				Help:      "Total number of background refresh attempts by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		c.InterceptTotal,
		c.CacheHits,
		c.CacheMisses,
		c.EvictionsTotal,
		c.StoreWriteFailures,
		c.FetchTotal,
		c.FetchDuration,
		c.RefreshTotal,
	)

	return c
}

// Handler exposes the collector's registry for the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
