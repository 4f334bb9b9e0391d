package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for cache operations.
var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billing_cache_hits_total",
		Help: "Total number of billing response cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billing_cache_misses_total",
		Help: "Total number of billing response cache misses",
	})

	cacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_cache_errors_total",
		Help: "Total number of cache errors by operation",
	}, []string{"operation"})
)
