package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Hits tracks page cache hits
	Hits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagestack_cache_hits_total",
			Help: "Total number of page cache hits",
		},
	)

	// Misses tracks page cache misses
	Misses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagestack_cache_misses_total",
			Help: "Total number of page cache misses",
		},
	)

	// Errors tracks cache backend errors by operation
	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagestack_cache_errors_total",
			Help: "Total number of cache backend errors",
		},
		[]string{"operation"}, // "connect", "get", "put"
	)
)
