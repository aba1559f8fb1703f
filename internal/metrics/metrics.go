package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aggregator",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aggregator",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	}, []string{"method", "path"})

	ProviderRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aggregator",
		Name:      "provider_requests_total",
		Help:      "Total requests to data providers by provider name and result status.",
	}, []string{"provider", "status"})

	ProviderRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aggregator",
		Name:      "provider_request_duration_seconds",
		Help:      "Data provider request duration in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"provider"})

	ProviderAvailable = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "aggregator",
		Name:      "provider_available",
		Help:      "Whether a provider is available (1) or blocked by circuit breaker (0).",
	}, []string{"provider"})

	SearchCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aggregator",
		Name:      "search_cache_hits_total",
		Help:      "Total number of per-provider search cache hits.",
	})

	SearchCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aggregator",
		Name:      "search_cache_misses_total",
		Help:      "Total number of per-provider search cache misses.",
	})

	ShortVideoCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aggregator",
		Name:      "shortvideo_cache_hits_total",
		Help:      "Total number of short-video cache hits.",
	})

	ShortVideoCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aggregator",
		Name:      "shortvideo_cache_misses_total",
		Help:      "Total number of short-video cache misses.",
	})

	StoreWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aggregator",
		Name:      "store_writes_total",
		Help:      "Total store upserts by entity kind and outcome.",
	}, []string{"kind", "status"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ProviderRequestsTotal,
		ProviderRequestDuration,
		ProviderAvailable,
		SearchCacheHitsTotal,
		SearchCacheMissesTotal,
		ShortVideoCacheHitsTotal,
		ShortVideoCacheMissesTotal,
		StoreWritesTotal,
	)
}
