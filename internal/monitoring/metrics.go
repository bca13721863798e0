package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the ingestion pipeline.
type Metrics struct {
	PagesFetched   prometheus.Counter
	FetchRetries   prometheus.Counter
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	Invalidations  *prometheus.CounterVec
	EnrichFailures *prometheus.CounterVec
}

// NewMetrics registers the pipeline metrics against reg. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "catalog_pages_fetched_total",
			Help: "The total number of listing pages fetched",
		}),
		FetchRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "catalog_fetch_retries_total",
			Help: "The total number of whole-page-set retries",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "catalog_cache_hits_total",
			Help: "The total number of calls served from the on-disk cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "catalog_cache_misses_total",
			Help: "The total number of calls that required a fresh fetch",
		}),
		Invalidations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_cache_invalidations_total",
			Help: "The total number of cache invalidations by trigger",
		}, []string{"trigger"}), // 'cookie', 'filters', 'settings'
		EnrichFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_enrich_failures_total",
			Help: "The total number of enrichment degradations by kind",
		}, []string{"kind"}), // 'detail_fetch', 'download_link'
	}
}
