package metrics

import "github.com/prometheus/client_golang/prometheus"

// Catalog and query metrics.
var (
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgsearch",
			Name:      "searches_total",
			Help:      "Total number of catalog searches",
		},
		[]string{"status"},
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "imgsearch",
			Name:      "search_duration_seconds",
			Help:      "Catalog search duration in seconds, extraction excluded",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	BuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imgsearch",
			Name:      "build_duration_seconds",
			Help:      "Vocabulary tree and hash table build duration in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		},
		[]string{"stage"}, // "vocabulary" / "hash"
	)

	CatalogImages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "imgsearch",
			Name:      "catalog_images",
			Help:      "Number of image records in the catalog",
		},
	)

	VocabularyLeaves = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "imgsearch",
			Name:      "vocabulary_leaves",
			Help:      "Number of visual words in the vocabulary tree",
		},
	)

	QueryCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgsearch",
			Name:      "query_cache_total",
			Help:      "Query cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	SocketRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgsearch",
			Name:      "socket_requests_total",
			Help:      "Total number of socket protocol requests",
		},
		[]string{"command", "status"},
	)
)

func init() {
	prometheus.MustRegister(SearchesTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(BuildDuration)
	prometheus.MustRegister(CatalogImages)
	prometheus.MustRegister(VocabularyLeaves)
	prometheus.MustRegister(QueryCacheTotal)
	prometheus.MustRegister(SocketRequestsTotal)
}

// Status maps an error to a metric label.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
