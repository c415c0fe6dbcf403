package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solarboard_uploads_total",
			Help: "Total country CSV uploads",
		},
		[]string{"country", "status"},
	)

	ParseCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "solarboard_parse_cache_hits_total",
			Help: "Parse cache hits (content + country key)",
		},
	)

	ParseCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "solarboard_parse_cache_misses_total",
			Help: "Parse cache misses",
		},
	)

	RowsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solarboard_rows_dropped_total",
			Help: "Rows dropped by the missing-value threshold",
		},
		[]string{"country"},
	)

	CleanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "solarboard_clean_duration_seconds",
			Help:    "End-to-end cleaning pipeline duration",
			Buckets: prometheus.DefBuckets,
		},
	)
)
