package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "statshare_importer_build_info",
			Help: "Build information of the Statshare Importer",
		},
		[]string{"version", "commit", "date"},
	)

	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statshare_importer_imports_total",
			Help: "Total number of imports by terminal status",
		},
		[]string{"status"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "statshare_importer_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 0.1s to ~27 minutes
		},
		[]string{"stage"},
	)

	FactRowsImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "statshare_importer_fact_rows_imported_total",
			Help: "Total number of fact rows written to columnar tables",
		},
	)

	MetaOptionsLinked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statshare_importer_meta_options_linked_total",
			Help: "Total number of location and filter option links written",
		},
		[]string{"dimension"},
	)

	DatabaseQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statshare_importer_database_queries_total",
			Help: "Total number of metadata database queries",
		},
		[]string{"status"},
	)
)
