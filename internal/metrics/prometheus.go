// Package metrics exposes the Prometheus collectors shared by ingestion and search.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	IngestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexsearch_ingest_total",
			Help: "Documents processed by the ingestion pipeline",
		},
		[]string{"status"},
	)

	IngestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lexsearch_ingest_duration_seconds",
			Help:    "Ingestion stage duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
		[]string{"stage"},
	)

	ExtractionMethod = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexsearch_extraction_method_total",
			Help: "Extraction strategy that produced the accepted text",
		},
		[]string{"file_type", "method"},
	)

	SearchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexsearch_search_total",
			Help: "Searches executed",
		},
		[]string{"mode", "status"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lexsearch_search_duration_seconds",
			Help:    "Search duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"mode"},
	)

	BranchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexsearch_branch_failures_total",
			Help: "Retrieval branches that failed or timed out",
		},
		[]string{"branch"},
	)

	EmbeddingFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lexsearch_embedding_failures_total",
			Help: "Chunks indexed with a zero vector after an embedding error",
		},
	)

	EmbeddingCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexsearch_embedding_cache_total",
			Help: "Embedding cache lookups by tier and result",
		},
		[]string{"tier", "result"},
	)
)

var initOnce sync.Once

// Init registers every collector with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(IngestTotal)
		prometheus.MustRegister(IngestDuration)
		prometheus.MustRegister(ExtractionMethod)
		prometheus.MustRegister(SearchTotal)
		prometheus.MustRegister(SearchDuration)
		prometheus.MustRegister(BranchFailures)
		prometheus.MustRegister(EmbeddingFailures)
		prometheus.MustRegister(EmbeddingCache)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
