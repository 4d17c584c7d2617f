// Package metrics exposes Prometheus instrumentation for the ingest
// pipelines and the tile encoder.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// IngestRuns counts ingest iterations by pipeline and outcome.
	IngestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "openaedmap",
		Name:      "ingest_runs_total",
		Help:      "Ingest iterations by pipeline and outcome.",
	}, []string{"pipeline", "outcome"})

	// IngestDuration observes how long one ingest iteration takes.
	IngestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "openaedmap",
		Name:      "ingest_duration_seconds",
		Help:      "Duration of one ingest iteration.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 1800, 3600},
	}, []string{"pipeline"})

	// UpstreamRequests counts upstream fetches by endpoint and outcome.
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "openaedmap",
		Name:      "upstream_requests_total",
		Help:      "Upstream HTTP fetches by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	// TileEncodes observes tile encoding time by tile class.
	TileEncodes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "openaedmap",
		Name:      "tile_encode_duration_seconds",
		Help:      "Duration of vector tile encoding by tile class.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"class"})

	// ResponseCache counts shared response cache lookups by result.
	ResponseCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "openaedmap",
		Name:      "response_cache_total",
		Help:      "Shared response cache lookups by result.",
	}, []string{"result"})
)

// Outcome labels for counters.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Handler serves the Prometheus exposition endpoint.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
