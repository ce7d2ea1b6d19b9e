// Package metrics provides Prometheus metrics registry and recording utilities.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion metrics track C7/C12's per-source feed crawl outcomes.
var (
	// IngestFeedCrawlTotal counts feed crawl outcomes per source.
	IngestFeedCrawlTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_feed_crawl_total",
			Help: "Total number of feed crawl attempts by source and status",
		},
		[]string{"source", "status"}, // status: inserted, skipped, error
	)

	// IngestFeedCrawlDuration measures time to ingest one source.
	IngestFeedCrawlDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_feed_crawl_duration_seconds",
			Help:    "Time taken to ingest a single feed source",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"source"},
	)
)

// Extractor metrics track C5's per-host article fetch outcomes.
var (
	// ExtractorFetchTotal counts article extraction attempts per host.
	ExtractorFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractor_fetch_total",
			Help: "Total number of article extraction attempts by host and status",
		},
		[]string{"host", "status"}, // status: ok, blocked, error
	)

	// ExtractorWaitSeconds measures time spent waiting on C3's politeness
	// delay before a fetch.
	ExtractorWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "extractor_wait_seconds",
			Help:    "Time spent waiting on the crawl politeness delay before a fetch",
			Buckets: []float64{0.1, 0.5, 1, 2, 3, 5, 8, 13, 21},
		},
	)
)

// Model-pool metrics track C9's endpoint selection and circuit state.
var (
	// LLMPoolRequestsTotal counts calls made through a pool's endpoints.
	LLMPoolRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmpool_requests_total",
			Help: "Total number of model endpoint calls by pool, endpoint, and status",
		},
		[]string{"pool", "endpoint", "status"}, // status: ok, error
	)

	// LLMPoolCircuitState reports each endpoint's circuit state (0=closed,
	// 1=open) as a gauge so it can be graphed alongside request volume.
	LLMPoolCircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "llmpool_circuit_state",
			Help: "Circuit breaker state per pool endpoint (0=closed, 1=open)",
		},
		[]string{"pool", "endpoint"},
	)
)

// Reasoning metrics track C11's per-node outcomes.
var (
	// ReasoningNodeTotal counts each node's runs by outcome.
	ReasoningNodeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reasoning_node_total",
			Help: "Total number of reasoning graph node runs by node and outcome",
		},
		[]string{"node", "outcome"}, // node: tagger, tagger_review, score; outcome varies per node
	)
)

// Database metrics track catalog performance.
var (
	// DBQueryDuration measures database query duration.
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections.
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections.
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)
