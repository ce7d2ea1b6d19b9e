package metrics

import "time"

// RecordIngestFeedCrawl records the outcome of ingesting one source.
func RecordIngestFeedCrawl(source, status string, duration time.Duration) {
	IngestFeedCrawlTotal.WithLabelValues(source, status).Inc()
	IngestFeedCrawlDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordExtractorFetch records one article extraction attempt.
func RecordExtractorFetch(host, status string) {
	ExtractorFetchTotal.WithLabelValues(host, status).Inc()
}

// RecordExtractorWait records time spent waiting on the politeness delay.
func RecordExtractorWait(wait time.Duration) {
	ExtractorWaitSeconds.Observe(wait.Seconds())
}

// RecordLLMPoolRequest records one model endpoint call.
func RecordLLMPoolRequest(pool, endpoint, status string) {
	LLMPoolRequestsTotal.WithLabelValues(pool, endpoint, status).Inc()
}

// SetLLMPoolCircuitState updates an endpoint's circuit gauge; open should
// be true while the circuit is tripped.
func SetLLMPoolCircuitState(pool, endpoint string, open bool) {
	value := 0.0
	if open {
		value = 1.0
	}
	LLMPoolCircuitState.WithLabelValues(pool, endpoint).Set(value)
}

// RecordReasoningNode records one reasoning graph node's outcome.
func RecordReasoningNode(node, outcome string) {
	ReasoningNodeTotal.WithLabelValues(node, outcome).Inc()
}

// RecordOperationDuration records the duration of a named database operation.
func RecordOperationDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetDBConnectionStats updates the active/idle connection gauges, meant to
// be sampled periodically from sql.DB.Stats().
func SetDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
