// Package observability provides production-grade observability infrastructure
// including structured logging and Prometheus metrics. It has no tracing.
//
// This package centralizes observability concerns to enable:
//   - Structured logging with context propagation
//   - Prometheus metrics for monitoring
//   - Performance profiling and debugging
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics registry and recorders
//
// Example usage:
//
//	import (
//	    "feedmind/internal/observability/logging"
//	    "feedmind/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("application started")
//
//	    metrics.RecordReasoningNode("tagger", "approved")
//	}
package observability
