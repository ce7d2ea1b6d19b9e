// Package logging provides structured logging utilities with context propagation.
//
// This package wraps the standard library's log/slog package with helper functions
// for common logging patterns used throughout the application.
//
// Key features:
//   - JSON and text output formats
//   - Run id propagation (one id per ingestAll/classify invocation)
//   - Context-aware logging
//   - Configurable log levels
//
// Example usage:
//
//	import "feedmind/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("application started", slog.String("version", "1.0"))
//	}
//
//	func ingestAll(ctx context.Context) {
//	    logger := logging.WithRunID(ctx, slog.Default())
//	    logger.Info("ingest run starting")
//	}
package logging
