// Package orchestrator is C12: the two top-level workflows the scheduler
// and CLI entrypoints drive — ingesting every known source and running the
// reasoning graph over a bounded batch of entries. Adapted from
// internal/usecase/fetch/service.go's CrawlAllSources/processFeedItems
// shape: sequential per-source work outside, a bounded errgroup fan-out
// inside, with individual failures counted rather than aborting the batch.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"feedmind/internal/catalog"
	"feedmind/internal/domain/entity"
	"feedmind/internal/ingest"
	"feedmind/internal/observability/logging"
	"feedmind/internal/observability/runid"
	"feedmind/internal/reasoning"
)

// RecentReclassifyWindow is how far back ingestAll looks for
// already-categorized entries to attach for re-scoring, per spec §4.12.
const RecentReclassifyWindow = 7 * 24 * time.Hour

// DefaultClassifyConcurrency bounds classify's reasoning-graph fan-out,
// per spec §4.12's classify(limit, ignoreLimit, maxConcurrent=3).
const DefaultClassifyConcurrency = 3

// Orchestrator wires C7 (ingest) and C11 (reasoning) into the two
// entrypoints the scheduler and CLI drive.
type Orchestrator struct {
	ingester *ingest.Ingester
	graph    *reasoning.Graph
	entries  *catalog.EntryRepository
	logger   *slog.Logger
}

func New(ingester *ingest.Ingester, graph *reasoning.Graph, entries *catalog.EntryRepository, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{ingester: ingester, graph: graph, entries: entries, logger: logger}
}

// IngestStats summarizes one ingestAll run.
type IngestStats struct {
	Sources     int
	Skipped     int
	NewEntries  int
	Reattached  int
	SourceError int
}

// IngestAll invokes C7 for every source in sequence and attaches entries
// from the last RecentReclassifyWindow that already carry a category, so a
// subsequent classify() pass re-scores anything interrupted mid-pipeline.
// Returns every entry that should be offered to classify next.
func (o *Orchestrator) IngestAll(ctx context.Context, sources []entity.Source) ([]entity.Entry, IngestStats, error) {
	ctx = runid.WithRunID(ctx, runid.New())
	log := logging.WithRunID(ctx, o.logger)

	stats := IngestStats{Sources: len(sources)}
	start := time.Now()

	var fresh []entity.Entry
	for _, source := range sources {
		result, err := o.ingester.IngestSource(ctx, source)
		if err != nil {
			stats.SourceError++
			log.Warn("orchestrator: source ingest failed",
				slog.String("source", source.Name), slog.Any("error", err))
			continue
		}
		if result.Skipped {
			stats.Skipped++
			continue
		}
		fresh = append(fresh, result.Entries...)
	}
	stats.NewEntries = len(fresh)

	recent, err := o.entries.RecentlyCategorized(ctx, int(RecentReclassifyWindow/(24*time.Hour)))
	if err != nil {
		return nil, stats, fmt.Errorf("orchestrator: load recently categorized entries: %w", err)
	}
	stats.Reattached = len(recent)

	log.Info("orchestrator: ingestAll complete",
		slog.Int("sources", stats.Sources),
		slog.Int("skipped", stats.Skipped),
		slog.Int("new_entries", stats.NewEntries),
		slog.Int("reattached", stats.Reattached),
		slog.Int("source_errors", stats.SourceError),
		slog.Duration("duration", time.Since(start)))

	return append(fresh, recent...), stats, nil
}

// ClassifyStats aggregates {processed, errors} per spec §4.12.
type ClassifyStats struct {
	Processed int
	Errors    int
}

// Classify selects up to limit pending entries (or every pending entry
// when ignoreLimit is true) and runs the reasoning graph on each, bounded
// by maxConcurrent. A single entry's failure is logged and counted, never
// aborting its siblings.
func (o *Orchestrator) Classify(ctx context.Context, limit int, ignoreLimit bool, maxConcurrent int) (ClassifyStats, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultClassifyConcurrency
	}
	ctx = runid.WithRunID(ctx, runid.New())

	pending, err := o.entries.PendingClassification(ctx, limit, ignoreLimit)
	if err != nil {
		return ClassifyStats{}, fmt.Errorf("orchestrator: load pending entries: %w", err)
	}

	return o.classifyEntries(ctx, pending, maxConcurrent)
}

// ClassifyEntries runs the reasoning graph over an explicit entry list
// (the ingestAll re-attachment path feeds this directly rather than
// re-querying the catalog).
func (o *Orchestrator) ClassifyEntries(ctx context.Context, entries []entity.Entry, maxConcurrent int) (ClassifyStats, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultClassifyConcurrency
	}
	if runid.FromContext(ctx) == "" {
		ctx = runid.WithRunID(ctx, runid.New())
	}
	return o.classifyEntries(ctx, entries, maxConcurrent)
}

func (o *Orchestrator) classifyEntries(ctx context.Context, entries []entity.Entry, maxConcurrent int) (ClassifyStats, error) {
	log := logging.WithRunID(ctx, o.logger)

	var stats ClassifyStats
	if len(entries) == 0 {
		return stats, nil
	}

	sem := make(chan struct{}, maxConcurrent)
	eg, egCtx := errgroup.WithContext(ctx)
	results := make(chan error, len(entries))

	for _, entry := range entries {
		e := entry
		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			err := o.graph.Run(egCtx, e)
			results <- err
			if err != nil {
				log.Warn("orchestrator: classify entry failed",
					slog.Int64("entry_id", e.ID), slog.String("link", e.Link), slog.Any("error", err))
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return stats, err
	}
	close(results)

	for err := range results {
		if err != nil {
			stats.Errors++
		} else {
			stats.Processed++
		}
	}

	log.Info("orchestrator: classify complete",
		slog.Int("processed", stats.Processed), slog.Int("errors", stats.Errors))

	return stats, nil
}
