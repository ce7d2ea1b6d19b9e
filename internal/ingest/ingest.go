package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"feedmind/internal/catalog"
	"feedmind/internal/domain/entity"
	"feedmind/internal/extractor"
	"feedmind/internal/feedreader"
	"feedmind/internal/observability/metrics"
	"feedmind/internal/resilience/retry"
	"feedmind/internal/timeutil"
)

// DefaultFetchWeeks is how far back a newly-discovered feed's first sync
// reaches, per spec §4.7 step 3.
const DefaultFetchWeeks = 1

// Ingester runs spec §4.7's per-source algorithm: parse, diff against the
// catalog, crawl new links, commit transactionally.
type Ingester struct {
	db         *sql.DB
	feeds      *catalog.FeedRepository
	extractor  *extractor.Extractor
	feedClient *http.Client
	logger     *slog.Logger
}

// New builds an Ingester. db must be the same handle the extractor's
// companion repositories were built from. ex should already be constructed
// with the known-strict-host override policy (crawlpolicy.StrictHostOverride)
// wired in, per spec §4.7 step 4. feedClient is the HTTP client feed
// parsing uses (carries the optional NETWORK_PROXY transport); nil falls
// back to http.DefaultClient.
func New(db *sql.DB, ex *extractor.Extractor, feedClient *http.Client, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{
		db:         db,
		feeds:      catalog.NewFeedRepository(db),
		extractor:  ex,
		feedClient: feedClient,
		logger:     logger,
	}
}

// Result is what an IngestSource run produced, for the orchestrator's
// logging and metrics.
type Result struct {
	Source  entity.Source
	Entries []entity.Entry
	Skipped bool
}

// IngestSource runs spec §4.7's algorithm for a single source. A transport
// error after C4's retry budget is exhausted aborts just this source; the
// caller is expected to continue with the next one.
func (ig *Ingester) IngestSource(ctx context.Context, source entity.Source) (result Result, err error) {
	start := timeutil.Now()
	defer func() {
		status := "inserted"
		switch {
		case err != nil:
			status = "error"
		case result.Skipped:
			status = "skipped"
		}
		metrics.RecordIngestFeedCrawl(source.Name, status, timeutil.Now().Sub(start))
	}()

	reader := feedreader.New(ig.feedClient, ig.logger)

	var ok bool
	retryErr := retry.WithBackoff(ctx, retry.ExtractorConfig(), func() error {
		ok = reader.Parse(ctx, source.URL)
		if !ok {
			return fmt.Errorf("ingest: parse feed %s failed", source.URL)
		}
		return nil
	})
	if retryErr != nil || !ok {
		ig.logger.Warn("ingest: giving up on source", slog.String("source", source.Name), slog.Any("error", retryErr))
		return Result{Source: source, Skipped: true}, nil
	}

	info := reader.FeedInfo()
	if err := (&entity.Feed{Link: info.Link}).Validate(); err != nil {
		ig.logger.Warn("ingest: feed link failed validation", slog.String("source", source.Name), slog.Any("error", err))
		return Result{Source: source, Skipped: true}, nil
	}

	feedID, needFullSync, err := ig.feeds.UpsertFeed(ctx, info.Link, info.Title, info.Description, info.Language)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: upsert feed for source %s: %w", source.Name, err)
	}

	var stored entity.Feed
	if !needFullSync {
		stored, err = ig.feeds.GetFeed(ctx, feedID)
		if err != nil {
			return Result{}, fmt.Errorf("ingest: load stored feed %d: %w", feedID, err)
		}
		if !stored.Updated.Before(info.Updated) {
			ig.logger.Info("ingest: feed up to date", slog.String("source", source.Name))
			return Result{Source: source, Skipped: true}, nil
		}
	}

	var windowStart time.Time
	if needFullSync {
		windowStart = timeutil.Now().AddDate(0, 0, -7*DefaultFetchWeeks)
	} else {
		windowStart = stored.Updated
	}

	entries := reader.EntriesBetween(windowStart, info.Updated)

	valid := make([]feedreader.ParsedEntry, 0, len(entries))
	for _, e := range entries {
		if err := (&entity.Entry{Link: e.Link}).Validate(); err != nil {
			ig.logger.Warn("ingest: skipping entry with invalid link",
				slog.String("source", source.Name), slog.String("link", e.Link), slog.Any("error", err))
			continue
		}
		valid = append(valid, e)
	}
	entries = valid

	if len(entries) == 0 {
		ig.logger.Info("ingest: no new entries in window", slog.String("source", source.Name))
		return Result{Source: source, Skipped: true}, nil
	}

	urls := make([]string, 0, len(entries))
	for _, e := range entries {
		urls = append(urls, e.Link)
	}
	extracted := ig.extractor.ExtractMany(ctx, urls)

	toCommit := make([]entity.Entry, 0, len(entries))
	for _, e := range entries {
		// Content starts blank; a failed crawl leaves it blank so a later
		// run's "blank content" check (spec's never-duplicate invariant)
		// retries the fill instead of getting stuck on a degraded value.
		var content string
		if r, ok := extracted[e.Link]; ok && r.Ok {
			content = r.Content
		}
		toCommit = append(toCommit, entity.Entry{
			FeedID:      feedID,
			Link:        e.Link,
			Title:       e.Title,
			Author:      e.Author,
			Summary:     e.Summary,
			Content:     content,
			PublishedAt: e.PublishedAt,
		})
	}

	written, err := catalog.CommitFeedBatch(ctx, ig.db, feedID, info.Updated, toCommit)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: commit batch for source %s: %w", source.Name, err)
	}

	return Result{Source: source, Entries: written}, nil
}
