// Package feedreader implements C6: fetching and parsing RSS/Atom feeds,
// with circuit-breaker and retry protection reused from the same
// reliability stack the extractor composes.
package feedreader

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"feedmind/internal/resilience/circuitbreaker"
	"feedmind/internal/resilience/retry"
	"feedmind/internal/timeutil"

	"github.com/mmcdole/gofeed"
	"github.com/sony/gobreaker"
)

// ParsedEntry is a single feed item normalized to naive-UTC publication time.
// Content is a best-effort markdown conversion of the feed's embedded HTML
// body (links kept, images stripped); it is not a substitute for C5's crawl.
type ParsedEntry struct {
	Title       string
	Link        string
	Published   string
	PublishedAt time.Time
	Summary     string
	Author      string
	Content     string
}

// Info is the feed-level metadata C7 needs to decide full-sync vs
// incremental behavior.
type Info struct {
	Title       string
	Description string
	Link        string
	Language    string
	Updated     time.Time
}

// Reader parses one feed at a time; Parse must be called before FeedInfo or
// EntriesBetween return anything meaningful.
type Reader struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	logger         *slog.Logger

	mu      sync.Mutex
	feed    *gofeed.Feed
	entries []ParsedEntry
}

// New builds a Reader. client may be nil to use gofeed's default transport;
// pass a client with a proxy configured via http.Transport.Proxy when needed.
func New(client *http.Client, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		retryConfig:    retry.FeedFetchConfig(),
		logger:         logger,
	}
}

// Parse fetches and parses feedURL, populating the reader's internal state.
// It logs and returns false on a malformed or unreachable feed rather than
// raising, matching spec's "parse never panics the ingester" contract.
func (r *Reader) Parse(ctx context.Context, feedURL string) bool {
	var parsed *gofeed.Feed

	retryErr := retry.WithBackoff(ctx, r.retryConfig, func() error {
		cbResult, err := r.circuitBreaker.Execute(func() (interface{}, error) {
			return r.doFetch(ctx, feedURL)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				r.logger.Warn("feed fetch circuit breaker open",
					slog.String("url", feedURL),
					slog.String("state", r.circuitBreaker.State().String()))
			}
			return err
		}
		parsed = cbResult.(*gofeed.Feed)
		return nil
	})
	if retryErr != nil {
		r.logger.Warn("feed parse failed", slog.String("url", feedURL), slog.Any("error", retryErr))
		return false
	}

	entries := make([]ParsedEntry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		entries = append(entries, r.toParsedEntry(item))
	}

	r.mu.Lock()
	r.feed = parsed
	r.entries = entries
	r.mu.Unlock()
	return true
}

func (r *Reader) doFetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = "feedmindbot/1.0"
	if r.client != nil {
		fp.Client = r.client
	}
	return fp.ParseURLWithContext(feedURL, ctx)
}

func (r *Reader) toParsedEntry(item *gofeed.Item) ParsedEntry {
	published := ""
	if item.Published != "" {
		published = item.Published
	} else if item.Updated != "" {
		published = item.Updated
	}

	publishedAt, err := timeutil.Parse(published)
	if err != nil {
		publishedAt = timeutil.Now()
	}

	content := item.Content
	if content == "" {
		content = item.Description
	}
	markdown, err := htmlToMarkdownStripImages(content)
	if err != nil {
		markdown = content
	}

	return ParsedEntry{
		Title:       item.Title,
		Link:        item.Link,
		Published:   published,
		PublishedAt: publishedAt,
		Summary:     item.Description,
		Author:      authorOf(item),
		Content:     markdown,
	}
}

func authorOf(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	if len(item.Authors) > 0 {
		return item.Authors[0].Name
	}
	return ""
}

// FeedInfo returns the last-parsed feed's metadata. If the feed declares no
// Updated, it falls back to the first entry's published time per spec §4.6.
func (r *Reader) FeedInfo() Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.feed == nil {
		return Info{}
	}

	updated := time.Time{}
	if r.feed.UpdatedParsed != nil {
		updated = timeutil.ToNaiveUTC(*r.feed.UpdatedParsed)
	} else if len(r.entries) > 0 {
		updated = r.entries[0].PublishedAt
	} else {
		updated = timeutil.Now()
	}

	lang := r.feed.Language

	return Info{
		Title:       r.feed.Title,
		Description: r.feed.Description,
		Link:        r.feed.Link,
		Language:    lang,
		Updated:     updated,
	}
}

// EntriesBetween filters the last-parsed entries to those published in
// (start, end], inclusive of end to match C7's incremental-window contract.
func (r *Reader) EntriesBetween(start, end time.Time) []ParsedEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ParsedEntry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.PublishedAt.After(start) && !e.PublishedAt.After(end) {
			out = append(out, e)
		}
	}
	return out
}
