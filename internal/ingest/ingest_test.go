package ingest_test

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"feedmind/internal/catalog"
	"feedmind/internal/crawlpolicy"
	"feedmind/internal/domain/entity"
	"feedmind/internal/extractor"
	"feedmind/internal/ingest"
)

func entitySource(t *testing.T, name, url string) entity.Source {
	t.Helper()
	return entity.Source{Name: name, URL: url, Description: "test source"}
}

func feedArticleLink(feedURL string) string {
	base := feedURL[:len(feedURL)-len("/feed.xml")]
	return base + "/article"
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	db, err := catalog.Open(path, catalog.DefaultConnectionConfig())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := catalog.MigrateUp(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestExtractor() *extractor.Extractor {
	cfg := extractor.DefaultConfig()
	cfg.AntiDetection = false
	cfg.DenyPrivateIPs = false
	policy := crawlpolicy.NewPolicy(crawlpolicy.DelayConfig{}, nil, crawlpolicy.NewDomainTracker(), discardLogger())
	return extractor.New(cfg, policy, discardLogger())
}

const articleHTML = `<!DOCTYPE html>
<html><head><title>Crawled Title</title></head>
<body><article>
<h1>Crawled Title</h1>
<p>This is the crawled article body, long enough to pass the readability threshold comfortably.</p>
<p>A second paragraph adds more substance so the extractor's word count check is satisfied.</p>
</article></body></html>`

func newFeedAndArticleServer(t *testing.T) (*httptest.Server, func() string) {
	t.Helper()
	now := time.Now().UTC()
	mux := http.NewServeMux()
	var articleURL string

	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		rss := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Test Feed</title>
<description>A feed for ingest tests</description>
<link>%[1]s/feed.xml</link>
<language>en-us</language>
<lastBuildDate>%[2]s</lastBuildDate>
<item>
<title>An Article</title>
<link>%[1]s/article</link>
<pubDate>%[3]s</pubDate>
<description>Short summary</description>
</item>
</channel>
</rss>`, articleURL, now.Format(time.RFC1123Z), now.Add(-time.Hour).Format(time.RFC1123Z))
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rss))
	})
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articleHTML))
	})

	server := httptest.NewServer(mux)
	articleURL = server.URL
	return server, func() string { return server.URL + "/feed.xml" }
}

func TestIngestSource_FullSyncInsertsCrawledEntries(t *testing.T) {
	server, feedURL := newFeedAndArticleServer(t)
	defer server.Close()

	db := openTestDB(t)
	ig := ingest.New(db, newTestExtractor(), nil, discardLogger())

	source := entitySource(t, "test-source", feedURL())
	result, err := ig.IngestSource(context.Background(), source)
	if err != nil {
		t.Fatalf("ingest source: %v", err)
	}
	if result.Skipped {
		t.Fatal("expected a fresh feed to produce a non-skipped result")
	}
	if len(result.Entries) != 1 {
		t.Fatalf("expected 1 entry written, got %d", len(result.Entries))
	}
	if result.Entries[0].Content == "" {
		t.Error("expected crawled content to be filled in")
	}

	entries := catalog.NewEntryRepository(db)
	stored, err := entries.FindByLink(context.Background(), feedArticleLink(feedURL()))
	if err != nil {
		t.Fatalf("find by link: %v", err)
	}
	if stored.Content == "" {
		t.Error("expected stored entry to carry crawled content")
	}
}

func TestIngestSource_SecondRunIsUpToDate(t *testing.T) {
	server, feedURL := newFeedAndArticleServer(t)
	defer server.Close()

	db := openTestDB(t)
	ig := ingest.New(db, newTestExtractor(), nil, discardLogger())
	ctx := context.Background()
	source := entitySource(t, "test-source", feedURL())

	if _, err := ig.IngestSource(ctx, source); err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	result, err := ig.IngestSource(ctx, source)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if !result.Skipped {
		t.Error("expected second run against an unchanged feed to be skipped as up to date")
	}
}

func TestIngestSource_GivesUpOnUnparseableFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not a feed"))
	}))
	defer server.Close()

	db := openTestDB(t)
	ig := ingest.New(db, newTestExtractor(), nil, discardLogger())

	source := entitySource(t, "broken-source", server.URL)
	result, err := ig.IngestSource(context.Background(), source)
	if err != nil {
		t.Fatalf("expected no hard error, got: %v", err)
	}
	if !result.Skipped {
		t.Error("expected an unparseable feed to be skipped, not fail the whole source list")
	}
}
