package orchestrator_test

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
	"feedmind/internal/llmpool"
	"feedmind/internal/orchestrator"
	"feedmind/internal/reasoning"
)

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
<description>A feed for orchestrator tests</description>
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

type scriptedCaller struct {
	reply string
}

func (s *scriptedCaller) caller(ctx context.Context, messages []llmpool.Message) (string, error) {
	return s.reply, nil
}

func buildManager(t *testing.T, nodeReplies map[string]string) *llmpool.Manager {
	t.Helper()
	manager := llmpool.NewManager()
	for node, reply := range nodeReplies {
		script := &scriptedCaller{reply: reply}
		pool, err := llmpool.NewPool(node, "test pool for "+node, llmpool.StrategyRoundRobin,
			llmpool.DefaultPoolRuntimeConfig(),
			[]llmpool.EndpointConfig{{Provider: "openai", Model: "test-model", Weight: 1}},
			[]llmpool.Caller{script.caller},
			discardLogger())
		if err != nil {
			t.Fatalf("build pool %s: %v", node, err)
		}
		manager.AddPool(pool)
		if err := manager.BindNode(node, node); err != nil {
			t.Fatalf("bind node %s: %v", node, err)
		}
	}
	return manager
}

func TestOrchestrator_IngestAllCollectsFreshEntriesAndReattachesRecent(t *testing.T) {
	server, feedURL := newFeedAndArticleServer(t)
	defer server.Close()

	db := openTestDB(t)
	ig := ingest.New(db, newTestExtractor(), nil, discardLogger())
	entries := catalog.NewEntryRepository(db)
	reasonRepo := catalog.NewReasoningRepository(db)

	manager := buildManager(t, map[string]string{})
	graph := reasoning.New(manager, reasonRepo, discardLogger())
	orch := orchestrator.New(ig, graph, entries, discardLogger())

	sources := []entity.Source{{Name: "test-source", URL: feedURL(), Description: "test"}}

	ctx := context.Background()
	toClassify, stats, err := orch.IngestAll(ctx, sources)
	if err != nil {
		t.Fatalf("ingest all: %v", err)
	}
	if stats.Sources != 1 {
		t.Errorf("stats.Sources = %d, want 1", stats.Sources)
	}
	if stats.NewEntries != 1 {
		t.Errorf("stats.NewEntries = %d, want 1", stats.NewEntries)
	}
	if len(toClassify) != 1 {
		t.Fatalf("expected 1 entry to classify, got %d", len(toClassify))
	}

	// Second run: feed is unchanged, so no fresh entries, but the freshly
	// written entry has no category yet, so it's not reattached either.
	toClassify2, stats2, err := orch.IngestAll(ctx, sources)
	if err != nil {
		t.Fatalf("second ingest all: %v", err)
	}
	if stats2.NewEntries != 0 {
		t.Errorf("stats2.NewEntries = %d, want 0", stats2.NewEntries)
	}
	if len(toClassify2) != 0 {
		t.Errorf("expected no entries to reattach before categorization, got %d", len(toClassify2))
	}
}

func TestOrchestrator_ClassifyProcessesPendingEntriesOnce(t *testing.T) {
	server, feedURL := newFeedAndArticleServer(t)
	defer server.Close()

	db := openTestDB(t)
	ig := ingest.New(db, newTestExtractor(), nil, discardLogger())
	entries := catalog.NewEntryRepository(db)
	reasonRepo := catalog.NewReasoningRepository(db)

	manager := buildManager(t, map[string]string{
		"tagger":        `{"name": "golang", "classification_rationale": "about go"}`,
		"tagger_review": `{"approved": true, "reason": "looks right"}`,
		"score":         `{"tag": "actionable", "summary": "do the thing"}`,
	})
	graph := reasoning.New(manager, reasonRepo, discardLogger())
	orch := orchestrator.New(ig, graph, entries, discardLogger())

	ctx := context.Background()
	source := entity.Source{Name: "test-source", URL: feedURL(), Description: "test"}
	if _, _, err := orch.IngestAll(ctx, []entity.Source{source}); err != nil {
		t.Fatalf("ingest all: %v", err)
	}

	stats, err := orch.Classify(ctx, 10, false, 2)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if stats.Processed != 1 {
		t.Errorf("stats.Processed = %d, want 1", stats.Processed)
	}
	if stats.Errors != 0 {
		t.Errorf("stats.Errors = %d, want 0", stats.Errors)
	}

	// Already fully processed, so a second pass finds nothing pending.
	stats2, err := orch.Classify(ctx, 10, false, 2)
	if err != nil {
		t.Fatalf("second classify: %v", err)
	}
	if stats2.Processed != 0 {
		t.Errorf("stats2.Processed = %d, want 0", stats2.Processed)
	}
}
