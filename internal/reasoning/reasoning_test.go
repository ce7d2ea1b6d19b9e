package reasoning_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"feedmind/internal/catalog"
	"feedmind/internal/domain/entity"
	"feedmind/internal/llmpool"
	"feedmind/internal/reasoning"
	"feedmind/internal/timeutil"
)

type catalogHandle struct {
	db     *sql.DB
	feeds  *catalog.FeedRepository
	reason *catalog.ReasoningRepository
}

func openTestDB(t *testing.T) *catalogHandle {
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
	return &catalogHandle{
		db:     db,
		feeds:  catalog.NewFeedRepository(db),
		reason: catalog.NewReasoningRepository(db),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func insertEntry(t *testing.T, h *catalogHandle, link, content string) entity.Entry {
	t.Helper()
	ctx := context.Background()
	feedID, _, err := h.feeds.UpsertFeed(ctx, "https://example.com/feed", "Example Feed", "desc", "en")
	if err != nil {
		t.Fatalf("upsert feed: %v", err)
	}
	written, err := catalog.CommitFeedBatch(ctx, h.db, feedID, timeutil.Now(), []entity.Entry{
		{FeedID: feedID, Link: link, Title: "title", Content: content, PublishedAt: timeutil.Now()},
	})
	if err != nil {
		t.Fatalf("commit batch: %v", err)
	}
	if len(written) != 1 {
		t.Fatalf("expected 1 entry written, got %d", len(written))
	}
	return written[0]
}

// scriptedCaller returns queued replies in order, one per invocation.
type scriptedCaller struct {
	replies []string
	calls   int
}

func (s *scriptedCaller) caller(ctx context.Context, messages []llmpool.Message) (string, error) {
	reply := s.replies[s.calls]
	s.calls++
	return reply, nil
}

func buildManager(t *testing.T, nodeReplies map[string][]string) *llmpool.Manager {
	manager, _ := buildManagerWithScripts(t, nodeReplies)
	return manager
}

// buildManagerWithScripts is buildManager plus access to each node's
// scriptedCaller, for tests that assert exact invocation counts.
func buildManagerWithScripts(t *testing.T, nodeReplies map[string][]string) (*llmpool.Manager, map[string]*scriptedCaller) {
	t.Helper()
	manager := llmpool.NewManager()
	scripts := make(map[string]*scriptedCaller, len(nodeReplies))
	for node, replies := range nodeReplies {
		script := &scriptedCaller{replies: replies}
		scripts[node] = script
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
	return manager, scripts
}

func TestGraph_ApprovedOnFirstPassTagsAndScores(t *testing.T) {
	h := openTestDB(t)
	ctx := context.Background()
	entry := insertEntry(t, h, "https://example.com/a", "some article body")

	manager := buildManager(t, map[string][]string{
		"tagger":        {`{"name": "golang", "classification_rationale": "about go"}`},
		"tagger_review": {`{"approved": true, "reason": "looks right"}`},
		"score":         {`{"tag": "actionable", "summary": "do the thing"}`},
	})

	g := reasoning.New(manager, h.reason, discardLogger())
	if err := g.Run(ctx, entry); err != nil {
		t.Fatalf("run: %v", err)
	}

	cat, err := h.reason.GetCategory(ctx, entry.ID)
	if err != nil {
		t.Fatalf("get category: %v", err)
	}
	if cat.Category != "golang" {
		t.Errorf("category = %q, want golang", cat.Category)
	}

	hasScore, err := h.reason.HasScore(ctx, entry.ID)
	if err != nil {
		t.Fatalf("has score: %v", err)
	}
	if !hasScore {
		t.Error("expected score to be written")
	}
}

func TestGraph_TerminalCategoryEndsBeforeScore(t *testing.T) {
	h := openTestDB(t)
	ctx := context.Background()
	entry := insertEntry(t, h, "https://example.com/b", "a roundup of links")

	manager := buildManager(t, map[string][]string{
		"tagger":        {`{"name": "aggregation", "classification_rationale": "link roundup"}`},
		"tagger_review": {`{"approved": true, "reason": "agreed"}`},
	})

	g := reasoning.New(manager, h.reason, discardLogger())
	if err := g.Run(ctx, entry); err != nil {
		t.Fatalf("run: %v", err)
	}

	hasScore, err := h.reason.HasScore(ctx, entry.ID)
	if err != nil {
		t.Fatalf("has score: %v", err)
	}
	if hasScore {
		t.Error("expected terminal category to end the graph before scoring")
	}
}

func TestGraph_RejectionLoopsThenForceAccepts(t *testing.T) {
	h := openTestDB(t)
	ctx := context.Background()
	entry := insertEntry(t, h, "https://example.com/c", "ambiguous content")

	manager, scripts := buildManagerWithScripts(t, map[string][]string{
		"tagger": {
			`{"name": "golang", "classification_rationale": "first guess"}`,
			`{"name": "golang", "classification_rationale": "second guess"}`,
			`{"name": "golang", "classification_rationale": "third guess"}`,
			`{"name": "golang", "classification_rationale": "fourth guess"}`,
		},
		"tagger_review": {
			`{"approved": false, "reason": "try again"}`,
			`{"approved": false, "reason": "still not convinced"}`,
			`{"approved": false, "reason": "nearly at the cap"}`,
			`{"approved": false, "reason": "last rejection before cap"}`,
		},
		"score": {`{"tag": "systematic", "summary": "background info"}`},
	})

	g := reasoning.New(manager, h.reason, discardLogger())
	if err := g.Run(ctx, entry); err != nil {
		t.Fatalf("run: %v", err)
	}

	cat, err := h.reason.GetCategory(ctx, entry.ID)
	if err != nil {
		t.Fatalf("get category: %v", err)
	}
	if cat.Category != "golang" {
		t.Errorf("category = %q, want golang (force-accepted)", cat.Category)
	}

	// MAX_TAGGER_RETRY_COUNT+1 = 4 rejections in a row force-accepts on the
	// fourth call, per spec's "bounded review loop" property.
	if scripts["tagger"].calls != 4 {
		t.Errorf("tagger calls = %d, want 4", scripts["tagger"].calls)
	}
	if scripts["tagger_review"].calls != 4 {
		t.Errorf("tagger_review calls = %d, want 4", scripts["tagger_review"].calls)
	}
}

func TestGraph_TaggerParseFailureEndsCleanly(t *testing.T) {
	h := openTestDB(t)
	ctx := context.Background()
	entry := insertEntry(t, h, "https://example.com/f", "unparseable reply content")

	manager := buildManager(t, map[string][]string{
		"tagger": {"not json at all"},
	})

	g := reasoning.New(manager, h.reason, discardLogger())
	if err := g.Run(ctx, entry); err != nil {
		t.Fatalf("run: %v", err)
	}

	hasCategory, err := h.reason.HasCategory(ctx, entry.ID)
	if err != nil {
		t.Fatalf("has category: %v", err)
	}
	if hasCategory {
		t.Error("expected a tagger parse failure to end the graph without writing a category")
	}
}

func TestGraph_ScoreSummaryNormalizesNonStringReplies(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantSum string
	}{
		{
			name:    "list summary uses first element",
			reply:   `{"tag": "noise", "summary": ["first point", "second point"]}`,
			wantSum: "first point",
		},
		{
			name:    "numeric summary is string-cast",
			reply:   `{"tag": "noise", "summary": 42}`,
			wantSum: "42",
		},
		{
			name:    "empty list falls back to default",
			reply:   `{"tag": "noise", "summary": []}`,
			wantSum: entity.DefaultSummary,
		},
		{
			name:    "malformed score reply falls back to default dict",
			reply:   `not json at all`,
			wantSum: entity.DefaultSummary,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := openTestDB(t)
			ctx := context.Background()
			entry := insertEntry(t, h, "https://example.com/g-"+tt.name, "pre-tagged content")

			if err := h.reason.UpsertCategory(ctx, entry.ID, "golang", "pre-tagged"); err != nil {
				t.Fatalf("upsert category: %v", err)
			}

			manager := buildManager(t, map[string][]string{
				"score": {tt.reply},
			})

			g := reasoning.New(manager, h.reason, discardLogger())
			if err := g.Run(ctx, entry); err != nil {
				t.Fatalf("run: %v", err)
			}

			summary, err := h.reason.GetSummary(ctx, entry.ID)
			if err != nil {
				t.Fatalf("get summary: %v", err)
			}
			if summary.AISummary != tt.wantSum {
				t.Errorf("summary = %q, want %q", summary.AISummary, tt.wantSum)
			}
		})
	}
}

func TestGraph_ResumesAtScoreWhenCategoryAlreadyPersisted(t *testing.T) {
	h := openTestDB(t)
	ctx := context.Background()
	entry := insertEntry(t, h, "https://example.com/d", "already tagged")

	if err := h.reason.UpsertCategory(ctx, entry.ID, "golang", "pre-tagged"); err != nil {
		t.Fatalf("upsert category: %v", err)
	}

	manager := buildManager(t, map[string][]string{
		"score": {`{"tag": "noise", "summary": "trivial"}`},
	})

	g := reasoning.New(manager, h.reason, discardLogger())
	if err := g.Run(ctx, entry); err != nil {
		t.Fatalf("run: %v", err)
	}

	hasScore, err := h.reason.HasScore(ctx, entry.ID)
	if err != nil {
		t.Fatalf("has score: %v", err)
	}
	if !hasScore {
		t.Error("expected score to be written when resuming from an existing category")
	}
}

func TestGraph_AlreadyFullyProcessedIsANoop(t *testing.T) {
	h := openTestDB(t)
	ctx := context.Background()
	entry := insertEntry(t, h, "https://example.com/e", "done already")

	if err := h.reason.UpsertCategory(ctx, entry.ID, "golang", "pre-tagged"); err != nil {
		t.Fatalf("upsert category: %v", err)
	}
	if err := h.reason.UpsertScoreAndSummary(ctx, entry.ID, entity.ScoreActionable, "summary"); err != nil {
		t.Fatalf("upsert score: %v", err)
	}

	manager := buildManager(t, map[string][]string{})

	g := reasoning.New(manager, h.reason, discardLogger())
	if err := g.Run(ctx, entry); err != nil {
		t.Fatalf("run: %v", err)
	}
}
