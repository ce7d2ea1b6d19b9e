package httphealth_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"feedmind/internal/catalog"
	"feedmind/internal/httphealth"
	"feedmind/internal/llmpool"
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
	return db
}

// newTestServer starts an httphealth.Server on an ephemeral port and
// returns its base URL, driving requests over the real network loopback
// rather than httptest.NewServer since Server owns its own *http.Server.
func newTestServer(t *testing.T, db *sql.DB, manager *llmpool.Manager) string {
	t.Helper()
	ln := httptest.NewServer(http.NotFoundHandler())
	addr := ln.Listener.Addr().String()
	ln.Close()

	srv := httphealth.New(addr, db, manager, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ready := make(chan struct{})
	go func() {
		close(ready)
		_ = srv.Start(ctx)
	}()
	<-ready
	return "http://" + addr
}

func TestHandleLiveness_AlwaysOK(t *testing.T) {
	db := openTestDB(t)
	base := newTestServer(t, db, llmpool.NewManager())

	resp := waitGet(t, base+"/")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Errorf("expected body 'ok', got %q", body)
	}
}

func TestHandleReadiness_NoPoolsIsUnready(t *testing.T) {
	db := openTestDB(t)
	base := newTestServer(t, db, llmpool.NewManager())

	resp := waitGet(t, base+"/healthz")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with no pools, got %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["db"] != true {
		t.Errorf("expected db=true, got %v", body["db"])
	}
}

func TestHandleReadiness_HealthyPoolAndDBIsReady(t *testing.T) {
	db := openTestDB(t)

	caller := func(ctx context.Context, messages []llmpool.Message) (string, error) {
		return "ok", nil
	}
	pool, err := llmpool.NewPool("tagger-pool", "", llmpool.StrategyRoundRobin, llmpool.DefaultPoolRuntimeConfig(),
		[]llmpool.EndpointConfig{{Provider: "openai", Model: "gpt-4o-mini"}}, []llmpool.Caller{caller}, discardLogger())
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	manager := llmpool.NewManager()
	manager.AddPool(pool)

	base := newTestServer(t, db, manager)

	resp := waitGet(t, base+"/healthz")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with a healthy pool, got %d", resp.StatusCode)
	}
}

func TestHandleReadiness_ClosedDBIsUnready(t *testing.T) {
	db := openTestDB(t)
	db.Close()
	base := newTestServer(t, db, llmpool.NewManager())

	resp := waitGet(t, base+"/healthz")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with a closed db, got %d", resp.StatusCode)
	}
}

// waitGet retries briefly since the server starts in a background goroutine.
func waitGet(t *testing.T, url string) *http.Response {
	t.Helper()
	var lastErr error
	for i := 0; i < 50; i++ {
		resp, err := http.Get(url)
		if err == nil {
			return resp
		}
		lastErr = err
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("GET %s never succeeded: %v", url, lastErr)
	return nil
}
