package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"feedmind/internal/catalog"
	"feedmind/internal/crawlpolicy"
	"feedmind/internal/domain/entity"
	"feedmind/internal/extractor"
	"feedmind/internal/httphealth"
	"feedmind/internal/ingest"
	"feedmind/internal/llmpool"
	"feedmind/internal/observability/logging"
	"feedmind/internal/orchestrator"
	"feedmind/internal/poolconfig"
	"feedmind/internal/reasoning"
)

// DefaultIngestInterval is the periodic ingestAll trigger, per spec §4.13.
const DefaultIngestInterval = 2 * time.Hour

func main() {
	var (
		graphMode   = flag.Bool("graph", false, "run the classify workflow once and exit")
		crawlMode   = flag.Bool("crawl", false, "run ingestion once and exit")
		limit       = flag.Int("limit", 10, "max entries to classify per run")
		ignoreLimit = flag.Bool("ignore-limit", false, "classify every pending entry, ignoring -limit")
		host        = flag.String("host", "0.0.0.0", "HTTP server bind host")
		port        = flag.Int("port", 8000, "HTTP server bind port")
		debug       = flag.Bool("debug", false, "enable debug-level logging and text output")
	)
	flag.Parse()

	logger := newLogger(*debug)
	slog.SetDefault(logger)

	db, manager, orch, err := bootstrap(logger)
	if err != nil {
		logger.Error("startup failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case *graphMode:
		stats, err := orch.Classify(ctx, *limit, *ignoreLimit, orchestrator.DefaultClassifyConcurrency)
		if err != nil {
			logger.Error("classify failed", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("classify finished", slog.Int("processed", stats.Processed), slog.Int("errors", stats.Errors))
		return

	case *crawlMode:
		sources, err := loadSources(logger)
		if err != nil {
			logger.Error("load sources failed", slog.Any("error", err))
			os.Exit(1)
		}
		_, stats, err := orch.IngestAll(ctx, sources)
		if err != nil {
			logger.Error("ingest failed", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("ingest finished",
			slog.Int("sources", stats.Sources), slog.Int("new_entries", stats.NewEntries), slog.Int("skipped", stats.Skipped))
		return

	default:
		runServer(ctx, logger, *host, *port, db, manager, orch)
	}
}

// bootstrap wires C7 through C12: pool config (C10/C9), the catalog (C8),
// the extractor (C5) with its politeness policy (C2/C3), and the
// reasoning graph (C11), returning the assembled orchestrator.
func bootstrap(logger *slog.Logger) (*sql.DB, *llmpool.Manager, *orchestrator.Orchestrator, error) {
	poolConfigPath := envOrDefault("POOL_CONFIG_PATH", "config/llm_pools.yaml")
	doc, err := poolconfig.Load(poolConfigPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load pool config: %w", err)
	}
	manager, err := poolconfig.BuildManager(doc, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build pool manager: %w", err)
	}
	if len(manager.Statuses()) == 0 {
		return nil, nil, nil, fmt.Errorf("no pools registered from %s", poolConfigPath)
	}
	logger.Info("pool manager ready", slog.Int("pools", len(manager.Statuses())))

	catalogDSN := envOrDefault("CATALOG_DSN", "./data/catalog.db")
	db, err := catalog.Open(catalogDSN, catalog.DefaultConnectionConfig())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open catalog: %w", err)
	}
	if err := catalog.MigrateUp(db); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("migrate catalog: %w", err)
	}

	policy := crawlpolicy.NewPolicy(crawlpolicy.DefaultDelayConfig(), crawlpolicy.StrictHostOverride, crawlpolicy.NewDomainTracker(), logger)
	ex := extractor.New(extractor.DefaultConfig(), policy, logger)

	feedClient := proxyAwareClient()
	ig := ingest.New(db, ex, feedClient, logger)

	graph := reasoning.New(manager, catalog.NewReasoningRepository(db), logger)

	orch := orchestrator.New(ig, graph, catalog.NewEntryRepository(db), logger)

	return db, manager, orch, nil
}

func runServer(ctx context.Context, logger *slog.Logger, host string, port int, db *sql.DB, manager *llmpool.Manager, orch *orchestrator.Orchestrator) {
	startPeriodicIngest(ctx, logger, orch)

	healthAddr := fmt.Sprintf("%s:%d", host, port)
	if v := os.Getenv("HEALTH_PORT"); v != "" {
		healthAddr = fmt.Sprintf("%s:%s", host, v)
	}
	srv := httphealth.New(healthAddr, db, manager, logger)

	logger.Info("server starting", slog.String("addr", healthAddr))
	if err := srv.Start(ctx); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped cleanly")
}

// startPeriodicIngest schedules ingestAll every INGEST_INTERVAL (default
// 2h), per spec §4.13. A failed run is logged; the schedule continues.
func startPeriodicIngest(ctx context.Context, logger *slog.Logger, orch *orchestrator.Orchestrator) {
	interval := DefaultIngestInterval
	if v := os.Getenv("INGEST_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			interval = d
		} else {
			logger.Warn("invalid INGEST_INTERVAL, using default", slog.String("value", v), slog.Any("error", err))
		}
	}

	c := cron.New()
	spec := fmt.Sprintf("@every %s", interval.String())
	_, err := c.AddFunc(spec, func() {
		sources, err := loadSources(logger)
		if err != nil {
			logger.Error("periodic ingest: load sources failed", slog.Any("error", err))
			return
		}
		if _, stats, err := orch.IngestAll(ctx, sources); err != nil {
			logger.Error("periodic ingest failed", slog.Any("error", err))
		} else {
			logger.Info("periodic ingest finished",
				slog.Int("sources", stats.Sources), slog.Int("new_entries", stats.NewEntries))
		}
	})
	if err != nil {
		logger.Error("failed to schedule periodic ingest", slog.Any("error", err))
		return
	}
	c.Start()

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()

	logger.Info("periodic ingest scheduled", slog.Duration("interval", interval))
}

func loadSources(logger *slog.Logger) ([]entity.Source, error) {
	dir := envOrDefault("SOURCES_PATH", "data")
	sources, err := ingest.LoadSources(dir)
	if err != nil {
		return nil, err
	}
	logger.Info("sources loaded", slog.Int("count", len(sources)))
	return sources, nil
}

func newLogger(debug bool) *slog.Logger {
	if debug {
		os.Setenv("LOG_LEVEL", "debug")
		return logging.NewTextLogger()
	}
	return logging.NewLogger()
}

func proxyAwareClient() *http.Client {
	proxyURL := os.Getenv("NETWORK_PROXY")
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
	}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{Timeout: 30 * time.Second, Transport: transport}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
