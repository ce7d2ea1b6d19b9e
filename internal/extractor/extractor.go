package extractor

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"feedmind/internal/crawlpolicy"
	"feedmind/internal/observability/metrics"
	"feedmind/internal/resilience/circuitbreaker"
	"feedmind/internal/resilience/retry"

	readability "github.com/go-shiori/go-readability"
)

// Result is C5's public result type. Extract never raises past its public
// API; a give-up condition comes back as Ok=false with Error set.
type Result struct {
	Ok        bool
	Content   string
	Title     string
	URL       string
	WordCount int
	Error     string
}

// Extractor is the polite, concurrency-bounded web content extractor.
// A single process-wide semaphore gates every fetch; inside it, the
// rate-limit policy (C3) runs, then the C4-decorated fetch, then
// post-processing. A panic or error releases the semaphore — the
// extractor never deadlocks on failure.
type Extractor struct {
	cfg     Config
	policy  *crawlpolicy.Policy
	cb      *circuitbreaker.CircuitBreaker
	client  *http.Client
	sem     chan struct{}
	logger  *slog.Logger
}

// New builds an Extractor. policy should already be wired with a
// DomainTracker and the desired override rule (e.g. crawlpolicy.StrictHostOverride).
func New(cfg Config, policy *crawlpolicy.Policy, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Extractor{
		cfg:    cfg,
		policy: policy,
		cb:     circuitbreaker.New(circuitbreaker.WebScraperConfig()),
		sem:    make(chan struct{}, cfg.EffectiveConcurrency()),
		logger: logger,
	}

	e.client = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("%w: %d redirects", ErrTooManyRedirects, len(via))
			}
			return validateURL(req.URL.String(), cfg.DenyPrivateIPs)
		},
	}
	return e
}

// Extract fetches url, extracts its main content via Readability, and
// cleans the result to markdown.
func (e *Extractor) Extract(ctx context.Context, target string) Result {
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return Result{Ok: false, URL: target, Error: ctx.Err().Error()}
	}
	defer func() { <-e.sem }()

	return e.extractLocked(ctx, target)
}

func (e *Extractor) extractLocked(ctx context.Context, target string) Result {
	host := crawlpolicy.Host(target)

	if err := validateURL(target, e.cfg.DenyPrivateIPs); err != nil {
		metrics.RecordExtractorFetch(host, "blocked")
		return Result{Ok: false, URL: target, Error: err.Error()}
	}

	if e.policy != nil {
		waitStart := time.Now()
		err := e.policy.Wait(ctx, target)
		metrics.RecordExtractorWait(time.Since(waitStart))
		if err != nil {
			metrics.RecordExtractorFetch(host, "blocked")
			return Result{Ok: false, URL: target, Error: err.Error()}
		}
	}

	var art readability.Article
	err := retry.WithBackoff(ctx, retry.ExtractorConfig(), func() error {
		a, ferr := e.fetchOnce(ctx, target)
		if ferr != nil {
			return ferr
		}
		art = a
		return nil
	})
	if err != nil {
		metrics.RecordExtractorFetch(host, "error")
		return Result{Ok: false, URL: target, Error: err.Error()}
	}

	markdown, err := htmlToMarkdown(art.Content)
	if err != nil {
		metrics.RecordExtractorFetch(host, "error")
		return Result{Ok: false, URL: target, Error: fmt.Errorf("%w: %v", ErrReadabilityFailed, err).Error()}
	}
	markdown = clean(markdown)

	title := art.Title
	if title == "" {
		title = titleFromMarkdown(markdown)
	}

	metrics.RecordExtractorFetch(host, "ok")
	return Result{
		Ok:        true,
		Content:   markdown,
		Title:     title,
		URL:       target,
		WordCount: wordCount(markdown),
	}
}

func (e *Extractor) fetchOnce(ctx context.Context, target string) (readability.Article, error) {
	result, err := e.cb.Execute(func() (interface{}, error) {
		return e.doFetch(ctx, target)
	})
	if err != nil {
		return readability.Article{}, err
	}
	return result.(readability.Article), nil
}

func (e *Extractor) doFetch(ctx context.Context, target string) (readability.Article, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return readability.Article{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", crawlpolicy.RandomUserAgent())
	for k, v := range crawlpolicy.RandomHeaders() {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return readability.Article{}, fmt.Errorf("%w: exceeded %v", ErrTimeout, e.cfg.Timeout)
		}
		return readability.Article{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readability.Article{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	limited := io.LimitReader(resp.Body, e.cfg.MaxBodySize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return readability.Article{}, fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(body)) > e.cfg.MaxBodySize {
		return readability.Article{}, fmt.Errorf("%w: %d bytes exceeds limit %d", ErrBodyTooLarge, len(body), e.cfg.MaxBodySize)
	}

	parsedURL, _ := url.Parse(target)
	if resp.Request != nil && resp.Request.URL != nil {
		parsedURL = resp.Request.URL
	}

	article, err := readability.FromReader(io.NopCloser(bytes.NewReader(body)), parsedURL)
	if err != nil {
		return readability.Article{}, fmt.Errorf("%w: %v", ErrReadabilityFailed, err)
	}
	return article, nil
}

// ExtractMany groups urls by host, extracts each host's group concurrently
// (bounded by the shared semaphore), and sleeps uniform(2, 5) seconds
// between hosts — never after the last one — per spec §4.5.
func (e *Extractor) ExtractMany(ctx context.Context, urls []string) map[string]Result {
	groups := make(map[string][]string)
	var hosts []string
	for _, u := range urls {
		h := crawlpolicy.Host(u)
		if _, ok := groups[h]; !ok {
			hosts = append(hosts, h)
		}
		groups[h] = append(groups[h], u)
	}
	sort.Strings(hosts)

	results := make(map[string]Result, len(urls))
	var mu sync.Mutex

	for i, host := range hosts {
		var wg sync.WaitGroup
		for _, u := range groups[host] {
			wg.Add(1)
			go func(target string) {
				defer wg.Done()
				r := e.Extract(ctx, target)
				mu.Lock()
				results[target] = r
				mu.Unlock()
			}(u)
		}
		wg.Wait()

		if i < len(hosts)-1 {
			select {
			case <-time.After(crawlpolicy.UniformDelay(2, 5)):
			case <-ctx.Done():
				return results
			}
		}
	}
	return results
}
