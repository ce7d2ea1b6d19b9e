// Package crawlpolicy implements the extractor's politeness controls: a
// per-host request tracker (C2) and the random user-agent / header / delay
// policy layered on top of it (C3). Defaults are ported from
// original_source/src/crawl/anti_detect.py.
package crawlpolicy

import (
	"net/url"
	"sync"
	"time"
)

// DomainTracker records the last request time and request count per host,
// process-wide. All operations are safe for concurrent use.
type DomainTracker struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time
	counts   map[string]int
}

// NewDomainTracker returns an empty, ready-to-use tracker.
func NewDomainTracker() *DomainTracker {
	return &DomainTracker{
		lastSeen: make(map[string]time.Time),
		counts:   make(map[string]int),
	}
}

// Host extracts the network-location portion of rawURL (scheme-stripped,
// port-inclusive). Unparseable URLs are treated as their own host so they
// still get isolated rate-limit state.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

// WaitNeeded returns how long the caller must sleep before hitting rawURL's
// host again without violating minGap. The first observation of a host
// returns 0 and does not mutate tracker state — only Record does.
func (t *DomainTracker) WaitNeeded(rawURL string, minGap time.Duration) time.Duration {
	host := Host(rawURL)

	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.lastSeen[host]
	if !ok {
		return 0
	}
	elapsed := time.Since(last)
	if elapsed >= minGap {
		return 0
	}
	return minGap - elapsed
}

// Record marks rawURL's host as seen now and increments its request counter.
func (t *DomainTracker) Record(rawURL string) {
	host := Host(rawURL)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastSeen[host] = time.Now()
	t.counts[host]++
}

// Count returns the number of recorded requests to rawURL's host.
func (t *DomainTracker) Count(rawURL string) int {
	host := Host(rawURL)

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.counts[host]
}
