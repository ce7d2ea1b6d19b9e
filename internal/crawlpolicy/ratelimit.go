package crawlpolicy

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DelayConfig is the effective per-fetch delay configuration: a global
// window and a per-domain window, each expressed in seconds to match the
// uniform(min, max) sampling C3 performs.
type DelayConfig struct {
	MinGlobal float64
	MaxGlobal float64
	MinDomain float64
	MaxDomain float64
}

// DefaultDelayConfig mirrors original_source/src/crawl/anti_detect.py's
// module-level defaults.
func DefaultDelayConfig() DelayConfig {
	return DelayConfig{
		MinGlobal: MinDelay,
		MaxGlobal: MaxDelay,
		MinDomain: SameDomainMinDelay,
		MaxDomain: SameDomainMaxDelay,
	}
}

// OverrideRule is a pure function from URL to a partial config override.
// A nil partial (or a rule that panics) means "no override, fall through to
// defaults" — the caller recovers and logs per spec §4.3 step 1.
type OverrideRule func(url string) *DelayConfig

// Policy applies C3's rate-limit and anti-detection policy ahead of every
// fetch the extractor makes. It composes a DomainTracker (C2) with a
// process-wide "last request to any host" clock.
type Policy struct {
	defaults DelayConfig
	override OverrideRule
	tracker  *DomainTracker
	logger   *slog.Logger

	mu      sync.Mutex
	lastAny time.Time
	hasAny  bool
}

// NewPolicy builds a Policy over the given defaults, optional override
// rule, and domain tracker.
func NewPolicy(defaults DelayConfig, override OverrideRule, tracker *DomainTracker, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{
		defaults: defaults,
		override: override,
		tracker:  tracker,
		logger:   logger,
	}
}

// resolve merges the override (key by key) onto the defaults for rawURL.
func (p *Policy) resolve(rawURL string) (cfg DelayConfig) {
	cfg = p.defaults
	if p.override == nil {
		return cfg
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("crawlpolicy: override rule panicked, falling back to defaults",
				slog.String("url", rawURL), slog.Any("recover", r))
			cfg = p.defaults
		}
	}()

	partial := p.override(rawURL)
	if partial == nil {
		return p.defaults
	}
	merged := p.defaults
	if partial.MinGlobal != 0 {
		merged.MinGlobal = partial.MinGlobal
	}
	if partial.MaxGlobal != 0 {
		merged.MaxGlobal = partial.MaxGlobal
	}
	if partial.MinDomain != 0 {
		merged.MinDomain = partial.MinDomain
	}
	if partial.MaxDomain != 0 {
		merged.MaxDomain = partial.MaxDomain
	}
	return merged
}

// Wait sleeps out the global and then the per-domain delay required before
// fetching rawURL, in that fixed order, then records the fetch. It returns
// early if ctx is cancelled mid-sleep.
func (p *Policy) Wait(ctx context.Context, rawURL string) error {
	cfg := p.resolve(rawURL)

	if err := p.waitGlobal(ctx, cfg); err != nil {
		return err
	}
	if err := p.waitDomain(ctx, rawURL, cfg); err != nil {
		return err
	}

	p.mu.Lock()
	p.lastAny = time.Now()
	p.hasAny = true
	p.mu.Unlock()
	p.tracker.Record(rawURL)
	return nil
}

func (p *Policy) waitGlobal(ctx context.Context, cfg DelayConfig) error {
	target := UniformDelay(cfg.MinGlobal, cfg.MaxGlobal)

	p.mu.Lock()
	hasAny := p.hasAny
	lastAny := p.lastAny
	p.mu.Unlock()

	if !hasAny {
		return nil
	}
	remaining := target - time.Since(lastAny)
	if remaining <= 0 {
		return nil
	}
	return sleepCtx(ctx, remaining)
}

func (p *Policy) waitDomain(ctx context.Context, rawURL string, cfg DelayConfig) error {
	minGap := UniformDelay(cfg.MinDomain, cfg.MaxDomain)
	wait := p.tracker.WaitNeeded(rawURL, minGap)
	if wait <= 0 {
		return nil
	}
	return sleepCtx(ctx, wait)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// KnownStrictHosts carries per-domain override delays for hosts known to
// rate-limit aggressively, encoded as a built-in table per spec §4.7 step 4.
var KnownStrictHosts = map[string]DelayConfig{
	"mp.weixin.qq.com": {MinGlobal: MinDelay, MaxGlobal: MaxDelay, MinDomain: 15, MaxDomain: 30},
}

// StrictHostOverride is an OverrideRule that consults KnownStrictHosts.
func StrictHostOverride(rawURL string) *DelayConfig {
	host := Host(rawURL)
	if cfg, ok := KnownStrictHosts[host]; ok {
		return &cfg
	}
	return nil
}
