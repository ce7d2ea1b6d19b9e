package llmpool

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"feedmind/internal/observability/metrics"
	"feedmind/internal/resilience/retry"
)

// endpointState is the runtime health bookkeeping kept per endpoint,
// mirroring the original pool manager's per-model health/error-count/
// circuit-until maps.
type endpointState struct {
	healthy      bool
	errorCount   int
	circuitUntil time.Time
}

// endpoint pairs a static config with its runtime state and call function.
type endpoint struct {
	cfg   EndpointConfig
	call  Caller
	state endpointState
}

// Pool is one named group of endpoints sharing a load-balancing strategy
// and a runtime config. All selection and health transitions are guarded by
// mu, per spec §4.9's "thread safety: all counters ... under a per-pool
// mutex" requirement.
type Pool struct {
	Name        string
	Description string
	Strategy    string
	Config      PoolRuntimeConfig

	mu          sync.Mutex
	endpoints   []*endpoint
	roundRobin  int
	sem         chan struct{}
	logger      *slog.Logger
}

// NewPool builds a Pool from a list of (config, caller) pairs. All
// endpoints start healthy with a zero error count, per the original
// post-init behavior.
func NewPool(name, description, strategy string, cfg PoolRuntimeConfig, endpoints []EndpointConfig, callers []Caller, logger *slog.Logger) (*Pool, error) {
	if len(endpoints) == 0 {
		return nil, ErrEmptyPool
	}
	if len(endpoints) != len(callers) {
		return nil, fmt.Errorf("llmpool: pool %s: endpoint/caller count mismatch", name)
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		Name:        name,
		Description: description,
		Strategy:    strategy,
		Config:      cfg,
		sem:         make(chan struct{}, cfg.ConcurrentLimit),
		logger:      logger,
	}
	for i, ec := range endpoints {
		p.endpoints = append(p.endpoints, &endpoint{
			cfg:   ec,
			call:  callers[i],
			state: endpointState{healthy: true},
		})
	}
	return p, nil
}

// Call selects an endpoint per the pool's strategy, invokes it (retrying
// per the pool's configured budget), and reports the outcome back into the
// endpoint's health state. The pool's semaphore bounds concurrent calls to
// ConcurrentLimit.
func (p *Pool) Call(ctx context.Context, messages []Message) (string, error) {
	p.sem <- struct{}{}
	defer func() { <-p.sem }()

	ep, err := p.selectEndpoint()
	if err != nil {
		return "", err
	}

	var reply string
	retryCfg := retry.ReasoningConfig(p.Config.MaxRetries)
	callErr := retry.WithBackoff(ctx, retryCfg, func() error {
		r, callErr := ep.call(ctx, messages)
		if callErr != nil {
			return callErr
		}
		reply = r
		return nil
	})

	if callErr != nil {
		p.reportError(ep, callErr)
		metrics.RecordLLMPoolRequest(p.Name, ep.cfg.Key(), "error")
		return "", fmt.Errorf("llmpool: pool %s endpoint %s: %w", p.Name, ep.cfg.Key(), callErr)
	}
	p.reportSuccess(ep)
	metrics.RecordLLMPoolRequest(p.Name, ep.cfg.Key(), "ok")
	return reply, nil
}

// healthySnapshot pairs an endpoint with an errorCount read under the
// pool's mutex, so strategies that rank by error count (leastUsed) never
// read state.errorCount outside of mu, per spec §4.9.
type healthySnapshot struct {
	ep         *endpoint
	errorCount int
}

func (p *Pool) selectEndpoint() (*endpoint, error) {
	healthy := p.healthySnapshots()
	if len(healthy) == 0 {
		p.logger.Warn("llmpool: no healthy endpoints, resetting pool", slog.String("pool", p.Name))
		p.resetAll()
		healthy = p.allSnapshots()
	}
	if len(healthy) == 0 {
		return nil, ErrEmptyPool
	}
	if len(healthy) == 1 {
		return healthy[0].ep, nil
	}

	switch p.Strategy {
	case StrategyRoundRobin:
		p.mu.Lock()
		idx := p.roundRobin % len(healthy)
		p.roundRobin++
		p.mu.Unlock()
		return healthy[idx].ep, nil
	case StrategyRandom:
		return healthy[rand.Intn(len(healthy))].ep, nil
	case StrategyWeightedRandom:
		return weightedPick(healthy), nil
	case StrategyLeastUsed:
		return leastUsed(healthy), nil
	default:
		p.logger.Warn("llmpool: unknown strategy, falling back to random",
			slog.String("pool", p.Name), slog.String("strategy", p.Strategy))
		return healthy[rand.Intn(len(healthy))].ep, nil
	}
}

func weightedPick(endpoints []healthySnapshot) *endpoint {
	total := 0
	for _, s := range endpoints {
		w := s.ep.cfg.Weight
		if w <= 0 {
			w = 1
		}
		total += w
	}
	pick := rand.Intn(total)
	for _, s := range endpoints {
		w := s.ep.cfg.Weight
		if w <= 0 {
			w = 1
		}
		if pick < w {
			return s.ep
		}
		pick -= w
	}
	return endpoints[len(endpoints)-1].ep
}

func leastUsed(endpoints []healthySnapshot) *endpoint {
	best := endpoints[0]
	for _, s := range endpoints[1:] {
		if s.errorCount < best.errorCount {
			best = s
		}
	}
	return best.ep
}

// healthySnapshots returns the currently-healthy endpoints. An endpoint
// whose circuit-breaker cooldown has elapsed is marked healthy again here
// rather than only on the whole-pool panic reset, so a pool with exactly
// one tripped endpoint recovers it on its own once CircuitBreakerTimeout
// passes, per spec §8's "circuit recovery" property.
func (p *Pool) healthySnapshots() []healthySnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	var out []healthySnapshot
	for _, ep := range p.endpoints {
		if !ep.state.circuitUntil.IsZero() && !now.Before(ep.state.circuitUntil) {
			ep.state.healthy = true
			ep.state.circuitUntil = time.Time{}
		}
		if ep.state.healthy {
			out = append(out, healthySnapshot{ep: ep, errorCount: ep.state.errorCount})
		}
	}
	return out
}

func (p *Pool) allSnapshots() []healthySnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]healthySnapshot, len(p.endpoints))
	for i, ep := range p.endpoints {
		out[i] = healthySnapshot{ep: ep, errorCount: ep.state.errorCount}
	}
	return out
}

// resetAll implements the "panic reset": when no endpoint is currently
// healthy, every endpoint's health/error-count/circuit state is cleared so
// selection can be retried over the full set rather than failing the call.
func (p *Pool) resetAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ep := range p.endpoints {
		ep.state.healthy = true
		ep.state.errorCount = 0
		ep.state.circuitUntil = time.Time{}
	}
}

func (p *Pool) reportError(ep *endpoint, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ep.state.errorCount++
	p.logger.Warn("llmpool: endpoint error",
		slog.String("pool", p.Name),
		slog.String("endpoint", ep.cfg.Key()),
		slog.Int("error_count", ep.state.errorCount),
		slog.Any("error", err))

	if ep.state.errorCount >= p.Config.CircuitBreakerThreshold {
		ep.state.healthy = false
		ep.state.circuitUntil = time.Now().Add(p.Config.CircuitBreakerTimeout)
		p.logger.Error("llmpool: endpoint circuit opened",
			slog.String("pool", p.Name),
			slog.String("endpoint", ep.cfg.Key()),
			slog.Duration("cooldown", p.Config.CircuitBreakerTimeout))
		metrics.SetLLMPoolCircuitState(p.Name, ep.cfg.Key(), true)
	}
}

func (p *Pool) reportSuccess(ep *endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ep.state.errorCount = 0
	ep.state.healthy = true
	ep.state.circuitUntil = time.Time{}
	metrics.SetLLMPoolCircuitState(p.Name, ep.cfg.Key(), false)
}

// Status summarizes runtime health for the HTTP health surface (C17).
type Status struct {
	Name           string
	TotalEndpoints int
	HealthyCount   int
	Strategy       string
}

func (p *Pool) Status() Status {
	return Status{
		Name:           p.Name,
		TotalEndpoints: len(p.endpoints),
		HealthyCount:   len(p.healthySnapshots()),
		Strategy:       p.Strategy,
	}
}
