// Package llmpool is C9: a pool of chat-completion endpoints behind a
// uniform messages-to-reply surface, with per-endpoint health tracking,
// circuit breaking, and a choice of load-balancing strategies. Grounded on
// the pool manager design this spec's reasoning graph was distilled from:
// endpoints accumulate an error counter and a circuit-open-until timestamp
// rather than relying on a single ratio-based trip condition.
package llmpool

import (
	"context"
	"errors"
	"time"
)

// Message is one turn of a chat-completion call. Role is one of
// "system", "user", "assistant", "tool" — the internal {human, assistant,
// system} alphabet maps onto this set at the call site.
type Message struct {
	Role    string
	Content string
}

// Caller invokes a specific endpoint with a message list and returns its
// reply text.
type Caller func(ctx context.Context, messages []Message) (string, error)

// NodeCaller is what Manager.Get returns: bounded by the pool's
// semaphore and subject to the pool's retry budget.
type NodeCaller func(ctx context.Context, messages []Message) (string, error)

var (
	ErrNoPool       = errors.New("llmpool: no pool resolved for node")
	ErrEmptyPool    = errors.New("llmpool: pool has no endpoints")
	ErrUnknownPool  = errors.New("llmpool: unknown pool name")
	ErrUnknownModel = errors.New("llmpool: pool references an unknown model")
)

// Strategy names, matching spec §4.9/§6 exactly.
const (
	StrategyRoundRobin     = "round_robin"
	StrategyRandom         = "random"
	StrategyWeightedRandom = "weighted_random"
	StrategyLeastUsed      = "least_used"
)

// EndpointConfig is the static configuration of one model endpoint within a
// pool, per spec §3's ModelEndpoint.
type EndpointConfig struct {
	Provider    string
	Model       string
	APIBase     string
	APIKey      string
	APIVersion  string
	Temperature float64
	Timeout     time.Duration
	Weight      int
	TPM         int
	RPM         int
}

// Key uniquely identifies an endpoint within a pool, mirroring the
// "provider:model" key used for the health/error-count maps.
func (c EndpointConfig) Key() string {
	return c.Provider + ":" + c.Model
}

// PoolRuntimeConfig is the §6 pool_config block: timeout/retry/concurrency/
// circuit-breaker/health-check knobs, all pool-scoped.
type PoolRuntimeConfig struct {
	MaxRetries              int
	Timeout                 time.Duration
	ConcurrentLimit         int
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
	HealthCheckInterval     time.Duration
}

// DefaultPoolRuntimeConfig mirrors the original pool manager's dataclass
// defaults.
func DefaultPoolRuntimeConfig() PoolRuntimeConfig {
	return PoolRuntimeConfig{
		MaxRetries:              3,
		Timeout:                 30 * time.Second,
		ConcurrentLimit:         10,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   60 * time.Second,
		HealthCheckInterval:     30 * time.Second,
	}
}
