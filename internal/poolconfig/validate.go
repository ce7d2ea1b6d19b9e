package poolconfig

import (
	"fmt"

	"feedmind/internal/llmpool"
)

// Validate applies every check spec §4.10 names. A failure here fails the
// whole load — C9 is only ever rebuilt from a document that passed this in
// full.
func Validate(doc *Document) error {
	if len(doc.Providers) == 0 {
		return fmt.Errorf("providers section is required and must be non-empty")
	}
	if len(doc.Pools) == 0 {
		return fmt.Errorf("pools section is required and must be non-empty")
	}
	if len(doc.Nodes) == 0 {
		return fmt.Errorf("nodes section is required and must be non-empty")
	}

	knownModels := map[string]bool{}
	for providerName, provider := range doc.Providers {
		for _, m := range provider.Models {
			knownModels[providerName+":"+m.Model] = true
		}
	}

	for poolName, pool := range doc.Pools {
		if len(pool.Models) == 0 {
			return fmt.Errorf("pool %q has no model references", poolName)
		}
		for _, ref := range pool.Models {
			if !knownModels[ref] {
				return fmt.Errorf("pool %q references unknown model %q", poolName, ref)
			}
		}
		if !validStrategy(pool.LoadBalanceStrategy) {
			return fmt.Errorf("pool %q has invalid load_balance_strategy %q", poolName, pool.LoadBalanceStrategy)
		}
		if pool.Temperature != nil {
			if err := rangeCheck("pool "+poolName+" temperature", *pool.Temperature, 0, 2); err != nil {
				return err
			}
		}
		if pool.Timeout != nil {
			if err := rangeCheckInt("pool "+poolName+" timeout", *pool.Timeout, 1, 300); err != nil {
				return err
			}
		}
		if pool.PoolConfig != nil {
			if err := validateRuntimeSpec(poolName, pool.PoolConfig); err != nil {
				return err
			}
		}
	}

	for nodeName, ref := range doc.Nodes {
		if ref.Pool == "" {
			return fmt.Errorf("node %q has no pool reference", nodeName)
		}
		if _, ok := doc.Pools[ref.Pool]; !ok {
			return fmt.Errorf("node %q references unknown pool %q", nodeName, ref.Pool)
		}
	}

	if doc.DefaultPool != "" {
		if _, ok := doc.Pools[doc.DefaultPool]; !ok {
			return fmt.Errorf("default_pool references unknown pool %q", doc.DefaultPool)
		}
	}

	for providerName, provider := range doc.Providers {
		for _, m := range provider.Models {
			if m.Weight < 0 {
				return fmt.Errorf("provider %q model %q has negative weight", providerName, m.Model)
			}
		}
	}

	return nil
}

func validStrategy(s string) bool {
	switch s {
	case llmpool.StrategyRoundRobin, llmpool.StrategyRandom, llmpool.StrategyWeightedRandom, llmpool.StrategyLeastUsed:
		return true
	default:
		return false
	}
}

func validateRuntimeSpec(poolName string, spec *RuntimeSpec) error {
	fillRuntimeDefaults(spec)
	if err := rangeCheckInt("pool "+poolName+" max_retries", spec.MaxRetries, 1, 10); err != nil {
		return err
	}
	if err := rangeCheckInt("pool "+poolName+" pool_config.timeout", spec.Timeout, 1, 300); err != nil {
		return err
	}
	if err := rangeCheckInt("pool "+poolName+" concurrent_limit", spec.ConcurrentLimit, 1, 100); err != nil {
		return err
	}
	if err := rangeCheckInt("pool "+poolName+" circuit_breaker_threshold", spec.CircuitBreakerThreshold, 1, 50); err != nil {
		return err
	}
	if err := rangeCheckInt("pool "+poolName+" circuit_breaker_timeout", spec.CircuitBreakerTimeout, 10, 3600); err != nil {
		return err
	}
	if err := rangeCheckInt("pool "+poolName+" health_check_interval", spec.HealthCheckInterval, 10, 300); err != nil {
		return err
	}
	return nil
}

func rangeCheck(field string, value, min, max float64) error {
	if value < min || value > max {
		return fmt.Errorf("%s must be between %v and %v, got %v", field, min, max, value)
	}
	return nil
}

func rangeCheckInt(field string, value, min, max int) error {
	if value < min || value > max {
		return fmt.Errorf("%s must be between %d and %d, got %d", field, min, max, value)
	}
	return nil
}

// fillRuntimeDefaults substitutes the standard pool runtime defaults for
// any field the document left unset (zero value), so a pool_config block
// only needs to specify the knobs it wants to override.
func fillRuntimeDefaults(spec *RuntimeSpec) {
	defaults := llmpool.DefaultPoolRuntimeConfig()
	if spec.MaxRetries == 0 {
		spec.MaxRetries = defaults.MaxRetries
	}
	if spec.Timeout == 0 {
		spec.Timeout = int(defaults.Timeout.Seconds())
	}
	if spec.ConcurrentLimit == 0 {
		spec.ConcurrentLimit = defaults.ConcurrentLimit
	}
	if spec.CircuitBreakerThreshold == 0 {
		spec.CircuitBreakerThreshold = defaults.CircuitBreakerThreshold
	}
	if spec.CircuitBreakerTimeout == 0 {
		spec.CircuitBreakerTimeout = int(defaults.CircuitBreakerTimeout.Seconds())
	}
	if spec.HealthCheckInterval == 0 {
		spec.HealthCheckInterval = int(defaults.HealthCheckInterval.Seconds())
	}
}
