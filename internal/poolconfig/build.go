package poolconfig

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"feedmind/internal/llmpool"
)

// BuildManager rebuilds an llmpool.Manager from scratch from a validated
// Document, per spec §4.10's "on success, C9 is rebuilt from scratch".
func BuildManager(doc *Document, logger *slog.Logger) (*llmpool.Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	modelIndex := make(map[string]resolvedModel)
	for providerName, provider := range doc.Providers {
		for _, m := range provider.Models {
			modelIndex[providerName+":"+m.Model] = resolvedModel{provider: provider, spec: m}
		}
	}

	manager := llmpool.NewManager()

	for poolName, pool := range doc.Pools {
		endpoints := make([]llmpool.EndpointConfig, 0, len(pool.Models))
		callers := make([]llmpool.Caller, 0, len(pool.Models))

		for _, ref := range pool.Models {
			rm, ok := modelIndex[ref]
			if !ok {
				return nil, fmt.Errorf("poolconfig: pool %q references unknown model %q", poolName, ref)
			}
			ec := endpointConfigFor(rm, pool)
			endpoints = append(endpoints, ec)
			callers = append(callers, callerFor(rm.provider.Provider, ec, logger))
		}

		runtimeCfg := runtimeConfigFor(pool.PoolConfig)
		p, err := llmpool.NewPool(poolName, pool.Description, pool.LoadBalanceStrategy, runtimeCfg, endpoints, callers, logger)
		if err != nil {
			return nil, fmt.Errorf("poolconfig: build pool %q: %w", poolName, err)
		}
		manager.AddPool(p)
	}

	for nodeName, ref := range doc.Nodes {
		if err := manager.BindNode(nodeName, ref.Pool); err != nil {
			return nil, fmt.Errorf("poolconfig: bind node %q: %w", nodeName, err)
		}
	}

	if doc.DefaultPool != "" {
		if err := manager.SetDefaultPool(doc.DefaultPool); err != nil {
			return nil, fmt.Errorf("poolconfig: set default pool: %w", err)
		}
	}

	return manager, nil
}

type resolvedModel struct {
	provider Provider
	spec     ModelSpec
}

func endpointConfigFor(rm resolvedModel, pool Pool) llmpool.EndpointConfig {
	temperature := rm.spec.Temperature
	if pool.Temperature != nil {
		temperature = *pool.Temperature
	}
	timeout := rm.spec.Timeout
	if pool.Timeout != nil {
		timeout = *pool.Timeout
	}
	if timeout == 0 {
		timeout = 30
	}
	weight := rm.spec.Weight
	if weight <= 0 {
		weight = 1
	}

	return llmpool.EndpointConfig{
		Provider:    rm.provider.Provider,
		Model:       rm.spec.Model,
		APIBase:     rm.provider.APIBase,
		APIKey:      rm.provider.APIKey,
		APIVersion:  rm.provider.APIVersion,
		Temperature: temperature,
		Timeout:     time.Duration(timeout) * time.Second,
		Weight:      weight,
		TPM:         rm.spec.TPM,
		RPM:         rm.spec.RPM,
	}
}

func callerFor(providerType string, ec llmpool.EndpointConfig, logger *slog.Logger) llmpool.Caller {
	if strings.EqualFold(providerType, "anthropic") || strings.EqualFold(providerType, "claude") {
		return llmpool.NewAnthropicCaller(ec, logger)
	}
	return llmpool.NewOpenAICaller(ec, logger)
}

func runtimeConfigFor(spec *RuntimeSpec) llmpool.PoolRuntimeConfig {
	if spec == nil {
		return llmpool.DefaultPoolRuntimeConfig()
	}
	return llmpool.PoolRuntimeConfig{
		MaxRetries:              spec.MaxRetries,
		Timeout:                 time.Duration(spec.Timeout) * time.Second,
		ConcurrentLimit:         spec.ConcurrentLimit,
		CircuitBreakerThreshold: spec.CircuitBreakerThreshold,
		CircuitBreakerTimeout:   time.Duration(spec.CircuitBreakerTimeout) * time.Second,
		HealthCheckInterval:     time.Duration(spec.HealthCheckInterval) * time.Second,
	}
}
