// Package poolconfig is C10: loading and validating the declarative
// providers/pools/nodes document (spec §6) that C9's Manager is rebuilt
// from on every successful load.
package poolconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document mirrors the YAML shape in spec §6 exactly.
type Document struct {
	Providers   map[string]Provider `yaml:"providers"`
	Pools       map[string]Pool     `yaml:"pools"`
	Nodes       map[string]NodeRef  `yaml:"nodes"`
	DefaultPool string              `yaml:"default_pool"`
}

// Provider groups the shared connection details for one or more models.
type Provider struct {
	Provider   string      `yaml:"provider"`
	APIBase    string      `yaml:"api_base"`
	APIKey     string      `yaml:"api_key"`
	APIVersion string      `yaml:"api_version"`
	Models     []ModelSpec `yaml:"models"`
}

// ModelSpec is one model offered by a provider, with optional per-model
// overrides.
type ModelSpec struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	Timeout     int     `yaml:"timeout"`
	Weight      int     `yaml:"weight"`
	TPM         int     `yaml:"tpm"`
	RPM         int     `yaml:"rpm"`
}

// Pool is a named group of "<provider>:<model>" references sharing a
// strategy and runtime config.
type Pool struct {
	Description         string       `yaml:"description"`
	Models               []string     `yaml:"models"`
	LoadBalanceStrategy  string       `yaml:"load_balance_strategy"`
	Temperature          *float64     `yaml:"temperature"`
	Timeout              *int         `yaml:"timeout"`
	PoolConfig           *RuntimeSpec `yaml:"pool_config"`
}

// RuntimeSpec is the pool_config block.
type RuntimeSpec struct {
	MaxRetries              int `yaml:"max_retries"`
	Timeout                 int `yaml:"timeout"`
	ConcurrentLimit         int `yaml:"concurrent_limit"`
	CircuitBreakerThreshold int `yaml:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   int `yaml:"circuit_breaker_timeout"`
	HealthCheckInterval     int `yaml:"health_check_interval"`
}

// NodeRef accepts either a bare pool-name string or {pool: name} in YAML.
type NodeRef struct {
	Pool string
}

func (n *NodeRef) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var asString string
	if err := unmarshal(&asString); err == nil {
		n.Pool = asString
		return nil
	}
	var asStruct struct {
		Pool string `yaml:"pool"`
	}
	if err := unmarshal(&asStruct); err != nil {
		return fmt.Errorf("poolconfig: node ref must be a string or {pool: name}: %w", err)
	}
	n.Pool = asStruct.Pool
	return nil
}

// Load reads and validates the pool config file at path. Absence of this
// file, or any validation failure, is fatal at startup per spec §6.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("poolconfig: read %s: %w", path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("poolconfig: parse %s: %w", path, err)
	}

	if err := Validate(&doc); err != nil {
		return nil, fmt.Errorf("poolconfig: invalid %s: %w", path, err)
	}
	return &doc, nil
}
