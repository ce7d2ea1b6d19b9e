package poolconfig_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"feedmind/internal/poolconfig"

	"gopkg.in/yaml.v3"
)

const validDoc = `
providers:
  anthropic-main:
    provider: anthropic
    api_base: https://api.anthropic.com
    api_key: test-key
    models:
      - model: claude-3-5-sonnet
        temperature: 0.2
        timeout: 30
        weight: 2
      - model: claude-3-haiku
        temperature: 0.2
        timeout: 20
        weight: 1
  openai-main:
    provider: openai
    api_key: test-key-2
    models:
      - model: gpt-4o-mini
        temperature: 0.1
        timeout: 30
        weight: 1

pools:
  tagger-pool:
    description: classification pool
    models:
      - anthropic-main:claude-3-5-sonnet
      - anthropic-main:claude-3-haiku
    load_balance_strategy: weighted_random
  score-pool:
    description: scoring pool
    models:
      - openai-main:gpt-4o-mini
    load_balance_strategy: round_robin
    pool_config:
      max_retries: 5
      circuit_breaker_threshold: 3

nodes:
  tagger: tagger-pool
  tagger_review:
    pool: tagger-pool
  score: score-pool

default_pool: tagger-pool
`

func writeDoc(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pools.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write doc: %v", err)
	}
	return path
}

func TestLoad_ValidDocumentSucceeds(t *testing.T) {
	path := writeDoc(t, validDoc)
	doc, err := poolconfig.Load(path)
	if err != nil {
		t.Fatalf("expected valid document to load, got: %v", err)
	}
	if doc.DefaultPool != "tagger-pool" {
		t.Errorf("expected default_pool tagger-pool, got %q", doc.DefaultPool)
	}
	if len(doc.Pools) != 2 {
		t.Errorf("expected 2 pools, got %d", len(doc.Pools))
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	if _, err := poolconfig.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestNodeRef_AcceptsBareStringAndMappingForm(t *testing.T) {
	var doc poolconfig.Document
	if err := yaml.Unmarshal([]byte(validDoc), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Nodes["tagger"].Pool != "tagger-pool" {
		t.Errorf("expected bare-string node ref to resolve, got %q", doc.Nodes["tagger"].Pool)
	}
	if doc.Nodes["tagger_review"].Pool != "tagger-pool" {
		t.Errorf("expected mapping-form node ref to resolve, got %q", doc.Nodes["tagger_review"].Pool)
	}
}

func mustParse(t *testing.T, contents string) *poolconfig.Document {
	t.Helper()
	var doc poolconfig.Document
	if err := yaml.Unmarshal([]byte(contents), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &doc
}

func TestValidate_MissingSectionsFail(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"no providers", `
pools:
  p:
    models: [a:b]
    load_balance_strategy: round_robin
nodes:
  n: p
`},
		{"no pools", `
providers:
  a:
    provider: openai
    models:
      - model: b
nodes:
  n: p
`},
		{"no nodes", `
providers:
  a:
    provider: openai
    models:
      - model: b
pools:
  p:
    models: [a:b]
    load_balance_strategy: round_robin
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := mustParse(t, tc.doc)
			if err := poolconfig.Validate(doc); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidate_UnknownReferencesFail(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"unknown model ref", `
providers:
  a:
    provider: openai
    models:
      - model: b
pools:
  p:
    models: [a:nonexistent]
    load_balance_strategy: round_robin
nodes:
  n: p
`},
		{"unknown node pool ref", `
providers:
  a:
    provider: openai
    models:
      - model: b
pools:
  p:
    models: [a:b]
    load_balance_strategy: round_robin
nodes:
  n: not-a-pool
`},
		{"unknown default_pool ref", `
providers:
  a:
    provider: openai
    models:
      - model: b
pools:
  p:
    models: [a:b]
    load_balance_strategy: round_robin
nodes:
  n: p
default_pool: not-a-pool
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := mustParse(t, tc.doc)
			if err := poolconfig.Validate(doc); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidate_InvalidStrategyFails(t *testing.T) {
	doc := mustParse(t, `
providers:
  a:
    provider: openai
    models:
      - model: b
pools:
  p:
    models: [a:b]
    load_balance_strategy: first_available
nodes:
  n: p
`)
	if err := poolconfig.Validate(doc); err == nil {
		t.Error("expected invalid strategy to fail validation")
	}
}

func TestValidate_RangeViolationsFail(t *testing.T) {
	base := `
providers:
  a:
    provider: openai
    models:
      - model: b
pools:
  p:
    models: [a:b]
    load_balance_strategy: round_robin
    %s
nodes:
  n: p
`
	cases := []struct {
		name   string
		extras string
	}{
		{"temperature too high", "temperature: 3.0"},
		{"timeout too low", "timeout: 0"},
		{"max_retries too high", "pool_config:\n      max_retries: 50"},
		{"concurrent_limit too high", "pool_config:\n      concurrent_limit: 1000"},
		{"circuit_breaker_threshold zero", "pool_config:\n      circuit_breaker_threshold: 0"},
		{"circuit_breaker_timeout too low", "pool_config:\n      circuit_breaker_timeout: 1"},
		{"health_check_interval too high", "pool_config:\n      health_check_interval: 10000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := mustParse(t, fmt.Sprintf(base, tc.extras))
			if err := poolconfig.Validate(doc); err == nil {
				t.Errorf("expected %s to fail validation", tc.name)
			}
		})
	}
}

func TestValidate_PartialPoolConfigFillsDefaults(t *testing.T) {
	doc := mustParse(t, `
providers:
  a:
    provider: openai
    models:
      - model: b
pools:
  p:
    models: [a:b]
    load_balance_strategy: round_robin
    pool_config:
      max_retries: 5
nodes:
  n: p
`)
	if err := poolconfig.Validate(doc); err != nil {
		t.Fatalf("expected partial pool_config to validate using filled defaults, got: %v", err)
	}
	spec := doc.Pools["p"].PoolConfig
	if spec.MaxRetries != 5 {
		t.Errorf("expected explicit max_retries to survive, got %d", spec.MaxRetries)
	}
	if spec.ConcurrentLimit == 0 {
		t.Error("expected concurrent_limit to be filled with a default, got 0")
	}
	if spec.CircuitBreakerTimeout == 0 {
		t.Error("expected circuit_breaker_timeout to be filled with a default, got 0")
	}
}
