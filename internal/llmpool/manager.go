package llmpool

import (
	"context"
	"fmt"
	"sync"
)

// Manager is the process-wide registry of pools, node→pool bindings, and
// the default pool. It is rebuilt from scratch on every successful C10
// config reload.
type Manager struct {
	mu          sync.RWMutex
	pools       map[string]*Pool
	nodeMapping map[string]string
	defaultPool string
}

func NewManager() *Manager {
	return &Manager{
		pools:       make(map[string]*Pool),
		nodeMapping: make(map[string]string),
	}
}

// AddPool registers pool under its own name, replacing any pool previously
// registered with that name.
func (m *Manager) AddPool(pool *Pool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools[pool.Name] = pool
}

// BindNode maps nodeName to an already-registered pool.
func (m *Manager) BindNode(nodeName, poolName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pools[poolName]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPool, poolName)
	}
	m.nodeMapping[nodeName] = poolName
	return nil
}

// SetDefaultPool designates the pool used when a node has no explicit
// binding.
func (m *Manager) SetDefaultPool(poolName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pools[poolName]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPool, poolName)
	}
	m.defaultPool = poolName
	return nil
}

// Get resolves nodeName to its pool (falling back to the default pool) and
// returns a NodeCaller bound to it. An empty nodeName always resolves to
// the default pool.
func (m *Manager) Get(nodeName string) (NodeCaller, error) {
	m.mu.RLock()
	poolName, ok := m.nodeMapping[nodeName]
	if !ok || nodeName == "" {
		poolName = m.defaultPool
	}
	pool, poolOK := m.pools[poolName]
	m.mu.RUnlock()

	if poolName == "" || !poolOK {
		return nil, fmt.Errorf("%w: node %q", ErrNoPool, nodeName)
	}

	return func(ctx context.Context, messages []Message) (string, error) {
		return pool.Call(ctx, messages)
	}, nil
}

// Statuses returns a snapshot of every registered pool's health, for the
// HTTP health surface.
func (m *Manager) Statuses() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Status, 0, len(m.pools))
	for _, p := range m.pools {
		out = append(out, p.Status())
	}
	return out
}
