package tenant

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests and single-process use.
type MemoryStore struct {
	mu      sync.RWMutex
	configs map[string]Config
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{configs: make(map[string]Config)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, tenantID string) (Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[tenantID]
	if !ok {
		return Config{TenantID: tenantID}, nil
	}
	return cfg.Clone(), nil
}

// Update implements Store.
func (s *MemoryStore) Update(_ context.Context, tenantID string, patch Patch) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configs[tenantID]
	if !ok {
		cfg = Config{TenantID: tenantID}
	}
	merged := patch.Apply(cfg)
	s.configs[tenantID] = merged
	return merged.Clone(), nil
}
