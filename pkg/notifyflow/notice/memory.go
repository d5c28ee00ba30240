package notice

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu    sync.RWMutex
	items []Notification
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, n Notification) error {
	n.Data = maps.Clone(n.Data)
	s.mu.Lock()
	s.items = append(s.items, n)
	s.mu.Unlock()
	return nil
}

// ListForUser implements Store.
func (s *MemoryStore) ListForUser(_ context.Context, tenantID, userID string) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Notification
	for i := len(s.items) - 1; i >= 0; i-- {
		n := s.items[i]
		if n.TenantID == tenantID && n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

// MarkRead implements Store.
func (s *MemoryStore) MarkRead(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id && s.items[i].TenantID == tenantID {
			s.items[i].Read = true
			return nil
		}
	}
	return ErrNotFound
}

// All returns every stored notification in insertion order.
func (s *MemoryStore) All() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Notification, len(s.items))
	copy(out, s.items)
	return out
}
