package preference

import (
	"context"
	"maps"
	"sync"

	"github.com/randalmurphal/notifyflow/pkg/notifyflow/event"
)

type userKey struct {
	tenantID string
	userID   string
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu    sync.RWMutex
	prefs map[userKey]Preferences
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{prefs: make(map[userKey]Preferences)}
}

// GetPreferences implements Store. Unknown users get an empty map.
func (s *MemoryStore) GetPreferences(_ context.Context, tenantID, userID string) (Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := s.prefs[userKey{tenantID, userID}]
	if p == nil {
		return Preferences{}, nil
	}
	return maps.Clone(p), nil
}

// SetPreference implements Store.
func (s *MemoryStore) SetPreference(_ context.Context, tenantID, userID string, kind event.Kind, enabled bool) error {
	if err := checkSubscribable(kind); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := userKey{tenantID, userID}
	if s.prefs[key] == nil {
		s.prefs[key] = make(Preferences)
	}
	s.prefs[key][kind] = enabled
	return nil
}
