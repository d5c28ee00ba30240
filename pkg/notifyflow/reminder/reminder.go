// Package reminder remembers when a tenant was last sent a
// subscription-expired reminder so reminders are not repeated within a
// cooldown window.
package reminder

import (
	"context"
	"sync"
	"time"
)

// DefaultCooldown is used when a tracker is created with a zero cooldown.
const DefaultCooldown = 24 * time.Hour

// Tracker answers whether a reminder is still cooling down for a tenant.
type Tracker interface {
	// SentRecently reports whether a reminder was marked within the cooldown.
	SentRecently(ctx context.Context, tenantID string) (bool, error)

	// MarkSent starts the cooldown for tenantID. Marking a tenant that is
	// already cooling down keeps the original start time.
	MarkSent(ctx context.Context, tenantID string) error
}

// MemoryTracker is an in-process Tracker.
type MemoryTracker struct {
	mu       sync.Mutex
	cooldown time.Duration
	now      func() time.Time
	sent     map[string]time.Time
}

// MemoryOption configures a MemoryTracker.
type MemoryOption func(*MemoryTracker)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(t *MemoryTracker) {
		t.now = now
	}
}

// NewMemoryTracker creates a tracker with the given cooldown.
func NewMemoryTracker(cooldown time.Duration, opts ...MemoryOption) *MemoryTracker {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	t := &MemoryTracker{
		cooldown: cooldown,
		now:      time.Now,
		sent:     make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SentRecently implements Tracker.
func (t *MemoryTracker) SentRecently(_ context.Context, tenantID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.sent[tenantID]
	return ok && t.now().Sub(at) < t.cooldown, nil
}

// MarkSent implements Tracker.
func (t *MemoryTracker) MarkSent(_ context.Context, tenantID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if at, ok := t.sent[tenantID]; ok && now.Sub(at) < t.cooldown {
		return nil
	}
	t.sent[tenantID] = now
	return nil
}
