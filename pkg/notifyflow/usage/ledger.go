// Package usage counts notifications per tenant and answers rate-limit
// questions against those counts.
//
// Counters live on the tenant configuration and are updated with a
// read-modify-write through tenant.Store. Two concurrent Track calls for one
// tenant may lose an increment; limits are approximate.
package usage

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/randalmurphal/notifyflow/pkg/notifyflow/event"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/tenant"
)

// TotalKey is the counter incremented by every tracked send.
const TotalKey = "total"

// OTPKey counts one-time-code sends in the authentication category.
const OTPKey = "category:authentication:otp"

// KindKey returns the per-kind counter key.
func KindKey(kind event.Kind) string {
	return "kind:" + kind.String()
}

// CategoryKey returns the per-category counter key.
func CategoryKey(category event.Category) string {
	return "category:" + category.String()
}

// Meta carries per-send details that affect which counters move.
type Meta struct {
	OTP bool
}

// Limit is an optional maximum. The zero value is unlimited.
type Limit struct {
	max     int64
	limited bool
}

// Unlimited never reports a counter as over its limit.
var Unlimited = Limit{}

// AtMost returns a limit of n.
func AtMost(n int64) Limit {
	return Limit{max: n, limited: true}
}

// Max returns the limit and whether one is set.
func (l Limit) Max() (int64, bool) {
	return l.max, l.limited
}

// Ledger tracks usage counters. Updates are read-modify-write through the
// tenant store without locking; concurrent tracks for one tenant can lose
// increments.
type Ledger struct {
	store tenant.Store
	now   func() time.Time
}

// NewLedger creates a ledger over store.
func NewLedger(store tenant.Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// Track increments the per-kind, per-category, and total counters for one send.
func (l *Ledger) Track(ctx context.Context, tenantID string, kind event.Kind, category event.Category, meta Meta) error {
	cfg, err := l.store.Get(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("track usage: %w", err)
	}

	counters := maps.Clone(cfg.UsageCounters)
	if counters == nil {
		counters = make(map[string]int64, 4)
	}
	counters[KindKey(kind)]++
	counters[CategoryKey(category)]++
	counters[TotalKey]++
	if meta.OTP && category == event.CategoryAuthentication {
		counters[OTPKey]++
	}

	if _, err := l.store.Update(ctx, tenantID, tenant.Patch{UsageCounters: counters}); err != nil {
		return fmt.Errorf("track usage: %w", err)
	}
	return nil
}

// CheckLimit reports whether the counter at key has reached limit.
// An Unlimited limit always returns false.
func (l *Ledger) CheckLimit(ctx context.Context, tenantID, key string, limit Limit) (bool, error) {
	n, ok := limit.Max()
	if !ok {
		return false, nil
	}
	cfg, err := l.store.Get(ctx, tenantID)
	if err != nil {
		return false, fmt.Errorf("check limit: %w", err)
	}
	return cfg.UsageCounters[key] >= n, nil
}

// ResetCounts zeroes every counter and stamps the reset time and period label.
func (l *Ledger) ResetCounts(ctx context.Context, tenantID, period string) error {
	at := l.now().UTC()
	_, err := l.store.Update(ctx, tenantID, tenant.Patch{
		UsageCounters:    map[string]int64{},
		UsageResetAt:     &at,
		UsageResetPeriod: &period,
	})
	if err != nil {
		return fmt.Errorf("reset usage: %w", err)
	}
	return nil
}

// Counts returns a snapshot of the tenant's counters.
func (l *Ledger) Counts(ctx context.Context, tenantID string) (map[string]int64, error) {
	cfg, err := l.store.Get(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("read usage: %w", err)
	}
	out := maps.Clone(cfg.UsageCounters)
	if out == nil {
		out = map[string]int64{}
	}
	return out, nil
}

// LimitFor returns the tenant's configured limit for key, or Unlimited.
func LimitFor(cfg tenant.Config, key string) Limit {
	if n, ok := cfg.Limit(key); ok {
		return AtMost(n)
	}
	return Unlimited
}
