// Package tenant stores per-tenant notification configuration and usage
// counters.
//
// A Config is read whole and written through Update, which merges a Patch
// into the stored value. Readers never see a partially applied patch, but two
// concurrent read-modify-write cycles on one tenant may overwrite each other.
package tenant

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/randalmurphal/notifyflow/pkg/notifyflow/event"
)

// Action enables or disables one delivery channel for an event kind.
type Action struct {
	Type    event.ActionType `json:"type"`
	Enabled bool             `json:"enabled"`
}

// EventSettings is a tenant's opt-in configuration for one event kind.
type EventSettings struct {
	Enabled bool     `json:"enabled"`
	Actions []Action `json:"actions"`
}

// Config is a tenant's notification configuration.
type Config struct {
	TenantID string `json:"tenant_id"`

	// Events holds the opt-in configuration for subscribable kinds.
	Events map[event.Kind]EventSettings `json:"events,omitempty"`

	// UsageCounters maps counter keys to counts since the last reset.
	UsageCounters map[string]int64 `json:"usage_counters,omitempty"`

	UsageResetAt     time.Time `json:"usage_reset_at,omitzero"`
	UsageResetPeriod string    `json:"usage_reset_period,omitempty"`

	// Limits maps counter keys to the maximum count allowed per period.
	Limits map[string]int64 `json:"limits,omitempty"`
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := c
	if c.Events != nil {
		out.Events = make(map[event.Kind]EventSettings, len(c.Events))
		for k, v := range c.Events {
			v.Actions = slices.Clone(v.Actions)
			out.Events[k] = v
		}
	}
	out.UsageCounters = maps.Clone(c.UsageCounters)
	out.Limits = maps.Clone(c.Limits)
	return out
}

// EventConfig returns the settings for kind, if the tenant configured it.
func (c Config) EventConfig(kind event.Kind) (EventSettings, bool) {
	s, ok := c.Events[kind]
	return s, ok
}

// Limit returns the configured limit for a counter key.
func (c Config) Limit(key string) (int64, bool) {
	n, ok := c.Limits[key]
	return n, ok
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	// Events entries replace the stored settings for their kind.
	Events map[event.Kind]EventSettings

	// UsageCounters, when non-nil, replaces the stored counters wholesale.
	UsageCounters map[string]int64

	UsageResetAt     *time.Time
	UsageResetPeriod *string

	// Limits entries replace the stored limit for their key.
	Limits map[string]int64
}

// Apply merges p into c and returns the result. c is not modified.
func (p Patch) Apply(c Config) Config {
	out := c.Clone()
	if len(p.Events) > 0 {
		if out.Events == nil {
			out.Events = make(map[event.Kind]EventSettings, len(p.Events))
		}
		for k, v := range p.Events {
			v.Actions = slices.Clone(v.Actions)
			out.Events[k] = v
		}
	}
	if p.UsageCounters != nil {
		out.UsageCounters = maps.Clone(p.UsageCounters)
	}
	if p.UsageResetAt != nil {
		out.UsageResetAt = *p.UsageResetAt
	}
	if p.UsageResetPeriod != nil {
		out.UsageResetPeriod = *p.UsageResetPeriod
	}
	if len(p.Limits) > 0 {
		if out.Limits == nil {
			out.Limits = make(map[string]int64, len(p.Limits))
		}
		maps.Copy(out.Limits, p.Limits)
	}
	return out
}

// Store persists tenant configuration.
//
// Get returns an empty Config (with TenantID set) for unknown tenants.
// Update creates the tenant if needed and returns the merged result.
type Store interface {
	Get(ctx context.Context, tenantID string) (Config, error)
	Update(ctx context.Context, tenantID string, patch Patch) (Config, error)
}
