// Package audit records what the dispatch core attempted.
//
// Sinks are fire-and-forget from the caller's point of view: the router runs
// Record on a background task and only logs a failure.
package audit

import (
	"context"
	"time"
)

// Entry is one audit record.
type Entry struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"`
	EventName   string         `json:"event_name"`
	EntityType  string         `json:"entity_type,omitempty"`
	EntityID    string         `json:"entity_id,omitempty"`
	ActorUserID string         `json:"actor_user_id,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Sink persists audit entries. Implementations fill in ID and CreatedAt
// when they are empty.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// Lister is implemented by sinks that can read entries back.
type Lister interface {
	List(ctx context.Context, tenantID string) ([]Entry, error)
}
