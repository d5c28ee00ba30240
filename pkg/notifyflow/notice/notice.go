// Package notice stores in-app notifications shown in the tenant dashboard.
package notice

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a notification id does not exist.
var ErrNotFound = errors.New("notification not found")

// Notification is one in-app message.
type Notification struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id"`
	UserID     string         `json:"user_id,omitempty"`
	CustomerID string         `json:"customer_id,omitempty"`
	Kind       string         `json:"kind"`
	Title      string         `json:"title"`
	Body       string         `json:"body"`
	Data       map[string]any `json:"data,omitempty"`
	Read       bool           `json:"read"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Store persists in-app notifications.
type Store interface {
	// Create saves n. ID and CreatedAt must already be set.
	Create(ctx context.Context, n Notification) error

	// ListForUser returns a user's notifications, newest first.
	ListForUser(ctx context.Context, tenantID, userID string) ([]Notification, error)

	// MarkRead flags a notification as read.
	MarkRead(ctx context.Context, tenantID, id string) error
}
