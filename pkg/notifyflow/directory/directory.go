// Package directory looks up the people notifications are sent to:
// tenant administrators, user accounts, customers, and push subscriptions.
package directory

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a user or customer does not exist.
var ErrNotFound = errors.New("directory: not found")

// User is an account that can sign in.
type User struct {
	ID string

	// LoginID is the identifier the user signs in with. For phone-login
	// tenants it is the user's phone number.
	LoginID string

	// Superadmin marks platform operators. They administer every tenant.
	Superadmin bool
}

// Customer is an end customer of a tenant, with or without an account.
type Customer struct {
	ID     string
	UserID string
	Phone  string
}

// PushSubscription is one registered device for push notifications.
type PushSubscription struct {
	ID       string
	UserID   string
	Endpoint string
}

// Admins lists tenant administrators.
type Admins interface {
	// ListAdminUserIDs returns the administrators of a tenant. Platform
	// superadmins are appended when includeSuperadmins is true.
	ListAdminUserIDs(ctx context.Context, tenantID string, includeSuperadmins bool) ([]string, error)
}

// Users looks up user accounts.
type Users interface {
	GetUser(ctx context.Context, tenantID, userID string) (User, error)
}

// Customers looks up tenant customers.
type Customers interface {
	GetCustomer(ctx context.Context, tenantID, customerID string) (Customer, error)
}

// PushSubscriptions lists a user's registered devices.
type PushSubscriptions interface {
	ListSubscriptions(ctx context.Context, tenantID, userID string) ([]PushSubscription, error)
}

// Directory bundles every lookup. Both Memory and SQLite implement it.
type Directory interface {
	Admins
	Users
	Customers
	PushSubscriptions
}
