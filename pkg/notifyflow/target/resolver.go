// Package target turns the loose recipient hints on an event into a phone
// number an SMS gateway can deliver to.
package target

import (
	"context"
	"errors"
	"fmt"

	"github.com/nyaruka/phonenumbers"
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/directory"
)

var (
	// ErrInvalidPhone is returned when an explicit phone literal does not
	// parse. Resolution stops there.
	ErrInvalidPhone = errors.New("invalid phone number")

	// ErrNotResolvable is returned when no source produced a phone number.
	ErrNotResolvable = errors.New("no phone number for recipient")
)

// DefaultRegion is used to parse numbers without a country code.
const DefaultRegion = "US"

// Candidate holds every hint that may lead to a phone number.
type Candidate struct {
	Phone      string
	UserID     string
	CustomerID string
}

// CanPotentiallyResolve reports whether c has any hint at all.
func CanPotentiallyResolve(c Candidate) bool {
	return c.Phone != "" || c.UserID != "" || c.CustomerID != ""
}

// Resolver looks up phone numbers. It is safe for concurrent use.
type Resolver struct {
	users     directory.Users
	customers directory.Customers
	region    string
}

// NewResolver creates a resolver. An empty region uses DefaultRegion.
func NewResolver(users directory.Users, customers directory.Customers, region string) *Resolver {
	if region == "" {
		region = DefaultRegion
	}
	return &Resolver{users: users, customers: customers, region: region}
}

// Resolve returns an E.164 phone number for c. Sources are tried in order:
// the explicit phone literal, the user's login id, then the customer's stored
// phone. A bad literal fails outright; a bad or missing directory value moves
// on to the next source.
func (r *Resolver) Resolve(ctx context.Context, tenantID string, c Candidate) (string, error) {
	if c.Phone != "" {
		phone, ok := r.Normalize(c.Phone)
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrInvalidPhone, c.Phone)
		}
		return phone, nil
	}

	if c.UserID != "" && r.users != nil {
		if u, err := r.users.GetUser(ctx, tenantID, c.UserID); err == nil {
			if phone, ok := r.Normalize(u.LoginID); ok {
				return phone, nil
			}
		}
	}

	if c.CustomerID != "" && r.customers != nil {
		if cust, err := r.customers.GetCustomer(ctx, tenantID, c.CustomerID); err == nil {
			if phone, ok := r.Normalize(cust.Phone); ok {
				return phone, nil
			}
		}
	}

	return "", ErrNotResolvable
}

// Normalize parses raw and formats it as E.164.
func (r *Resolver) Normalize(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	num, err := phonenumbers.Parse(raw, r.region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", false
	}
	return phonenumbers.Format(num, phonenumbers.E164), true
}
