package directory

import (
	"context"
	"slices"
	"sync"
)

// Memory is an in-memory Directory.
type Memory struct {
	mu            sync.RWMutex
	users         map[string]User
	admins        map[string][]string
	customers     map[string]map[string]Customer
	subscriptions map[string][]PushSubscription
}

var _ Directory = (*Memory)(nil)

// NewMemory creates an empty directory.
func NewMemory() *Memory {
	return &Memory{
		users:         make(map[string]User),
		admins:        make(map[string][]string),
		customers:     make(map[string]map[string]Customer),
		subscriptions: make(map[string][]PushSubscription),
	}
}

// AddUser registers or replaces a user.
func (m *Memory) AddUser(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// AddAdmin makes userID an administrator of tenantID.
func (m *Memory) AddAdmin(tenantID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.Contains(m.admins[tenantID], userID) {
		m.admins[tenantID] = append(m.admins[tenantID], userID)
	}
}

// AddCustomer registers or replaces a customer of tenantID.
func (m *Memory) AddCustomer(tenantID string, c Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.customers[tenantID] == nil {
		m.customers[tenantID] = make(map[string]Customer)
	}
	m.customers[tenantID][c.ID] = c
}

// AddSubscription registers a push device.
func (m *Memory) AddSubscription(s PushSubscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[s.UserID] = append(m.subscriptions[s.UserID], s)
}

// ListAdminUserIDs implements Admins.
func (m *Memory) ListAdminUserIDs(_ context.Context, tenantID string, includeSuperadmins bool) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := slices.Clone(m.admins[tenantID])
	slices.Sort(ids)
	if !includeSuperadmins {
		return slices.DeleteFunc(ids, func(id string) bool {
			return m.users[id].Superadmin
		}), nil
	}

	var supers []string
	for id, u := range m.users {
		if u.Superadmin && !slices.Contains(ids, id) {
			supers = append(supers, id)
		}
	}
	slices.Sort(supers)
	return append(ids, supers...), nil
}

// GetUser implements Users.
func (m *Memory) GetUser(_ context.Context, _, userID string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

// GetCustomer implements Customers.
func (m *Memory) GetCustomer(_ context.Context, tenantID, customerID string) (Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[tenantID][customerID]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

// ListSubscriptions implements PushSubscriptions.
func (m *Memory) ListSubscriptions(_ context.Context, _, userID string) ([]PushSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.subscriptions[userID]), nil
}
