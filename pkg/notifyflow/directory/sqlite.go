package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLite is a Directory backed by SQLite tables.
// Writes go through the Put* helpers; production deployments usually point
// it at tables maintained by the account service.
type SQLite struct {
	db *sql.DB
}

var _ Directory = (*SQLite)(nil)

// NewSQLite creates the directory tables on db if needed. The caller owns db.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			login_id TEXT NOT NULL DEFAULT '',
			superadmin INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS tenant_admins (
			tenant_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			PRIMARY KEY (tenant_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS customers (
			tenant_id TEXT NOT NULL,
			id TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (tenant_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS push_subscriptions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			endpoint TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_push_subscriptions_user_id
		ON push_subscriptions(user_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("create directory schema: %w", err)
		}
	}
	return &SQLite{db: db}, nil
}

// PutUser inserts or replaces a user.
func (d *SQLite) PutUser(ctx context.Context, u User) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO users (id, login_id, superadmin) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET login_id = excluded.login_id, superadmin = excluded.superadmin
	`, u.ID, u.LoginID, u.Superadmin)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// PutAdmin makes userID an administrator of tenantID.
func (d *SQLite) PutAdmin(ctx context.Context, tenantID, userID string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO tenant_admins (tenant_id, user_id) VALUES (?, ?)
	`, tenantID, userID)
	if err != nil {
		return fmt.Errorf("save admin: %w", err)
	}
	return nil
}

// PutCustomer inserts or replaces a customer.
func (d *SQLite) PutCustomer(ctx context.Context, tenantID string, c Customer) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO customers (tenant_id, id, user_id, phone) VALUES (?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET user_id = excluded.user_id, phone = excluded.phone
	`, tenantID, c.ID, c.UserID, c.Phone)
	if err != nil {
		return fmt.Errorf("save customer: %w", err)
	}
	return nil
}

// PutSubscription inserts or replaces a push subscription.
func (d *SQLite) PutSubscription(ctx context.Context, s PushSubscription) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO push_subscriptions (id, user_id, endpoint) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id, endpoint = excluded.endpoint
	`, s.ID, s.UserID, s.Endpoint)
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

// ListAdminUserIDs implements Admins. Tenant administrators come first,
// followed by superadmins that are not also tenant administrators.
func (d *SQLite) ListAdminUserIDs(ctx context.Context, tenantID string, includeSuperadmins bool) ([]string, error) {
	query := `
		SELECT a.user_id FROM tenant_admins a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE a.tenant_id = ? AND COALESCE(u.superadmin, 0) = 0
		ORDER BY a.user_id`
	args := []any{tenantID}
	if includeSuperadmins {
		query = `
			SELECT user_id FROM (
				SELECT user_id, 0 AS rank FROM tenant_admins WHERE tenant_id = ?
				UNION
				SELECT id AS user_id, 1 AS rank FROM users
				WHERE superadmin = 1
				AND id NOT IN (SELECT user_id FROM tenant_admins WHERE tenant_id = ?)
			)
			ORDER BY rank, user_id`
		args = append(args, tenantID)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admins: %w", err)
	}
	return ids, nil
}

// GetUser implements Users.
func (d *SQLite) GetUser(ctx context.Context, _, userID string) (User, error) {
	u := User{ID: userID}
	err := d.db.QueryRowContext(ctx, `
		SELECT login_id, superadmin FROM users WHERE id = ?
	`, userID).Scan(&u.LoginID, &u.Superadmin)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetCustomer implements Customers.
func (d *SQLite) GetCustomer(ctx context.Context, tenantID, customerID string) (Customer, error) {
	c := Customer{ID: customerID}
	err := d.db.QueryRowContext(ctx, `
		SELECT user_id, phone FROM customers WHERE tenant_id = ? AND id = ?
	`, tenantID, customerID).Scan(&c.UserID, &c.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	if err != nil {
		return Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// ListSubscriptions implements PushSubscriptions.
func (d *SQLite) ListSubscriptions(ctx context.Context, _, userID string) ([]PushSubscription, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, endpoint FROM push_subscriptions WHERE user_id = ? ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []PushSubscription
	for rows.Next() {
		s := PushSubscription{UserID: userID}
		if err := rows.Scan(&s.ID, &s.Endpoint); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}
