package notice

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists notifications in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the notifications table on db if needed.
// The caller owns db.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			customer_id TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			data BLOB,
			read INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)
	`); err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}
	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_notifications_user
		ON notifications(tenant_id, user_id, created_at)
	`); err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Create implements Store.
func (s *SQLiteStore) Create(ctx context.Context, n Notification) error {
	var data []byte
	if n.Data != nil {
		var err error
		if data, err = json.Marshal(n.Data); err != nil {
			return fmt.Errorf("encode notification data: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, tenant_id, user_id, customer_id, kind, title, body, data, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.TenantID, n.UserID, n.CustomerID, n.Kind, n.Title, n.Body, data, n.Read,
		n.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListForUser implements Store.
func (s *SQLiteStore) ListForUser(ctx context.Context, tenantID, userID string) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, kind, title, body, data, read, created_at
		FROM notifications
		WHERE tenant_id = ? AND user_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		n := Notification{TenantID: tenantID, UserID: userID}
		var data []byte
		var createdAt string
		if err := rows.Scan(&n.ID, &n.CustomerID, &n.Kind, &n.Title, &n.Body, &data, &n.Read, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &n.Data); err != nil {
				return nil, fmt.Errorf("decode notification data: %w", err)
			}
		}
		n.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

// MarkRead implements Store.
func (s *SQLiteStore) MarkRead(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = 1 WHERE tenant_id = ? AND id = ?
	`, tenantID, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
