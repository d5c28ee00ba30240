package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteSink appends entries to an audit_log table.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink creates the audit_log table on db if needed. The caller owns db.
func NewSQLiteSink(db *sql.DB) (*SQLiteSink, error) {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			event_name TEXT NOT NULL,
			entity_type TEXT NOT NULL DEFAULT '',
			entity_id TEXT NOT NULL DEFAULT '',
			actor_user_id TEXT NOT NULL DEFAULT '',
			data BLOB,
			created_at TEXT NOT NULL
		)
	`); err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}
	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_audit_log_tenant_id
		ON audit_log(tenant_id, created_at)
	`); err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Record implements Sink.
func (s *SQLiteSink) Record(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var data []byte
	if entry.Data != nil {
		var err error
		if data, err = json.Marshal(entry.Data); err != nil {
			return fmt.Errorf("encode audit data: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, tenant_id, event_name, entity_type, entity_id, actor_user_id, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.TenantID, entry.EventName, entry.EntityType, entry.EntityID,
		entry.ActorUserID, data, entry.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// List implements Lister. Entries are returned oldest first.
func (s *SQLiteSink) List(ctx context.Context, tenantID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_name, entity_type, entity_id, actor_user_id, data, created_at
		FROM audit_log
		WHERE tenant_id = ?
		ORDER BY created_at, rowid
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e := Entry{TenantID: tenantID}
		var data []byte
		var createdAt string
		if err := rows.Scan(&e.ID, &e.EventName, &e.EntityType, &e.EntityID, &e.ActorUserID, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, fmt.Errorf("decode audit data: %w", err)
			}
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
