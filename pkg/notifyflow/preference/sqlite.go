package preference

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/randalmurphal/notifyflow/pkg/notifyflow/event"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists preferences in SQLite, one row per explicit choice.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the user_preferences table on db if needed.
// The caller owns db.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS user_preferences (
			tenant_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			enabled INTEGER NOT NULL,
			PRIMARY KEY (tenant_id, user_id, kind)
		)
	`); err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// GetPreferences implements Store. Rows naming kinds this build does not
// know are skipped.
func (s *SQLiteStore) GetPreferences(ctx context.Context, tenantID, userID string) (Preferences, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, enabled FROM user_preferences
		WHERE tenant_id = ? AND user_id = ?
	`, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	prefs := make(Preferences)
	for rows.Next() {
		var name string
		var enabled bool
		if err := rows.Scan(&name, &enabled); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		kind, err := event.ParseKind(name)
		if err != nil {
			continue
		}
		prefs[kind] = enabled
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate preferences: %w", err)
	}
	return prefs, nil
}

// SetPreference implements Store.
func (s *SQLiteStore) SetPreference(ctx context.Context, tenantID, userID string, kind event.Kind, enabled bool) error {
	if err := checkSubscribable(kind); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_preferences (tenant_id, user_id, kind, enabled)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tenant_id, user_id, kind) DO UPDATE SET enabled = excluded.enabled
	`, tenantID, userID, kind.String(), enabled)
	if err != nil {
		return fmt.Errorf("save preference: %w", err)
	}
	return nil
}
