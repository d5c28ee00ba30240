package tenant

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrStoreClosed is returned when operating on a closed store.
var ErrStoreClosed = errors.New("tenant store closed")

// SQLiteStore persists tenant configuration as JSON documents in SQLite.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (or creates) the tenant_configs table at path.
// Use ":memory:" for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A :memory: database is per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tenant_configs (
			tenant_id TEXT PRIMARY KEY,
			updated_at TEXT NOT NULL,
			data BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, tenantID string) (Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Config{}, ErrStoreClosed
	}
	return s.load(ctx, s.db, tenantID)
}

// Update implements Store. The read and write run in one transaction.
func (s *SQLiteStore) Update(ctx context.Context, tenantID string, patch Patch) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Config{}, ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Config{}, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	current, err := s.load(ctx, tx, tenantID)
	if err != nil {
		return Config{}, err
	}
	merged := patch.Apply(current)

	data, err := json.Marshal(merged)
	if err != nil {
		return Config{}, fmt.Errorf("encode tenant config: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tenant_configs (tenant_id, updated_at, data)
		VALUES (?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			updated_at = excluded.updated_at,
			data = excluded.data
	`, tenantID, time.Now().UTC().Format(time.RFC3339Nano), data); err != nil {
		return Config{}, fmt.Errorf("save tenant config: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Config{}, fmt.Errorf("commit update: %w", err)
	}
	return merged, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) load(ctx context.Context, q querier, tenantID string) (Config, error) {
	var data []byte
	err := q.QueryRowContext(ctx, `
		SELECT data FROM tenant_configs WHERE tenant_id = ?
	`, tenantID).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return Config{TenantID: tenantID}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("load tenant config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode tenant config: %w", err)
	}
	cfg.TenantID = tenantID
	return cfg, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
