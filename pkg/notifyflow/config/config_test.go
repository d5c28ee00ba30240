package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/randalmurphal/notifyflow/pkg/notifyflow/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIsWorkerProcess verifies the role is never inferred.
func TestIsWorkerProcess(t *testing.T) {
	tests := []struct {
		name    string
		role    config.Role
		want    bool
		wantErr bool
	}{
		{"worker", config.RoleWorker, true, false},
		{"server", config.RoleServer, false, false},
		{"unset", "", false, true},
		{"typo", "wrker", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := config.Defaults()
			s.ProcessRole = tt.role
			got, err := s.IsWorkerProcess()
			if tt.wantErr {
				assert.ErrorIs(t, err, config.ErrRoleUndeclared)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromYAML(t *testing.T) {
	s, err := config.FromYAML([]byte(`
process_role: worker
phone_region: GB
reminder_cooldown: 12h
fanout_concurrency: 4
`))
	require.NoError(t, err)

	assert.Equal(t, config.RoleWorker, s.ProcessRole)
	assert.Equal(t, "GB", s.PhoneRegion)
	assert.Equal(t, 12*time.Hour, s.ReminderCooldown)
	assert.Equal(t, 4, s.FanoutConcurrency)
	assert.Equal(t, 200, s.TransitionHistory, "unset fields keep defaults")
}

func TestFromJSON(t *testing.T) {
	tests := []struct {
		name string
		data string
		want time.Duration
	}{
		{"string duration", `{"process_role":"server","reminder_cooldown":"90m"}`, 90 * time.Minute},
		{"seconds", `{"process_role":"server","reminder_cooldown":30}`, 30 * time.Second},
		{"missing", `{"process_role":"server"}`, 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := config.FromJSON([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, config.RoleServer, s.ProcessRole)
			assert.Equal(t, tt.want, s.ReminderCooldown)
		})
	}

	_, err := config.FromJSON([]byte(`{"reminder_cooldown":true}`))
	assert.Error(t, err)
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "notifyflow.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("process_role: server\n"), 0o600))
	s, err := config.FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, config.RoleServer, s.ProcessRole)

	txtPath := filepath.Join(dir, "notifyflow.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("x"), 0o600))
	_, err = config.FromFile(txtPath)
	assert.Error(t, err)

	_, err = config.FromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notifyflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("process_role: server\nphone_region: US\n"), 0o600))

	t.Setenv("NOTIFYFLOW_PROCESS_ROLE", "worker")
	t.Setenv("NOTIFYFLOW_REMINDER_COOLDOWN", "2h")

	s, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.RoleWorker, s.ProcessRole)
	assert.Equal(t, 2*time.Hour, s.ReminderCooldown)
	assert.Equal(t, "US", s.PhoneRegion)
}

func TestLoadFailsFastWithoutRole(t *testing.T) {
	_, err := config.Load("")
	assert.ErrorIs(t, err, config.ErrRoleUndeclared)
}

func TestValidate(t *testing.T) {
	s := config.Defaults()
	s.ProcessRole = config.RoleServer
	require.NoError(t, s.Validate())

	bad := s
	bad.TransitionHistory = 0
	assert.Error(t, bad.Validate())

	bad = s
	bad.PhoneRegion = "USA"
	assert.Error(t, bad.Validate())
}

func TestSlogLevel(t *testing.T) {
	s := config.Defaults()
	assert.Equal(t, slog.LevelInfo, s.SlogLevel())
	s.LogLevel = "DEBUG"
	assert.Equal(t, slog.LevelDebug, s.SlogLevel())
	s.LogLevel = "warn"
	assert.Equal(t, slog.LevelWarn, s.SlogLevel())
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"notifyflow.db", "notifyflow.db?_pragma=busy_timeout(5000)"},
		{":memory:", ":memory:"},
		{"file.db?mode=ro", "file.db?mode=ro"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			s := config.Defaults()
			s.SQLitePath = tt.path
			assert.Equal(t, tt.want, s.SQLiteDSN())
		})
	}

	t.Run("env override", func(t *testing.T) {
		t.Setenv("NOTIFYFLOW_SQLITE_PATH", "/var/lib/notifyflow/state.db")
		s := config.Defaults()
		require.NoError(t, s.ApplyEnv())
		assert.Equal(t, "/var/lib/notifyflow/state.db?_pragma=busy_timeout(5000)", s.SQLiteDSN())
	})
}
