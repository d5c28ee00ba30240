package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Role declares what kind of process is running.
type Role string

// Process roles.
const (
	RoleServer Role = "server"
	RoleWorker Role = "worker"
)

// ErrRoleUndeclared is returned when the process role is missing or invalid.
var ErrRoleUndeclared = errors.New("process role not declared: set process_role to \"server\" or \"worker\"")

// Settings holds every tunable of the dispatch core.
type Settings struct {
	// ProcessRole must be "server" or "worker". There is no default.
	ProcessRole Role `yaml:"process_role" json:"process_role" env:"PROCESS_ROLE"`

	// PhoneRegion is the ISO 3166 region used to parse national phone numbers.
	PhoneRegion string `yaml:"phone_region" json:"phone_region" env:"PHONE_REGION"`

	// ReminderCooldown suppresses repeated "subscription expired" reminders.
	ReminderCooldown time.Duration `yaml:"reminder_cooldown" json:"reminder_cooldown" env:"REMINDER_COOLDOWN"`

	// TransitionHistory bounds the transition dedup set.
	TransitionHistory int `yaml:"transition_history" json:"transition_history" env:"TRANSITION_HISTORY"`

	// FanoutConcurrency limits concurrent per-target deliveries in one dispatch.
	FanoutConcurrency int `yaml:"fanout_concurrency" json:"fanout_concurrency" env:"FANOUT_CONCURRENCY"`

	SQLitePath string `yaml:"sqlite_path" json:"sqlite_path" env:"SQLITE_PATH"`
	RedisAddr  string `yaml:"redis_addr" json:"redis_addr" env:"REDIS_ADDR"`

	SMSGatewayURL  string        `yaml:"sms_gateway_url" json:"sms_gateway_url" env:"SMS_GATEWAY_URL"`
	PushGatewayURL string        `yaml:"push_gateway_url" json:"push_gateway_url" env:"PUSH_GATEWAY_URL"`
	GatewayToken   string        `yaml:"gateway_token" json:"gateway_token" env:"GATEWAY_TOKEN"`
	GatewayTimeout time.Duration `yaml:"gateway_timeout" json:"gateway_timeout" env:"GATEWAY_TIMEOUT"`

	LogLevel string `yaml:"log_level" json:"log_level" env:"LOG_LEVEL"`
}

// Defaults returns settings with every optional field populated.
// ProcessRole is deliberately left empty.
func Defaults() Settings {
	return Settings{
		PhoneRegion:       "US",
		ReminderCooldown:  24 * time.Hour,
		TransitionHistory: 200,
		FanoutConcurrency: 8,
		SQLitePath:        "notifyflow.db",
		GatewayTimeout:    10 * time.Second,
		LogLevel:          "info",
	}
}

// IsWorkerProcess reports whether the process was declared a worker.
// It returns ErrRoleUndeclared when no valid role was declared.
func (s Settings) IsWorkerProcess() (bool, error) {
	switch s.ProcessRole {
	case RoleWorker:
		return true, nil
	case RoleServer:
		return false, nil
	default:
		return false, fmt.Errorf("%w (got %q)", ErrRoleUndeclared, string(s.ProcessRole))
	}
}

// Validate checks settings that would otherwise fail later at runtime.
func (s Settings) Validate() error {
	if _, err := s.IsWorkerProcess(); err != nil {
		return err
	}
	if s.TransitionHistory <= 0 {
		return fmt.Errorf("transition_history must be positive, got %d", s.TransitionHistory)
	}
	if s.FanoutConcurrency <= 0 {
		return fmt.Errorf("fanout_concurrency must be positive, got %d", s.FanoutConcurrency)
	}
	if len(s.PhoneRegion) != 2 {
		return fmt.Errorf("phone_region must be a two-letter region code, got %q", s.PhoneRegion)
	}
	return nil
}

// SlogLevel converts LogLevel to a slog.Level, defaulting to Info.
func (s Settings) SlogLevel() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SQLiteDSN returns the data source name for SQLitePath. File databases get
// a busy timeout because several stores open their own connection to the
// same file.
func (s Settings) SQLiteDSN() string {
	if s.SQLitePath == "" || s.SQLitePath == ":memory:" || strings.Contains(s.SQLitePath, "?") {
		return s.SQLitePath
	}
	return s.SQLitePath + "?_pragma=busy_timeout(5000)"
}
