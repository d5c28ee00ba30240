package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "NOTIFYFLOW_"

// FromFile loads settings from a file, auto-detecting format by extension.
// Supported extensions: .yaml, .yml, .json
func FromFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Settings{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// FromYAML parses YAML data over Defaults().
func FromYAML(data []byte) (Settings, error) {
	s := Defaults()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse yaml: %w", err)
	}
	return s, nil
}

// FromJSON parses JSON data over Defaults().
// Durations are given as strings ("30s") or integer seconds.
func FromJSON(data []byte) (Settings, error) {
	var raw struct {
		Settings
		ReminderCooldown any `json:"reminder_cooldown"`
		GatewayTimeout   any `json:"gateway_timeout"`
	}
	raw.Settings = Defaults()
	if err := json.Unmarshal(data, &raw); err != nil {
		return Settings{}, fmt.Errorf("parse json: %w", err)
	}

	s := raw.Settings
	var err error
	if s.ReminderCooldown, err = jsonDuration(raw.ReminderCooldown, s.ReminderCooldown); err != nil {
		return Settings{}, fmt.Errorf("parse json: reminder_cooldown: %w", err)
	}
	if s.GatewayTimeout, err = jsonDuration(raw.GatewayTimeout, s.GatewayTimeout); err != nil {
		return Settings{}, fmt.Errorf("parse json: gateway_timeout: %w", err)
	}
	return s, nil
}

// ApplyEnv overrides fields from NOTIFYFLOW_* environment variables.
// Unset variables leave the current value untouched.
func (s *Settings) ApplyEnv() error {
	if err := env.ParseWithOptions(s, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the optional file at path, applies env overrides, and validates.
// An empty path skips the file and starts from Defaults().
func Load(path string) (Settings, error) {
	s := Defaults()
	if path != "" {
		loaded, err := FromFile(path)
		if err != nil {
			return Settings{}, err
		}
		s = loaded
	}
	if err := s.ApplyEnv(); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// jsonDuration accepts a duration string or a number of seconds.
func jsonDuration(v any, defaultVal time.Duration) (time.Duration, error) {
	switch val := v.(type) {
	case nil:
		return defaultVal, nil
	case string:
		return time.ParseDuration(val)
	case float64:
		return time.Duration(val * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("unsupported duration value %v", v)
	}
}
