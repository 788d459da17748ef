// Package config loads the procwatch runtime configuration. The policy
// document itself lives in internal/policy; this file covers everything
// around it: paths, timeouts, the intake listener, and alert webhooks.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/procwatch/procwatch/internal/alert"
)

// Duration wraps time.Duration so YAML scalars like "90s" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the daemon-side runtime configuration.
type Config struct {
	PolicyPath      string         `yaml:"policy_path"`
	AuditDB         string         `yaml:"audit_db"`
	ApprovalDir     string         `yaml:"approval_dir"`
	ApprovalTimeout Duration       `yaml:"approval_timeout"`
	Listen          string         `yaml:"listen"`
	Alerts          []alert.Config `yaml:"alerts"`
}

// Default returns the built-in runtime configuration.
func Default() *Config {
	base := baseDir()
	return &Config{
		PolicyPath:      filepath.Join(base, "policy.json"),
		AuditDB:         filepath.Join(base, "audit.db"),
		ApprovalDir:     filepath.Join(base, "pending"),
		ApprovalTimeout: Duration(2 * time.Minute),
		Listen:          "127.0.0.1:7077",
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(baseDir(), "config.yaml")
}

// Load reads a YAML config file. A missing file yields the defaults;
// malformed YAML is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func baseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "procwatch")
	}
	return filepath.Join(home, ".procwatch")
}
