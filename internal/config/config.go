package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/harun/nodeshell/pkg/hooks"
)

// Config represents the main nodeshell configuration
type Config struct {
	// Profile used when none is named on the command line
	DefaultProfile string `json:"default_profile" mapstructure:"default_profile"`

	// Connection profiles
	Profiles []ProfileConfig `json:"profiles" mapstructure:"profiles"`

	// Interactive shell settings
	Shell ShellConfig `json:"shell" mapstructure:"shell"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Data directory (history, sqlite files, logs)
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Audit log file, empty disables the audit log
	AuditLog string `json:"audit_log" mapstructure:"audit_log"`

	// Address serving /metrics, empty disables the endpoint
	MetricsAddr string `json:"metrics_addr" mapstructure:"metrics_addr"`
}

// ProfileConfig names a repository connection
type ProfileConfig struct {
	Name       string            `json:"name" mapstructure:"name"`
	Transport  string            `json:"transport" mapstructure:"transport"` // memory, sqlite, redis
	DSN        string            `json:"dsn,omitempty" mapstructure:"dsn"`
	Workspace  string            `json:"workspace,omitempty" mapstructure:"workspace"`
	UserID     string            `json:"user_id,omitempty" mapstructure:"user_id"`
	ReadOnly   bool              `json:"read_only,omitempty" mapstructure:"read_only"`
	Attributes map[string]string `json:"attributes,omitempty" mapstructure:"attributes"`
}

// ShellConfig holds interactive shell settings
type ShellConfig struct {
	AutoSave         bool              `json:"auto_save" mapstructure:"auto_save"`
	PrefixCompletion bool              `json:"prefix_completion" mapstructure:"prefix_completion"`
	Aliases          map[string]string `json:"aliases" mapstructure:"aliases"`
	Prompt           string            `json:"prompt" mapstructure:"prompt"`
	History          bool              `json:"history" mapstructure:"history"`
	HistorySize      int               `json:"history_size" mapstructure:"history_size"`
	Hooks            HooksConfig       `json:"hooks" mapstructure:"hooks"`
}

// HooksConfig holds scripts run on shell events
type HooksConfig struct {
	Enabled bool         `json:"enabled" mapstructure:"enabled"`
	Entries []hooks.Hook `json:"entries" mapstructure:"entries"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"service_name" mapstructure:"service_name"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		DefaultProfile: "local",
		Profiles: []ProfileConfig{
			{
				Name:      "local",
				Transport: "memory",
				Workspace: "default",
				UserID:    "admin",
			},
		},
		Shell: ShellConfig{
			Aliases: map[string]string{
				"ll": "ls",
			},
			Prompt:      "{user}@{workspace}:{cwd}> ",
			History:     true,
			HistorySize: 1000,
			Hooks: HooksConfig{
				Entries: []hooks.Hook{},
			},
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Tracing: TracingConfig{
			ServiceName: "nodeshell",
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Profile returns the named profile, or the default profile for ""
func (c *Config) Profile(name string) (*ProfileConfig, error) {
	if name == "" {
		name = c.DefaultProfile
	}
	if name == "" {
		return nil, fmt.Errorf("no profile selected and no default_profile configured")
	}
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			return &c.Profiles[i], nil
		}
	}
	return nil, fmt.Errorf("profile %q not found (available: %s)", name, strings.Join(c.ProfileNames(), ", "))
}

// ProfileNames returns the sorted profile names
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for _, p := range c.Profiles {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// UpsertProfile replaces the profile with the same name or appends it
func (c *Config) UpsertProfile(profile ProfileConfig) {
	for i := range c.Profiles {
		if c.Profiles[i].Name == profile.Name {
			c.Profiles[i] = profile
			return
		}
	}
	c.Profiles = append(c.Profiles, profile)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.Profiles) == 0 {
		return fmt.Errorf("at least one profile must be configured")
	}

	seen := make(map[string]bool, len(c.Profiles))
	for i, profile := range c.Profiles {
		if profile.Name == "" {
			return fmt.Errorf("profile %d: name is required", i)
		}
		if seen[profile.Name] {
			return fmt.Errorf("profile %s: duplicate name", profile.Name)
		}
		seen[profile.Name] = true
		if profile.Transport == "" {
			return fmt.Errorf("profile %s: transport is required", profile.Name)
		}
	}

	if c.DefaultProfile != "" && !seen[c.DefaultProfile] {
		return fmt.Errorf("default profile %q is not configured", c.DefaultProfile)
	}

	if c.Shell.HistorySize < 0 {
		return fmt.Errorf("shell.history_size must be >= 0")
	}

	return nil
}
