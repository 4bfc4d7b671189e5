package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/harun/nodeshell/pkg/hooks"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. NODESHELL_DEFAULT_PROFILE
	EnvPrefix = "NODESHELL"

	configDirName  = ".nodeshell"
	configFileName = "nodeshell.json"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file. A missing file yields the defaults.
func (l *Loader) Load() (*Config, error) {
	configPath, err := l.resolvePath()
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		if err := applyDefaults(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := ValidateSchema(data); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Lists and maps from the file replace the defaults instead of merging
	if v.IsSet("profiles") {
		cfg.Profiles = nil
	}
	if v.IsSet("shell.aliases") {
		cfg.Shell.Aliases = nil
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills the paths derived from the data directory
func applyDefaults(cfg *Config) error {
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, configDirName)
	}

	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "nodeshell.log")
	}

	return nil
}

// Save saves the configuration to file
func (l *Loader) Save(cfg *Config) error {
	configPath, err := l.resolvePath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	normalize(cfg)

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("default_profile", cfg.DefaultProfile)
	v.Set("profiles", cfg.Profiles)
	v.Set("shell", cfg.Shell)
	v.Set("logging", cfg.Logging)
	v.Set("tracing", cfg.Tracing)
	v.Set("data_dir", cfg.DataDir)
	v.Set("audit_log", cfg.AuditLog)
	v.Set("metrics_addr", cfg.MetricsAddr)

	if err := v.WriteConfig(); err != nil {
		if os.IsNotExist(err) {
			if err := v.SafeWriteConfig(); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
		} else {
			return fmt.Errorf("failed to write config file: %w", err)
		}
	}

	return nil
}

// normalize replaces nil lists and maps, which encode as null and fail the schema
func normalize(cfg *Config) {
	if cfg.Profiles == nil {
		cfg.Profiles = []ProfileConfig{}
	}
	if cfg.Shell.Aliases == nil {
		cfg.Shell.Aliases = map[string]string{}
	}
	if cfg.Shell.Hooks.Entries == nil {
		cfg.Shell.Hooks.Entries = []hooks.Hook{}
	}
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	path, err := l.resolvePath()
	if err != nil {
		return ""
	}
	return path
}

func (l *Loader) resolvePath() (string, error) {
	if l.configPath != "" {
		return l.configPath, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
