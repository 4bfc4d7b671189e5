package config

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// profileNameRegex keeps profile names usable as file names
var profileNameRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validator validates configuration values
type Validator struct {
	transports []string
}

// NewValidator creates a new validator. When transports is non-empty, profile
// transports must be one of them.
func NewValidator(transports ...string) *Validator {
	return &Validator{transports: transports}
}

// ValidateProfileName validates a profile name
func (v *Validator) ValidateProfileName(name string) error {
	if name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}
	if !profileNameRegex.MatchString(name) {
		return fmt.Errorf("invalid profile name %q (letters, digits, '-' and '_' only)", name)
	}
	return nil
}

// ValidateTransport validates a transport name
func (v *Validator) ValidateTransport(transport string) error {
	if transport == "" {
		return fmt.Errorf("transport cannot be empty")
	}
	if len(v.transports) == 0 {
		return nil
	}
	for _, known := range v.transports {
		if transport == known {
			return nil
		}
	}
	return fmt.Errorf("unknown transport: %s (must be one of: %s)", transport, strings.Join(v.transports, ", "))
}

// ValidateDSN validates a DSN for the transports that need one
func (v *Validator) ValidateDSN(transport, dsn string) error {
	switch transport {
	case "sqlite":
		if dsn == "" {
			return fmt.Errorf("sqlite transport needs a database file dsn")
		}
	case "redis":
		if !strings.HasPrefix(dsn, "redis://") && !strings.HasPrefix(dsn, "rediss://") {
			return fmt.Errorf("redis transport needs a redis:// or rediss:// dsn")
		}
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateAlias validates an alias name and expansion
func (v *Validator) ValidateAlias(name, expansion string) error {
	if name == "" || strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return fmt.Errorf("invalid alias name %q", name)
	}
	if strings.TrimSpace(expansion) == "" {
		return fmt.Errorf("alias %s: expansion cannot be empty", name)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := cfg.Validate(); err != nil {
		errors = append(errors, err)
	}

	for i, profile := range cfg.Profiles {
		if err := v.ValidateProfileName(profile.Name); err != nil {
			errors = append(errors, fmt.Errorf("profile %d: %w", i, err))
			continue
		}
		if err := v.ValidateTransport(profile.Transport); err != nil {
			errors = append(errors, fmt.Errorf("profile %s: %w", profile.Name, err))
			continue
		}
		if err := v.ValidateDSN(profile.Transport, profile.DSN); err != nil {
			errors = append(errors, fmt.Errorf("profile %s: %w", profile.Name, err))
		}
	}

	for name, expansion := range cfg.Shell.Aliases {
		if err := v.ValidateAlias(name, expansion); err != nil {
			errors = append(errors, err)
		}
	}

	if cfg.Shell.Hooks.Enabled {
		for i, hook := range cfg.Shell.Hooks.Entries {
			if !hook.Enabled {
				continue
			}
			if strings.TrimSpace(hook.Event) == "" {
				errors = append(errors, fmt.Errorf("hook %d: event is required", i))
			}
			if strings.TrimSpace(hook.Script) == "" {
				errors = append(errors, fmt.Errorf("hook %d: script is required", i))
			}
			if hook.Timeout < 0 {
				errors = append(errors, fmt.Errorf("hook %d: timeout must be >= 0", i))
			}
		}
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
