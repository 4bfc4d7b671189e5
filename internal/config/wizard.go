package config

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Wizard provides an interactive profile wizard
type Wizard struct {
	reader    *bufio.Reader
	out       io.Writer
	validator *Validator
}

// NewWizard creates a wizard reading answers from in and prompting on out.
// transports lists the transport names offered.
func NewWizard(in io.Reader, out io.Writer, transports ...string) *Wizard {
	return &Wizard{
		reader:    bufio.NewReader(in),
		out:       out,
		validator: NewValidator(transports...),
	}
}

// Run asks for one connection profile and adds or replaces it in cfg
func (w *Wizard) Run(cfg *Config) (*Config, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	fmt.Fprintln(w.out, "=== nodeshell profile wizard ===")
	fmt.Fprintln(w.out)

	name, err := w.ask("Profile name", "local", w.validator.ValidateProfileName)
	if err != nil {
		return nil, err
	}

	transports := "memory/sqlite/redis"
	if len(w.validator.transports) > 0 {
		transports = strings.Join(w.validator.transports, "/")
	}
	transport, err := w.ask("Transport ("+transports+")", "memory", w.validator.ValidateTransport)
	if err != nil {
		return nil, err
	}

	profile := ProfileConfig{Name: name, Transport: transport}

	switch transport {
	case "sqlite":
		defaultDSN := filepath.Join(cfg.DataDir, name+".db")
		if cfg.DataDir == "" {
			defaultDSN = name + ".db"
		}
		profile.DSN, err = w.ask("Database file", defaultDSN, func(dsn string) error {
			return w.validator.ValidateDSN(transport, dsn)
		})
	case "redis":
		profile.DSN, err = w.ask("Redis URL", "redis://localhost:6379/0", func(dsn string) error {
			return w.validator.ValidateDSN(transport, dsn)
		})
	}
	if err != nil {
		return nil, err
	}

	if profile.Workspace, err = w.ask("Workspace", "default", nil); err != nil {
		return nil, err
	}
	if profile.UserID, err = w.ask("User ID", "admin", nil); err != nil {
		return nil, err
	}
	if profile.ReadOnly, err = w.confirm("Read-only session?", false); err != nil {
		return nil, err
	}

	makeDefault, err := w.confirm("Use as default profile?", cfg.DefaultProfile == "" || cfg.DefaultProfile == name)
	if err != nil {
		return nil, err
	}

	cfg.UpsertProfile(profile)
	if makeDefault {
		cfg.DefaultProfile = name
	}

	fmt.Fprintln(w.out)
	fmt.Fprintf(w.out, "Profile %s saved.\n", name)
	return cfg, nil
}

// ask prompts until validate accepts the answer. Empty input selects def.
func (w *Wizard) ask(prompt, def string, validate func(string) error) (string, error) {
	for {
		if def != "" {
			fmt.Fprintf(w.out, "%s [%s]: ", prompt, def)
		} else {
			fmt.Fprintf(w.out, "%s: ", prompt)
		}

		answer, err := w.readLine()
		if err != nil {
			return "", err
		}
		if answer == "" {
			answer = def
		}
		if validate != nil {
			if err := validate(answer); err != nil {
				fmt.Fprintf(w.out, "Error: %v\n", err)
				continue
			}
		}
		return answer, nil
	}
}

func (w *Wizard) confirm(prompt string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	fmt.Fprintf(w.out, "%s (%s): ", prompt, hint)

	answer, err := w.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}
