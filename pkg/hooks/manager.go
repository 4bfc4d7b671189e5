// Package hooks runs user scripts when shell events fire.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EnvPrefix prefixes every variable handed to a hook script
const EnvPrefix = "NODESHELL_HOOK_"

// Hook is a script bound to a shell event. When Command is set the hook only
// runs for events about that command.
type Hook struct {
	ID      string        `json:"id" mapstructure:"id"`
	Event   string        `json:"event" mapstructure:"event"`
	Command string        `json:"command,omitempty" mapstructure:"command"`
	Script  string        `json:"script" mapstructure:"script"`
	Timeout time.Duration `json:"timeout,omitempty" mapstructure:"timeout"`
	Enabled bool          `json:"enabled" mapstructure:"enabled"`
}

// Config configures a hook Manager.
type Config struct {
	Enabled bool
	Hooks   []Hook
	Logger  zerolog.Logger
}

// Manager executes configured hooks for shell events.
type Manager struct {
	enabled bool
	logger  zerolog.Logger

	mu           sync.RWMutex
	hooksByEvent map[string][]Hook
}

// NewManager creates a hook manager.
func NewManager(cfg Config) (*Manager, error) {
	manager := &Manager{
		enabled:      cfg.Enabled,
		logger:       cfg.Logger.With().Str("component", "hooks").Logger(),
		hooksByEvent: make(map[string][]Hook),
	}

	if !cfg.Enabled {
		return manager, nil
	}

	for _, hook := range cfg.Hooks {
		if !hook.Enabled {
			continue
		}
		event := strings.TrimSpace(hook.Event)
		if event == "" {
			return nil, fmt.Errorf("hook event is required")
		}
		if strings.TrimSpace(hook.Script) == "" {
			return nil, fmt.Errorf("hook script is required for event %q", event)
		}
		manager.hooksByEvent[event] = append(manager.hooksByEvent[event], hook)
	}

	return manager, nil
}

// Events returns the sorted names of events with at least one hook
func (m *Manager) Events() []string {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]string, 0, len(m.hooksByEvent))
	for event := range m.hooksByEvent {
		events = append(events, event)
	}
	sort.Strings(events)
	return events
}

// Trigger executes the hooks registered for event. command narrows the set to
// hooks without a command filter or with a matching one.
func (m *Manager) Trigger(ctx context.Context, event, command string, data map[string]interface{}) error {
	if m == nil || !m.enabled {
		return nil
	}
	event = strings.TrimSpace(event)
	if event == "" {
		return fmt.Errorf("event is required")
	}

	m.mu.RLock()
	hooks := append([]Hook(nil), m.hooksByEvent[event]...)
	m.mu.RUnlock()

	var errs []error
	for _, hook := range hooks {
		if hook.Command != "" && hook.Command != command {
			continue
		}
		if err := m.executeHook(ctx, event, command, hook, data); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (m *Manager) executeHook(ctx context.Context, event, command string, hook Hook, data map[string]interface{}) error {
	hookID := hook.ID
	if strings.TrimSpace(hookID) == "" {
		hookID = event
	}

	runCtx := ctx
	cancel := func() {}
	if hook.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, hook.Timeout)
	}
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", hook.Script)
	cmd.Env = buildHookEnvironment(event, command, data)

	start := time.Now()
	output, err := cmd.CombinedOutput()
	outputText := strings.TrimSpace(string(output))
	if err != nil {
		if outputText != "" {
			return fmt.Errorf("hook %s failed: %w: %s", hookID, err, outputText)
		}
		return fmt.Errorf("hook %s failed: %w", hookID, err)
	}

	m.logger.Debug().
		Str("event", event).
		Str("hook_id", hookID).
		Dur("duration", time.Since(start)).
		Str("output", outputText).
		Msg("Hook executed")

	return nil
}

func buildHookEnvironment(event, command string, data map[string]interface{}) []string {
	env := append([]string{}, os.Environ()...)
	env = append(env, EnvPrefix+"EVENT="+event)
	if command != "" {
		env = append(env, EnvPrefix+"COMMAND="+command)
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		env = append(env, EnvPrefix+"DATA_"+normalizeEnvKey(key)+"="+fmt.Sprintf("%v", data[key]))
	}
	return env
}

func normalizeEnvKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "UNKNOWN"
	}

	var b strings.Builder
	b.Grow(len(key))
	for _, r := range strings.ToUpper(key) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}
