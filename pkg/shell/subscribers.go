package shell

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/harun/nodeshell/internal/observability"
	"github.com/harun/nodeshell/pkg/hooks"
)

// AliasSubscriber expands configured aliases on command.pre. Expansion is
// applied once; an alias that names another alias is not expanded again.
func AliasSubscriber(aliases map[string]string, logger zerolog.Logger) EventHandler {
	return func(ctx context.Context, payload interface{}) {
		p, ok := payload.(*CommandPayload)
		if !ok {
			return
		}
		expansion, ok := aliases[p.Name]
		if !ok {
			return
		}
		tokens, err := Tokenize(expansion)
		if err != nil || len(tokens) == 0 {
			logger.Warn().Err(err).Str("alias", p.Name).Msg("Ignoring invalid alias")
			return
		}
		p.Name = tokens[0]
		p.Args = append(tokens[1:], p.Args...)
	}
}

// Saver is the part of a session the auto-save subscriber needs
type Saver interface {
	HasPendingChanges() bool
	Save(ctx context.Context) error
}

// AutoSaveSubscriber saves after every successful mutating command.
// A failed save is reported on out; the changes stay pending.
func AutoSaveSubscriber(saver Saver, out io.Writer, logger zerolog.Logger) EventHandler {
	return func(ctx context.Context, payload interface{}) {
		p, ok := payload.(*CommandPayload)
		if !ok || !p.Mutating() || !saver.HasPendingChanges() {
			return
		}
		if err := saver.Save(ctx); err != nil {
			logger.Error().Err(err).Str("command", p.Name).Msg("Auto-save failed")
			fmt.Fprintf(out, "auto-save failed: %v\n", err)
			return
		}
		logger.Debug().Str("command", p.Name).Msg("Auto-saved")
	}
}

// AuditSubscriber records mutating commands in the audit log. Register it for
// both command.post and command.error.
func AuditSubscriber(actor func() string) EventHandler {
	return func(ctx context.Context, payload interface{}) {
		p, ok := payload.(*CommandPayload)
		if !ok || !p.Mutating() {
			return
		}
		status := "success"
		meta := map[string]interface{}{
			"args":        p.Args,
			"duration_ms": p.Duration.Milliseconds(),
		}
		if p.Err != nil {
			status = "failure"
			meta["error"] = p.Err.Error()
		}
		observability.RecordCommandAudit(ctx, p.Name, actor(), status, meta)
	}
}

// HookSubscriber forwards event to the hook manager. Hook failures are
// logged and never fail the command.
func HookSubscriber(manager *hooks.Manager, event Event, logger zerolog.Logger) EventHandler {
	return func(ctx context.Context, payload interface{}) {
		var (
			command string
			data    map[string]interface{}
		)
		switch p := payload.(type) {
		case *CommandPayload:
			command = p.Name
			data = map[string]interface{}{
				"line": p.Line,
				"args": strings.Join(p.Args, " "),
			}
			if p.Duration > 0 {
				data["duration_ms"] = p.Duration.Milliseconds()
			}
			if p.Err != nil {
				data["error"] = p.Err.Error()
			}
		case CwdPayload:
			command = p.Command
			data = map[string]interface{}{"old_cwd": p.From, "new_cwd": p.To}
		case WorkspacePayload:
			command = p.Command
			data = map[string]interface{}{"old_workspace": p.From, "new_workspace": p.To}
		default:
			return
		}

		if err := manager.Trigger(ctx, string(event), command, data); err != nil {
			logger.Warn().Err(err).Str("event", string(event)).Str("command", command).Msg("Hook failed")
		}
	}
}
