package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/nodeshell/internal/observability"
	"github.com/harun/nodeshell/internal/tracing"
	"github.com/harun/nodeshell/pkg/content"
	"github.com/harun/nodeshell/pkg/hooks"
	"github.com/harun/nodeshell/pkg/session"
)

const tracerName = "nodeshell.shell"

// DefaultPrompt renders as user@workspace:cwd>
const DefaultPrompt = "{user}@{workspace}:{cwd}> "

var (
	// ErrUnknownCommand is returned for a command name with no handler
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUsage is returned when a command gets the wrong arguments
	ErrUsage = errors.New("usage")
	// ErrPendingChanges is returned when an operation needs a clean session
	ErrPendingChanges = errors.New("session has unsaved changes")
)

// Config configures a Shell
type Config struct {
	// Session is the logged-in session the shell starts with. The shell
	// takes ownership and logs it out on Close.
	Session content.Session
	// Credentials are reused to log into other workspaces
	Credentials      content.Credentials
	Profile          string
	Out              io.Writer
	Logger           zerolog.Logger
	Aliases          map[string]string
	AutoSave         bool
	PrefixCompletion bool
	Prompt           string
	History          *History
	Hooks            *hooks.Manager
	Finder           session.Finder
}

// Shell dispatches command lines against a PathAwareSession
type Shell struct {
	session  *session.PathAwareSession
	creds    content.Credentials
	profile  string
	out      io.Writer
	logger   zerolog.Logger
	prompt   string
	events   *Emitter
	commands map[string]*Command
	names    []string
	history  *History
	exited   bool
}

// New creates a shell and wires its subscribers
func New(cfg Config) (*Shell, error) {
	if cfg.Session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	if cfg.Profile == "" {
		cfg.Profile = "default"
	}

	logger := cfg.Logger.With().Str("component", "shell").Str("profile", cfg.Profile).Logger()

	opts := []session.Option{
		session.WithPrefixCompletion(cfg.PrefixCompletion),
		session.WithLogger(logger),
	}
	if cfg.Finder != nil {
		opts = append(opts, session.WithFinder(cfg.Finder))
	}

	s := &Shell{
		session:  session.New(cfg.Session, opts...),
		creds:    cfg.Credentials,
		profile:  cfg.Profile,
		out:      cfg.Out,
		logger:   logger,
		prompt:   cfg.Prompt,
		events:   NewEmitter(),
		commands: make(map[string]*Command),
		history:  cfg.History,
	}
	if s.creds.UserID == "" {
		s.creds.UserID = cfg.Session.GetUserID()
	}

	for _, cmd := range builtinCommands() {
		if err := s.Register(cmd); err != nil {
			return nil, err
		}
	}

	if len(cfg.Aliases) > 0 {
		s.events.On(EventCommandPre, AliasSubscriber(cfg.Aliases, logger))
	}
	if cfg.AutoSave {
		s.events.On(EventCommandPost, AutoSaveSubscriber(s.session, s.out, logger))
	}
	audit := AuditSubscriber(s.session.GetUserID)
	s.events.On(EventCommandPost, audit)
	s.events.On(EventCommandError, audit)
	if s.history != nil {
		s.events.On(EventCommandPost, s.recordHistory)
		s.events.On(EventCommandError, s.recordHistory)
	}
	if cfg.Hooks != nil {
		for _, event := range Events {
			s.events.On(event, HookSubscriber(cfg.Hooks, event, logger))
		}
	}

	return s, nil
}

// Register adds a command under its name and aliases
func (s *Shell) Register(cmd *Command) error {
	if cmd == nil || cmd.Name == "" || cmd.Run == nil {
		return fmt.Errorf("command name and handler are required")
	}
	for _, name := range append([]string{cmd.Name}, cmd.Aliases...) {
		if _, exists := s.commands[name]; exists {
			return fmt.Errorf("command %q already registered", name)
		}
		s.commands[name] = cmd
	}
	s.names = append(s.names, cmd.Name)
	sort.Strings(s.names)
	return nil
}

// Session returns the path-aware session commands run against
func (s *Shell) Session() *session.PathAwareSession {
	return s.session
}

// Events returns the shell's event emitter
func (s *Shell) Events() *Emitter {
	return s.events
}

// Exited reports whether an exit command ran
func (s *Shell) Exited() bool {
	return s.exited
}

// Prompt renders the configured prompt template
func (s *Shell) Prompt() string {
	return strings.NewReplacer(
		"{user}", s.session.GetUserID(),
		"{workspace}", s.session.GetWorkspace().Name(),
		"{cwd}", s.session.GetCwd(),
		"{profile}", s.profile,
	).Replace(s.prompt)
}

// Execute tokenizes and runs one command line
func (s *Shell) Execute(ctx context.Context, line string) (err error) {
	tokens, err := Tokenize(line)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}

	ctx = tracing.NewCommandContext(ctx)
	ctx = tracing.WithProfile(ctx, s.profile)
	ctx = tracing.WithWorkspace(ctx, s.session.GetWorkspace().Name())
	ctx = tracing.WithUserID(ctx, s.session.GetUserID())
	logger := tracing.LoggerFromContext(ctx, s.logger)

	payload := &CommandPayload{
		Line:      line,
		Name:      tokens[0],
		Args:      tokens[1:],
		Timestamp: time.Now(),
	}
	s.events.Emit(ctx, EventCommandPre, payload)

	cmd, ok := s.commands[payload.Name]
	if !ok {
		payload.Err = fmt.Errorf("%w: %s (try 'help')", ErrUnknownCommand, payload.Name)
		s.events.Emit(ctx, EventCommandError, payload)
		return payload.Err
	}
	payload.Command = cmd

	ctx, span := tracing.StartSpan(ctx, tracerName, "shell."+cmd.Name,
		attribute.String("command", cmd.Name),
		attribute.Int("args", len(payload.Args)),
	)
	start := time.Now()
	err = cmd.invoke(ctx, s, payload.Args)
	payload.Duration = time.Since(start)
	payload.Err = err
	tracing.EndSpan(span, err)
	observability.RecordCommand(cmd.Name, payload.Duration, err == nil)

	if err != nil {
		logger.Debug().Err(err).Str("command", cmd.Name).Msg("Command failed")
		s.events.Emit(ctx, EventCommandError, payload)
		return err
	}
	logger.Debug().Str("command", cmd.Name).Dur("duration", payload.Duration).Msg("Command executed")
	s.events.Emit(ctx, EventCommandPost, payload)
	return nil
}

// Run reads command lines from in until exit, EOF or ctx cancellation.
// Command errors are printed and the loop continues.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for !s.exited {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(s.out, s.Prompt())
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			break
		}
		if err := s.Execute(ctx, scanner.Text()); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}

	if s.session.HasPendingChanges() {
		fmt.Fprintln(s.out, "warning: unsaved changes were not saved")
	}
	return scanner.Err()
}

// Close logs out the current session
func (s *Shell) Close() {
	s.session.Logout()
	s.events.RemoveAllListeners()
}

func (s *Shell) recordHistory(ctx context.Context, payload interface{}) {
	p, ok := payload.(*CommandPayload)
	if !ok || p.Name == "history" {
		return
	}
	status := "success"
	if p.Err != nil {
		status = "failure"
	}
	entry := HistoryEntry{
		Line:      strings.TrimSpace(p.Line),
		Cwd:       s.session.GetCwd(),
		Workspace: s.session.GetWorkspace().Name(),
		Status:    status,
		Timestamp: p.Timestamp,
	}
	if err := s.history.Append(ctx, s.profile, entry); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record history")
	}
}

func (s *Shell) emitCwdChange(ctx context.Context, command, from string) {
	to := s.session.GetCwd()
	if to == from {
		return
	}
	s.events.Emit(ctx, EventCwdChanged, CwdPayload{Command: command, From: from, To: to, Timestamp: time.Now()})
}
