package shell

import (
	"context"
	"sync"
	"time"
)

// Event names a shell lifecycle event
type Event string

const (
	// EventCommandPre fires before dispatch; handlers may rewrite the payload
	EventCommandPre Event = "command.pre"
	// EventCommandPost fires after a command succeeded
	EventCommandPost Event = "command.post"
	// EventCommandError fires after a command failed
	EventCommandError Event = "command.error"
	// EventCwdChanged fires when the working location moved
	EventCwdChanged Event = "cwd.changed"
	// EventWorkspaceChanged fires after switching workspaces
	EventWorkspaceChanged Event = "workspace.changed"
)

// Events lists every event the shell emits
var Events = []Event{EventCommandPre, EventCommandPost, EventCommandError, EventCwdChanged, EventWorkspaceChanged}

// CommandPayload is the payload of the command events. It is shared by
// pointer so command.pre handlers can rewrite Name and Args.
type CommandPayload struct {
	Line      string
	Name      string
	Args      []string
	Command   *Command
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

// Mutating reports whether the resolved command changes content
func (p *CommandPayload) Mutating() bool {
	return p.Command != nil && p.Command.Mutating
}

// CwdPayload is the payload of EventCwdChanged
type CwdPayload struct {
	Command   string
	From      string
	To        string
	Timestamp time.Time
}

// WorkspacePayload is the payload of EventWorkspaceChanged
type WorkspacePayload struct {
	Command   string
	From      string
	To        string
	Timestamp time.Time
}

// EventHandler handles one shell event
type EventHandler func(ctx context.Context, payload interface{})

// Emitter delivers shell events to subscribers. Handlers run synchronously
// in registration order on the caller's goroutine.
type Emitter struct {
	mu        sync.RWMutex
	listeners map[Event][]EventHandler
}

// NewEmitter creates an emitter with no listeners
func NewEmitter() *Emitter {
	return &Emitter{
		listeners: make(map[Event][]EventHandler),
	}
}

// On registers handler for event
func (e *Emitter) On(event Event, handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners[event] = append(e.listeners[event], handler)
}

// Emit runs every handler registered for event
func (e *Emitter) Emit(ctx context.Context, event Event, payload interface{}) {
	e.mu.RLock()
	handlers := append([]EventHandler(nil), e.listeners[event]...)
	e.mu.RUnlock()

	for _, handler := range handlers {
		handler(ctx, payload)
	}
}

// ListenerCount returns the number of handlers registered for event
func (e *Emitter) ListenerCount(event Event) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[event])
}

// RemoveAllListeners removes all event listeners
func (e *Emitter) RemoveAllListeners() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = make(map[Event][]EventHandler)
}
