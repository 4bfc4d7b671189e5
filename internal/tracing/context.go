package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// CommandIDKey is the context key for the id of one shell command execution
	CommandIDKey ContextKey = "command_id"
	// ProfileKey is the context key for the connection profile name
	ProfileKey ContextKey = "profile"
	// WorkspaceKey is the context key for the repository workspace
	WorkspaceKey ContextKey = "workspace"
	// UserIDKey is the context key for the session user
	UserIDKey ContextKey = "user_id"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID   string
	CommandID string
	Profile   string
	Workspace string
	UserID    string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewCommandID generates a new command ID
func NewCommandID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithCommandID adds a command ID to the context
func WithCommandID(ctx context.Context, commandID string) context.Context {
	return context.WithValue(ctx, CommandIDKey, commandID)
}

// WithProfile adds a profile name to the context
func WithProfile(ctx context.Context, profile string) context.Context {
	return context.WithValue(ctx, ProfileKey, profile)
}

// WithWorkspace adds a workspace name to the context
func WithWorkspace(ctx context.Context, workspace string) context.Context {
	return context.WithValue(ctx, WorkspaceKey, workspace)
}

// WithUserID adds a user id to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func getString(ctx context.Context, key ContextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string { return getString(ctx, TraceIDKey) }

// GetCommandID retrieves the command ID from the context
func GetCommandID(ctx context.Context) string { return getString(ctx, CommandIDKey) }

// GetProfile retrieves the profile name from the context
func GetProfile(ctx context.Context) string { return getString(ctx, ProfileKey) }

// GetWorkspace retrieves the workspace name from the context
func GetWorkspace(ctx context.Context) string { return getString(ctx, WorkspaceKey) }

// GetUserID retrieves the user id from the context
func GetUserID(ctx context.Context) string { return getString(ctx, UserIDKey) }

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:   GetTraceID(ctx),
		CommandID: GetCommandID(ctx),
		Profile:   GetProfile(ctx),
		Workspace: GetWorkspace(ctx),
		UserID:    GetUserID(ctx),
	}
}

// NewContext creates a new context with tracing information
func NewContext(ctx context.Context, tc *TraceContext) context.Context {
	if tc.TraceID != "" {
		ctx = WithTraceID(ctx, tc.TraceID)
	}
	if tc.CommandID != "" {
		ctx = WithCommandID(ctx, tc.CommandID)
	}
	if tc.Profile != "" {
		ctx = WithProfile(ctx, tc.Profile)
	}
	if tc.Workspace != "" {
		ctx = WithWorkspace(ctx, tc.Workspace)
	}
	if tc.UserID != "" {
		ctx = WithUserID(ctx, tc.UserID)
	}
	return ctx
}

// NewCommandContext derives the context for one shell command: it keeps the
// session-level values of ctx and assigns a fresh command ID.
func NewCommandContext(ctx context.Context) context.Context {
	if GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	return WithCommandID(ctx, NewCommandID())
}
