package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// PropagateToLogger adds tracing context to a zerolog logger
func PropagateToLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	if tc.TraceID != "" {
		logger = logger.With().Str("trace_id", tc.TraceID).Logger()
	}
	if tc.CommandID != "" {
		logger = logger.With().Str("command_id", tc.CommandID).Logger()
	}
	if tc.Profile != "" {
		logger = logger.With().Str("profile", tc.Profile).Logger()
	}
	if tc.Workspace != "" {
		logger = logger.With().Str("workspace", tc.Workspace).Logger()
	}
	if tc.UserID != "" {
		logger = logger.With().Str("user_id", tc.UserID).Logger()
	}

	return logger
}

// LoggerFromContext creates a logger with tracing context from the given context
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	return PropagateToLogger(ctx, baseLogger)
}

// MergeContext copies tracing values from source that target does not already carry
func MergeContext(target, source context.Context) context.Context {
	tc := FromContext(source)

	if tc.TraceID != "" && GetTraceID(target) == "" {
		target = WithTraceID(target, tc.TraceID)
	}
	if tc.CommandID != "" && GetCommandID(target) == "" {
		target = WithCommandID(target, tc.CommandID)
	}
	if tc.Profile != "" && GetProfile(target) == "" {
		target = WithProfile(target, tc.Profile)
	}
	if tc.Workspace != "" && GetWorkspace(target) == "" {
		target = WithWorkspace(target, tc.Workspace)
	}
	if tc.UserID != "" && GetUserID(target) == "" {
		target = WithUserID(target, tc.UserID)
	}

	return target
}
