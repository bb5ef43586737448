package logging

import (
	"context"
)

// Context keys for logging values.
// Using private types to avoid key collisions.
type contextKey int

const (
	sessionIDKey contextKey = iota
	jobIDKey
	componentKey
	workspaceKey
)

// WithSession adds a Claude Code session ID to the context.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// WithJob adds a job ID to the context.
func WithJob(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDKey, jobID)
}

// WithComponent adds a component name to the context.
// Component names identify the subsystem generating logs (e.g., "hooks", "worker", "retriever").
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// WithWorkspace adds a workspace path to the context.
func WithWorkspace(ctx context.Context, workspacePath string) context.Context {
	return context.WithValue(ctx, workspaceKey, workspacePath)
}

// SessionIDFromContext extracts the session ID from the context.
// Returns empty string if not set.
func SessionIDFromContext(ctx context.Context) string {
	if v := ctx.Value(sessionIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// JobIDFromContext extracts the job ID from the context.
// Returns empty string if not set.
func JobIDFromContext(ctx context.Context) string {
	if v := ctx.Value(jobIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// ComponentFromContext extracts the component name from the context.
// Returns empty string if not set.
func ComponentFromContext(ctx context.Context) string {
	if v := ctx.Value(componentKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WorkspaceFromContext extracts the workspace path from the context.
// Returns empty string if not set.
func WorkspaceFromContext(ctx context.Context) string {
	if v := ctx.Value(workspaceKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
