package logging

import (
	"context"
)

// Context keys for logging values.
// Using private types to avoid key collisions.
type contextKey int

const (
	sessionIDKey contextKey = iota
	operationKey
	branchKey
	componentKey
)

// WithSession adds a session ID to the context.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// WithOperation adds the workflow operation name to the context
// (e.g. "launch", "ship", "cleanup").
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, operationKey, operation)
}

// WithBranch adds a branch name to the context.
func WithBranch(ctx context.Context, branch string) context.Context {
	return context.WithValue(ctx, branchKey, branch)
}

// WithComponent adds a component name to the context.
// Component names identify the subsystem generating logs (e.g., "store", "forge", "gitport").
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
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

// OperationFromContext extracts the operation name from the context.
// Returns empty string if not set.
func OperationFromContext(ctx context.Context) string {
	if v := ctx.Value(operationKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// BranchFromContext extracts the branch name from the context.
// Returns empty string if not set.
func BranchFromContext(ctx context.Context) string {
	if v := ctx.Value(branchKey); v != nil {
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
