// Package protocol defines the contracts between the activation engine
// and app-defined action implementations.
package protocol

import (
	"context"
	"log/slog"
)

// ExecutionRequest is everything an executor needs to run one app-defined
// action within one activation. ExecutionID identifies this run so async
// executors can report completion later.
type ExecutionRequest struct {
	ActivationID string
	ActionID     string
	ExecutionID  string
	Config       map[string]any
	Payload      map[string]any
}

// Result is the outcome of a synchronous execution. An async executor
// returns Pending=true instead; its output arrives through the
// completion callback, keyed by ExecutionID.
type Result struct {
	Output  map[string]any
	Pending bool
}

// ActionExecutor runs one kind of app-defined action.
type ActionExecutor interface {
	Execute(ctx context.Context, req ExecutionRequest, logger *slog.Logger) (*Result, error)
}

// ExecutorFactory builds executors for a (appID, actionKey) pair and
// publishes the JSON schema its configuration must satisfy.
type ExecutorFactory interface {
	// ID is "appID/actionKey".
	ID() string
	Schema() map[string]any
	Create(config map[string]any) (ActionExecutor, error)
}
