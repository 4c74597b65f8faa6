// Package log provides a built-in action executor that writes a rendered
// message to the engine's structured log.
package log

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/trigonhq/trigon/pkg/expr"
	"github.com/trigonhq/trigon/pkg/protocol"
)

const executorID = "core/log"

// Executor logs a message at a configured level. The message may be a
// template expression evaluated against the activation payload.
type Executor struct {
	message string
	level   string

	evaluator expr.Evaluator
}

// Factory builds log executors.
type Factory struct {
	Evaluator expr.Evaluator
}

func (f *Factory) ID() string {
	return executorID
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"message"},
		"properties": map[string]any{
			"message": map[string]any{"type": "string"},
			"level":   map[string]any{"type": "string", "enum": []any{"debug", "info", "warn", "error"}},
		},
	}
}

func (f *Factory) Create(config map[string]any) (protocol.ActionExecutor, error) {
	message, ok := config["message"].(string)
	if !ok {
		return nil, errors.New("missing required field 'message'")
	}

	level := "info"
	if lvl, ok := config["level"].(string); ok {
		level = lvl
	}

	return &Executor{message: message, level: level, evaluator: f.Evaluator}, nil
}

func (e *Executor) Execute(ctx context.Context, req protocol.ExecutionRequest, logger *slog.Logger) (*protocol.Result, error) {
	message := e.message

	if strings.HasPrefix(message, "{{") && strings.HasSuffix(message, "}}") {
		value, err := e.evaluator.Evaluate(message, req.Payload, time.Now().UTC())
		if err != nil {
			return nil, err
		}

		message = fmt.Sprintf("%v", value)
	}

	l := logger.With("activation_id", req.ActivationID, "action_id", req.ActionID)

	switch e.level {
	case "debug":
		l.DebugContext(ctx, message)
	case "warn":
		l.WarnContext(ctx, message)
	case "error":
		l.ErrorContext(ctx, message)
	default:
		l.InfoContext(ctx, message)
	}

	return &protocol.Result{
		Output: map[string]any{"message": message, "level": e.level},
	}, nil
}
