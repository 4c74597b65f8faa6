// Package transform provides a built-in action executor that maps
// expressions over the activation payload into a new output document.
package transform

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/trigonhq/trigon/pkg/expr"
	"github.com/trigonhq/trigon/pkg/protocol"
)

const executorID = "core/transform"

// Executor evaluates one expression per output field. Field order is not
// significant; every expression sees the same input payload.
type Executor struct {
	mapping   map[string]string
	evaluator expr.Evaluator
}

// Factory builds transform executors.
type Factory struct {
	Evaluator expr.Evaluator
}

func (f *Factory) ID() string {
	return executorID
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"mapping"},
		"properties": map[string]any{
			"mapping": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
		},
	}
}

func (f *Factory) Create(config map[string]any) (protocol.ActionExecutor, error) {
	raw, ok := config["mapping"].(map[string]any)
	if !ok {
		return nil, errors.New("missing required field 'mapping'")
	}

	mapping := make(map[string]string, len(raw))

	for field, value := range raw {
		expression, ok := value.(string)
		if !ok {
			return nil, errors.New("mapping values must be expression strings")
		}

		mapping[field] = expression
	}

	return &Executor{mapping: mapping, evaluator: f.Evaluator}, nil
}

func (e *Executor) Execute(_ context.Context, req protocol.ExecutionRequest, _ *slog.Logger) (*protocol.Result, error) {
	now := time.Now().UTC()
	output := make(map[string]any, len(e.mapping))

	for field, expression := range e.mapping {
		value, err := e.evaluator.Evaluate(expression, req.Payload, now)
		if err != nil {
			return nil, err
		}

		output[field] = value
	}

	return &protocol.Result{Output: output}, nil
}
