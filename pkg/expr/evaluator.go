// Package expr evaluates the template expression language used by
// condition, rate-limit, delay and output actions against a JSON payload.
package expr

import (
	"errors"
	"fmt"
	"time"
)

// Evaluator is a pure function from (expression, payload) to a JSON value.
// Implementations must be deterministic: no network and no wall clock
// beyond the injected now, so activation replay stays consistent.
type Evaluator interface {
	Evaluate(expression string, payload map[string]any, now time.Time) (any, error)
}

// EvaluationError reports an expression that failed to parse or evaluate,
// or produced a value of the wrong type. Callers treat it as skip or
// else-branch per action-type policy, never as an activation failure.
type EvaluationError struct {
	Expression string
	Err        error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("failed to evaluate %q: %v", e.Expression, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// NewEvaluationError wraps err with the offending expression.
func NewEvaluationError(expression string, err error) *EvaluationError {
	return &EvaluationError{Expression: expression, Err: err}
}

// IsEvaluationError checks whether err is expression-scoped.
func IsEvaluationError(err error) bool {
	var evalErr *EvaluationError

	return errors.As(err, &evalErr)
}
