package expr

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/trigonhq/trigon/pkg/models"
)

// EvaluateBool evaluates the expression and coerces the result to a
// boolean using JSON truthiness: false, 0, "", nil, empty collections are
// false, everything else is true.
func EvaluateBool(ev Evaluator, expression string, payload map[string]any, now time.Time) (bool, error) {
	value, err := ev.Evaluate(expression, payload, now)
	if err != nil {
		return false, err
	}

	return Truthy(value), nil
}

// EvaluateNumber evaluates the expression and requires a numeric result.
// Anything else is an EvaluationError.
func EvaluateNumber(ev Evaluator, expression string, payload map[string]any, now time.Time) (float64, error) {
	value, err := ev.Evaluate(expression, payload, now)
	if err != nil {
		return 0, err
	}

	switch v := value.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, NewEvaluationError(expression, err)
		}

		return f, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, NewEvaluationError(expression, fmt.Errorf("non-numeric result %q", v))
		}

		return f, nil
	default:
		return 0, NewEvaluationError(expression, fmt.Errorf("non-numeric result of type %T", value))
	}
}

// EvaluateGroup evaluates every sub-expression independently and combines
// them with the group operator: AND holds iff all entries hold, OR iff at
// least one does. An empty group holds trivially.
func EvaluateGroup(ev Evaluator, group models.ExpressionGroup, payload map[string]any, now time.Time) (bool, error) {
	if len(group.Expressions) == 0 {
		return true, nil
	}

	for _, expression := range group.Expressions {
		ok, err := EvaluateBool(ev, expression, payload, now)
		if err != nil {
			return false, err
		}

		switch group.Operator {
		case models.OperatorOr:
			if ok {
				return true, nil
			}
		default: // AND is the default operator
			if !ok {
				return false, nil
			}
		}
	}

	return group.Operator != models.OperatorOr, nil
}

// Truthy converts a JSON value to a boolean.
func Truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}

		return v != ""
	case float64:
		return v != 0
	case int:
		return v != 0
	case int32:
		return v != 0
	case int64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	case nil:
		return false
	default:
		return false
	}
}
