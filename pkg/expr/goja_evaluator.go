package expr

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/oliveagle/jsonpath"
)

var (
	templateDelimiters = regexp.MustCompile(`^\{\{(.*)\}\}$`)
	barePathPattern    = regexp.MustCompile(`^\$[.\[][\w.\[\]'"]*$`)
)

// GojaEvaluator evaluates expressions with an embedded JavaScript engine.
// The payload is bound as $ and each top-level payload field is bound by
// name, so `contains(["vip"], tier)` reads the payload's tier field.
// Bare jsonpath references ($.a.b) short-circuit to a path lookup.
type GojaEvaluator struct{}

// NewGojaEvaluator creates the default expression engine.
func NewGojaEvaluator() *GojaEvaluator {
	return &GojaEvaluator{}
}

// Evaluate runs the expression against the payload. Time-dependent
// expressions see only the injected now.
func (e *GojaEvaluator) Evaluate(expression string, payload map[string]any, now time.Time) (any, error) {
	source := strings.TrimSpace(expression)
	if match := templateDelimiters.FindStringSubmatch(source); match != nil {
		source = strings.TrimSpace(match[1])
	}

	if source == "" {
		return nil, NewEvaluationError(expression, fmt.Errorf("empty expression"))
	}

	if barePathPattern.MatchString(source) {
		value, err := jsonpath.JsonPathLookup(payload, source)
		if err != nil {
			return nil, NewEvaluationError(expression, err)
		}

		return value, nil
	}

	vm := goja.New()
	if err := e.bind(vm, payload, now); err != nil {
		return nil, NewEvaluationError(expression, err)
	}

	value, err := vm.RunString(source)
	if err != nil {
		return nil, NewEvaluationError(expression, err)
	}

	return normalize(value.Export()), nil
}

// bind installs the payload and the helper functions into the VM.
func (e *GojaEvaluator) bind(vm *goja.Runtime, payload map[string]any, now time.Time) error {
	if err := vm.Set("$", payload); err != nil {
		return err
	}

	for key, value := range payload {
		if err := vm.Set(key, value); err != nil {
			return err
		}
	}

	helpers := map[string]any{
		"contains": containsHelper,
		"now": func() string {
			return now.UTC().Format(time.RFC3339)
		},
		"nowMillis": func() int64 {
			return now.UTC().UnixMilli()
		},
	}

	for name, fn := range helpers {
		if err := vm.Set(name, fn); err != nil {
			return err
		}
	}

	return nil
}

// containsHelper reports membership for lists and substrings for strings.
// A list item matches when any of its elements is contained, so
// contains(["vip"], tier) holds for a tier list carrying "vip".
func containsHelper(container, item any) bool {
	if items, ok := item.([]any); ok {
		for _, each := range items {
			if containsHelper(container, each) {
				return true
			}
		}

		return false
	}

	switch c := container.(type) {
	case []any:
		for _, candidate := range c {
			if fmt.Sprintf("%v", candidate) == fmt.Sprintf("%v", item) {
				return true
			}
		}

		return false
	case string:
		return strings.Contains(c, fmt.Sprintf("%v", item))
	default:
		return false
	}
}

// normalize round-trips exported values through JSON so callers always see
// map[string]any / []any / float64 / string / bool / nil.
func normalize(value any) any {
	switch value.(type) {
	case nil, bool, string, float64:
		return value
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return value
	}

	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return value
	}

	return normalized
}
