package expr

import (
	"testing"
	"time"

	"github.com/trigonhq/trigon/pkg/models"
)

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func TestGojaEvaluator_PayloadFields(t *testing.T) {
	ev := NewGojaEvaluator()
	payload := map[string]any{"tier": "vip", "count": float64(3)}

	value, err := ev.Evaluate(`tier`, payload, testNow)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}

	if value != "vip" {
		t.Errorf("expected vip, got %v", value)
	}
}

func TestGojaEvaluator_ContainsExample(t *testing.T) {
	ev := NewGojaEvaluator()

	value, err := ev.Evaluate(`{{ contains(["vip"], tier) }}`, map[string]any{"tier": "vip"}, testNow)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}

	if value != true {
		t.Errorf("expected true, got %v", value)
	}

	value, err = ev.Evaluate(`{{ contains(["vip"], tier) }}`, map[string]any{"tier": "basic"}, testNow)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}

	if value != false {
		t.Errorf("expected false, got %v", value)
	}
}

func TestGojaEvaluator_JsonPathShorthand(t *testing.T) {
	ev := NewGojaEvaluator()
	payload := map[string]any{
		"contact": map[string]any{"email": "a@b.c"},
	}

	value, err := ev.Evaluate(`$.contact.email`, payload, testNow)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}

	if value != "a@b.c" {
		t.Errorf("expected a@b.c, got %v", value)
	}
}

func TestGojaEvaluator_InjectedNowIsDeterministic(t *testing.T) {
	ev := NewGojaEvaluator()

	first, err := ev.Evaluate(`now()`, map[string]any{}, testNow)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}

	second, err := ev.Evaluate(`now()`, map[string]any{}, testNow)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}

	if first != second || first != testNow.Format(time.RFC3339) {
		t.Errorf("now() must return the injected time, got %v and %v", first, second)
	}
}

func TestGojaEvaluator_SyntaxError(t *testing.T) {
	ev := NewGojaEvaluator()

	_, err := ev.Evaluate(`{{ tier ===== }}`, map[string]any{"tier": "vip"}, testNow)
	if err == nil {
		t.Fatal("expected evaluation error")
	}

	if !IsEvaluationError(err) {
		t.Errorf("expected EvaluationError, got %T", err)
	}
}

func TestEvaluateNumber(t *testing.T) {
	ev := NewGojaEvaluator()

	value, err := EvaluateNumber(ev, `{{ count * 2 }}`, map[string]any{"count": float64(21)}, testNow)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}

	if value != 42 {
		t.Errorf("expected 42, got %v", value)
	}
}

func TestEvaluateNumber_NonNumeric(t *testing.T) {
	ev := NewGojaEvaluator()

	_, err := EvaluateNumber(ev, `tier`, map[string]any{"tier": "vip"}, testNow)
	if !IsEvaluationError(err) {
		t.Errorf("expected EvaluationError for non-numeric result, got %v", err)
	}
}

func TestEvaluateGroup_And(t *testing.T) {
	ev := NewGojaEvaluator()
	payload := map[string]any{"tier": "vip", "count": float64(5)}

	group := models.ExpressionGroup{
		Operator:    models.OperatorAnd,
		Expressions: []string{`tier == "vip"`, `count > 3`},
	}

	ok, err := EvaluateGroup(ev, group, payload, testNow)
	if err != nil {
		t.Fatalf("group evaluation failed: %v", err)
	}

	if !ok {
		t.Error("AND group with all-true entries should hold")
	}

	group.Expressions = append(group.Expressions, `count > 10`)

	ok, err = EvaluateGroup(ev, group, payload, testNow)
	if err != nil {
		t.Fatalf("group evaluation failed: %v", err)
	}

	if ok {
		t.Error("AND group with a false entry should not hold")
	}
}

func TestEvaluateGroup_Or(t *testing.T) {
	ev := NewGojaEvaluator()
	payload := map[string]any{"tier": "basic"}

	group := models.ExpressionGroup{
		Operator:    models.OperatorOr,
		Expressions: []string{`tier == "vip"`, `tier == "basic"`},
	}

	ok, err := EvaluateGroup(ev, group, payload, testNow)
	if err != nil {
		t.Fatalf("group evaluation failed: %v", err)
	}

	if !ok {
		t.Error("OR group with one true entry should hold")
	}
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		value    any
		expected bool
	}{
		{true, true},
		{false, false},
		{"", false},
		{"x", true},
		{"false", false},
		{float64(0), false},
		{float64(1), true},
		{int(0), false},
		{int32(0), false},
		{int64(0), false},
		{int64(7), true},
		{nil, false},
		{[]any{}, false},
		{[]any{1}, true},
		{map[string]any{}, false},
	}

	for _, tc := range cases {
		if Truthy(tc.value) != tc.expected {
			t.Errorf("Truthy(%#v) expected %v", tc.value, tc.expected)
		}
	}
}
