package models

import (
	"errors"
	"time"
)

// ActionKind names the populated variant of an ActionNode.
type ActionKind string

const (
	ActionKindAppDefined ActionKind = "app_defined"
	ActionKindCondition  ActionKind = "condition"
	ActionKindDelay      ActionKind = "delay"
	ActionKindRateLimit  ActionKind = "rate_limit"
	ActionKindOutput     ActionKind = "output"
)

// ConditionOperator combines the sub-expressions of a condition group.
type ConditionOperator string

const (
	OperatorAnd ConditionOperator = "AND"
	OperatorOr  ConditionOperator = "OR"
)

// ExpressionGroup is a list of boolean expressions combined with a single
// operator. The group holds iff the operator holds across all entries,
// each evaluated independently.
type ExpressionGroup struct {
	Operator    ConditionOperator `json:"operator"`
	Expressions []string          `json:"expressions"`
}

// AppDefinedAction invokes an executor registered by an application.
// Async actions suspend the branch until an ActionCompleted callback
// arrives for the execution identifier.
type AppDefinedAction struct {
	AppID         string         `json:"app_id"`
	ActionKey     string         `json:"action_key"`
	Config        map[string]any `json:"config,omitempty"`
	Async         bool           `json:"async,omitempty"`
	PostActionIDs []string       `json:"post_action_ids,omitempty"`
}

// ConditionAction branches on an expression group. Only one branch is
// taken; descendants reachable exclusively through the other branch are
// skipped.
type ConditionAction struct {
	Group              ExpressionGroup `json:"group"`
	TruePostActionIDs  []string        `json:"true_post_action_ids,omitempty"`
	FalsePostActionIDs []string        `json:"false_post_action_ids,omitempty"`
}

// DelayAction suspends the branch until a fixed offset elapses or a due
// date computed from the payload is reached. OffsetExpression and
// DueDateExpression must evaluate to a number of milliseconds and an
// RFC 3339 date respectively.
type DelayAction struct {
	Offset            time.Duration `json:"offset,omitempty"`
	OffsetExpression  string        `json:"offset_expression,omitempty"`
	DueDateExpression string        `json:"due_date_expression,omitempty"`
	PostActionIDs     []string      `json:"post_action_ids,omitempty"`
}

// RateLimitAction gates downstream actions by counting activations per
// derived key within a rolling window. A nil WindowDuration means the
// counter never resets. Failing to acquire routes to the else branch;
// it is a normal outcome, not a failure.
type RateLimitAction struct {
	KeyExpression            string         `json:"key_expression"`
	MaxActivations           int64          `json:"max_activations,omitempty"`
	MaxActivationsExpression string         `json:"max_activations_expression,omitempty"`
	WindowDuration           *time.Duration `json:"window_duration,omitempty"`
	PostActionIDs            []string       `json:"post_action_ids,omitempty"`
	ElsePostActionIDs        []string       `json:"else_post_action_ids,omitempty"`
}

// OutputAction materializes the activation's output payload. Each mapping
// value is an expression evaluated against the running payload.
type OutputAction struct {
	Mapping map[string]string `json:"mapping,omitempty"`
}

// ActionNode is one step in an automation's execution graph. Exactly one
// variant must be populated; use the New*Node constructors rather than
// filling fields directly.
type ActionNode struct {
	ID        string `json:"id"   validate:"required"`
	Name      string `json:"name"`
	Namespace string `json:"namespace,omitempty"`

	AppDefined *AppDefinedAction `json:"app_defined,omitempty"`
	Condition  *ConditionAction  `json:"condition,omitempty"`
	Delay      *DelayAction      `json:"delay,omitempty"`
	RateLimit  *RateLimitAction  `json:"rate_limit,omitempty"`
	Output     *OutputAction     `json:"output,omitempty"`
}

var (
	ErrNoVariant       = errors.New("action node has no variant populated")
	ErrMultipleVariant = errors.New("action node has more than one variant populated")
)

// NewAppDefinedNode creates an app-defined action node.
func NewAppDefinedNode(id, namespace string, action *AppDefinedAction) *ActionNode {
	return &ActionNode{ID: id, Namespace: namespace, AppDefined: action}
}

// NewConditionNode creates a condition branching node.
func NewConditionNode(id string, action *ConditionAction) *ActionNode {
	return &ActionNode{ID: id, Condition: action}
}

// NewDelayNode creates a delay node.
func NewDelayNode(id string, action *DelayAction) *ActionNode {
	return &ActionNode{ID: id, Delay: action}
}

// NewRateLimitNode creates a rate-limit gate node.
func NewRateLimitNode(id string, action *RateLimitAction) *ActionNode {
	return &ActionNode{ID: id, RateLimit: action}
}

// NewOutputNode creates an output node.
func NewOutputNode(id, namespace string, action *OutputAction) *ActionNode {
	return &ActionNode{ID: id, Namespace: namespace, Output: action}
}

// Kind returns the populated variant. The second return is false when the
// node is malformed (zero or multiple variants).
func (n *ActionNode) Kind() (ActionKind, bool) {
	var (
		kind  ActionKind
		count int
	)

	if n.AppDefined != nil {
		kind, count = ActionKindAppDefined, count+1
	}

	if n.Condition != nil {
		kind, count = ActionKindCondition, count+1
	}

	if n.Delay != nil {
		kind, count = ActionKindDelay, count+1
	}

	if n.RateLimit != nil {
		kind, count = ActionKindRateLimit, count+1
	}

	if n.Output != nil {
		kind, count = ActionKindOutput, count+1
	}

	return kind, count == 1
}

// Validate checks that exactly one variant is populated.
func (n *ActionNode) Validate() error {
	_, ok := n.Kind()
	if ok {
		return nil
	}

	if n.AppDefined == nil && n.Condition == nil && n.Delay == nil && n.RateLimit == nil && n.Output == nil {
		return ErrNoVariant
	}

	return ErrMultipleVariant
}

// PostActionIDs returns every successor the node can route to, across all
// branches. Branch selection at run time uses the variant's own lists.
func (n *ActionNode) PostActionIDs() []string {
	switch {
	case n.AppDefined != nil:
		return n.AppDefined.PostActionIDs
	case n.Condition != nil:
		ids := make([]string, 0, len(n.Condition.TruePostActionIDs)+len(n.Condition.FalsePostActionIDs))
		ids = append(ids, n.Condition.TruePostActionIDs...)
		ids = append(ids, n.Condition.FalsePostActionIDs...)

		return ids
	case n.Delay != nil:
		return n.Delay.PostActionIDs
	case n.RateLimit != nil:
		ids := make([]string, 0, len(n.RateLimit.PostActionIDs)+len(n.RateLimit.ElsePostActionIDs))
		ids = append(ids, n.RateLimit.PostActionIDs...)
		ids = append(ids, n.RateLimit.ElsePostActionIDs...)

		return ids
	default:
		return nil
	}
}
