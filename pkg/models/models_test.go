package models

import (
	"errors"
	"testing"
	"time"
)

func TestActionNode_Kind(t *testing.T) {
	node := NewConditionNode("c1", &ConditionAction{
		Group: ExpressionGroup{Operator: OperatorAnd, Expressions: []string{"true"}},
	})

	kind, ok := node.Kind()
	if !ok {
		t.Fatal("expected exactly one variant")
	}

	if kind != ActionKindCondition {
		t.Errorf("expected condition kind, got %s", kind)
	}
}

func TestActionNode_Validate_NoVariant(t *testing.T) {
	node := &ActionNode{ID: "empty"}

	if err := node.Validate(); !errors.Is(err, ErrNoVariant) {
		t.Errorf("expected ErrNoVariant, got %v", err)
	}
}

func TestActionNode_Validate_MultipleVariants(t *testing.T) {
	node := &ActionNode{
		ID:        "double",
		Condition: &ConditionAction{},
		Delay:     &DelayAction{},
	}

	if err := node.Validate(); !errors.Is(err, ErrMultipleVariant) {
		t.Errorf("expected ErrMultipleVariant, got %v", err)
	}
}

func TestActionNode_PostActionIDs_ConditionBranches(t *testing.T) {
	node := NewConditionNode("c1", &ConditionAction{
		TruePostActionIDs:  []string{"a"},
		FalsePostActionIDs: []string{"b", "c"},
	})

	ids := node.PostActionIDs()
	if len(ids) != 3 {
		t.Fatalf("expected 3 successors, got %d", len(ids))
	}
}

func TestAutomation_Validate_DanglingReference(t *testing.T) {
	automation := &Automation{
		ID:      "auto-1",
		Trigger: &Trigger{AppID: "forms", TriggerKey: "form_submitted"},
		RootActionIDs: []string{
			"a1",
		},
		Actions: map[string]*ActionNode{
			"a1": NewAppDefinedNode("a1", "", &AppDefinedAction{
				AppID:         "email",
				ActionKey:     "send_email",
				PostActionIDs: []string{"missing"},
			}),
		},
	}

	if err := automation.Validate(); !errors.Is(err, ErrUnknownActionRef) {
		t.Errorf("expected ErrUnknownActionRef, got %v", err)
	}
}

func TestActivation_TransitionForwardOnly(t *testing.T) {
	now := time.Now().UTC()
	activation := &Activation{ID: "act-1", Status: ActivationStatusInitiated}

	if err := activation.TransitionTo(ActivationStatusStarted, now); err != nil {
		t.Fatalf("initiated -> started should be legal: %v", err)
	}

	if err := activation.TransitionTo(ActivationStatusEnded, now); err != nil {
		t.Fatalf("started -> ended should be legal: %v", err)
	}

	err := activation.TransitionTo(ActivationStatusStarted, now)

	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError leaving terminal state, got %v", err)
	}

	if activation.EndedAt == nil {
		t.Error("terminal transition should record EndedAt")
	}
}

func TestActivation_TerminalStatuses(t *testing.T) {
	for _, status := range []ActivationStatus{ActivationStatusEnded, ActivationStatusCancelled, ActivationStatusFailed} {
		if !status.Terminal() {
			t.Errorf("%s should be terminal", status)
		}
	}

	for _, status := range []ActivationStatus{ActivationStatusInitiated, ActivationStatusScheduled, ActivationStatusStarted} {
		if status.Terminal() {
			t.Errorf("%s should not be terminal", status)
		}
	}
}

func TestNewSchedule_RejectsPastDate(t *testing.T) {
	now := time.Now().UTC()

	_, err := NewSchedule("s1", "trigger:entity", now.Add(-time.Minute), now)
	if !errors.Is(err, ErrScheduleDateInPast) {
		t.Errorf("expected ErrScheduleDateInPast, got %v", err)
	}
}

func TestSchedule_IsDue(t *testing.T) {
	now := time.Now().UTC()

	schedule, err := NewSchedule("s1", "trigger:entity", now.Add(time.Hour), now)
	if err != nil {
		t.Fatalf("failed to create schedule: %v", err)
	}

	if schedule.IsDue(now) {
		t.Error("schedule should not be due before its date")
	}

	if !schedule.IsDue(now.Add(2 * time.Hour)) {
		t.Error("schedule should be due after its date")
	}

	schedule.Status = ScheduleStatusCancelled
	if schedule.IsDue(now.Add(2 * time.Hour)) {
		t.Error("cancelled schedule must never be due")
	}
}

func TestTriggerSchedule_Advance(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	ts, err := NewTriggerSchedule("ts1", "auto-1", "0 * * * *", now)
	if err != nil {
		t.Fatalf("failed to create trigger schedule: %v", err)
	}

	if !ts.NextDueAt.After(now) {
		t.Errorf("next due %v should be after %v", ts.NextDueAt, now)
	}

	if ts.IsDue(now) {
		t.Error("should not be due immediately after creation")
	}

	if !ts.IsDue(ts.NextDueAt) {
		t.Error("should be due at NextDueAt")
	}
}

func TestIdempotencyRecord_Expired(t *testing.T) {
	now := time.Now().UTC()
	record := &IdempotencyRecord{
		Key:       "k",
		CreatedAt: now,
		ExpiresAt: now.Add(DefaultIdempotencyTTL),
	}

	if record.Expired(now.Add(time.Hour)) {
		t.Error("record should not expire within TTL")
	}

	if !record.Expired(now.Add(DefaultIdempotencyTTL + time.Second)) {
		t.Error("record should expire after TTL")
	}
}
