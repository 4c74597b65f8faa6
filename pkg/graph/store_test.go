package graph

import (
	"testing"

	"github.com/trigonhq/trigon/pkg/models"
)

func validAutomation() *models.Automation {
	return &models.Automation{
		ID:            "auto-1",
		Status:        models.AutomationStatusActive,
		Trigger:       &models.Trigger{AppID: "forms", TriggerKey: "form_submitted"},
		RootActionIDs: []string{"cond"},
		Actions: map[string]*models.ActionNode{
			"cond": models.NewConditionNode("cond", &models.ConditionAction{
				Group:              models.ExpressionGroup{Operator: models.OperatorAnd, Expressions: []string{`tier == "vip"`}},
				TruePostActionIDs:  []string{"email"},
				FalsePostActionIDs: []string{"delay"},
			}),
			"email": models.NewAppDefinedNode("email", "email", &models.AppDefinedAction{
				AppID: "crm", ActionKey: "send_email",
			}),
			"delay": models.NewDelayNode("delay", &models.DelayAction{
				PostActionIDs: []string{"reminder"},
			}),
			"reminder": models.NewAppDefinedNode("reminder", "reminder", &models.AppDefinedAction{
				AppID: "crm", ActionKey: "send_reminder",
			}),
		},
	}
}

func TestNewStore_Valid(t *testing.T) {
	store, err := NewStore(validAutomation())
	if err != nil {
		t.Fatalf("expected valid automation, got %v", err)
	}

	if len(store.Roots()) != 1 || store.Roots()[0] != "cond" {
		t.Errorf("unexpected roots %v", store.Roots())
	}

	succ := store.Successors("cond")
	if len(succ) != 2 {
		t.Errorf("condition should have 2 successors across branches, got %v", succ)
	}

	preds := store.Predecessors("reminder")
	if len(preds) != 1 || preds[0] != "delay" {
		t.Errorf("unexpected predecessors %v", preds)
	}
}

func TestNewStore_DanglingReference(t *testing.T) {
	automation := validAutomation()
	automation.Actions["email"].AppDefined.PostActionIDs = []string{"ghost"}

	_, err := NewStore(automation)
	if err == nil {
		t.Fatal("expected configuration error for dangling reference")
	}

	if !IsConfigurationError(err) {
		t.Errorf("expected ConfigurationError, got %T", err)
	}
}

func TestNewStore_CycleDetection(t *testing.T) {
	automation := validAutomation()
	automation.Actions["reminder"].AppDefined.PostActionIDs = []string{"delay"}

	_, err := NewStore(automation)
	if err == nil {
		t.Fatal("expected configuration error for cycle")
	}

	if !IsConfigurationError(err) {
		t.Errorf("expected ConfigurationError, got %T", err)
	}
}

func TestNewStore_FanInIsLegal(t *testing.T) {
	automation := validAutomation()
	// Both branches converge on the reminder node: fan-in, not a cycle.
	automation.Actions["email"].AppDefined.PostActionIDs = []string{"reminder"}

	store, err := NewStore(automation)
	if err != nil {
		t.Fatalf("fan-in must be legal, got %v", err)
	}

	if len(store.Predecessors("reminder")) != 2 {
		t.Errorf("expected 2 predecessors at the join point, got %v", store.Predecessors("reminder"))
	}
}

func TestMergeOutput_Namespaced(t *testing.T) {
	payload := map[string]any{"tier": "vip"}

	MergeOutput(payload, "email", map[string]any{"sent": true})

	ns, ok := payload["email"].(map[string]any)
	if !ok || ns["sent"] != true {
		t.Errorf("expected namespaced merge, got %v", payload)
	}
}

func TestMergeOutput_FlatLastWriterWins(t *testing.T) {
	payload := map[string]any{"tier": "vip"}

	MergeOutput(payload, "", map[string]any{"tier": "basic", "new": 1})

	if payload["tier"] != "basic" {
		t.Errorf("flat merge must overwrite, got %v", payload["tier"])
	}

	if payload["new"] != 1 {
		t.Errorf("flat merge must add new keys, got %v", payload)
	}
}

func TestClonePayload_NoAliasing(t *testing.T) {
	payload := map[string]any{
		"contact": map[string]any{"email": "a@b.c"},
	}

	clone := ClonePayload(payload)
	clone["contact"].(map[string]any)["email"] = "changed"

	if payload["contact"].(map[string]any)["email"] != "a@b.c" {
		t.Error("clone must not alias nested maps")
	}
}
