// Package models defines the core domain models for automation activation.
package models

import (
	"errors"
	"fmt"
	"time"
)

// AutomationStatus represents the lifecycle state of an automation configuration.
type AutomationStatus string

const (
	AutomationStatusDraft    AutomationStatus = "draft"    // Editable, never activated
	AutomationStatusActive   AutomationStatus = "active"   // Receives trigger events
	AutomationStatusArchived AutomationStatus = "archived" // Historical, never activated
)

// Origin identifies who installed an automation.
type Origin string

const (
	OriginUser         Origin = "user"
	OriginApp          Origin = "app"
	OriginPreinstalled Origin = "preinstalled"
)

// Trigger names the event type that starts an automation. Filters are
// boolean expressions evaluated against the trigger payload; all of them
// must pass for the automation to activate.
type Trigger struct {
	AppID      string   `json:"app_id"      validate:"required"`
	TriggerKey string   `json:"trigger_key" validate:"required"`
	Filters    []string `json:"filters,omitempty"`
}

// Automation is an immutable trigger-to-action-graph configuration.
// Edits produce a new Revision; in-flight activations keep the snapshot
// they were created against.
type Automation struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name"     validate:"required,min=3"`
	Description   string                 `json:"description"`
	Status        AutomationStatus       `json:"status"   validate:"required"`
	Revision      int64                  `json:"revision"`
	Trigger       *Trigger               `json:"trigger"  validate:"required"`
	RootActionIDs []string               `json:"root_action_ids"`
	Actions       map[string]*ActionNode `json:"actions"`
	Origin        Origin                 `json:"origin"`
	Owner         string                 `json:"owner"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	DeletedAt     *time.Time             `json:"deleted_at,omitempty"`
}

var (
	ErrMissingTrigger   = errors.New("automation has no trigger")
	ErrNoRootActions    = errors.New("automation has no root actions")
	ErrUnknownActionRef = errors.New("action references unknown action id")
)

// Validate checks structural integrity of the configuration: a trigger is
// present, roots are declared, and every referenced action id resolves.
// Cycle detection is performed by the graph store at load time.
func (a *Automation) Validate() error {
	if a.Trigger == nil || a.Trigger.AppID == "" || a.Trigger.TriggerKey == "" {
		return ErrMissingTrigger
	}

	if len(a.RootActionIDs) == 0 {
		return ErrNoRootActions
	}

	for _, rootID := range a.RootActionIDs {
		if _, ok := a.Actions[rootID]; !ok {
			return fmt.Errorf("root %q: %w", rootID, ErrUnknownActionRef)
		}
	}

	for id, node := range a.Actions {
		if err := node.Validate(); err != nil {
			return fmt.Errorf("action %q: %w", id, err)
		}

		for _, next := range node.PostActionIDs() {
			if _, ok := a.Actions[next]; !ok {
				return fmt.Errorf("action %q -> %q: %w", id, next, ErrUnknownActionRef)
			}
		}
	}

	return nil
}

// IsActive reports whether the automation may be activated by trigger events.
func (a *Automation) IsActive() bool {
	return a.Status == AutomationStatusActive && a.DeletedAt == nil
}
