// Package events defines the domain events emitted by the activation
// engine. These events are the system's audit log and the only way
// external consumers observe activation progress.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/trigonhq/trigon/pkg/models"
)

type EventType string

// Topic is the bus topic all activation events are published on.
const Topic = "trigon.activations"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ActivationStatusChangedEvent       EventType = "activation.status.changed"
	ActivationActionStatusChangedEvent EventType = "activation.action.status.changed"
	ScheduleFiredEvent                 EventType = "schedule.fired"
	ScheduleCancelledEvent             EventType = "schedule.cancelled"
	AutomationActivatedEvent           EventType = "automation.activated"
	AutomationDeactivatedEvent         EventType = "automation.deactivated"
)

type BaseEvent struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	AutomationID string         `json:"automation_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// InitiatedInfo accompanies the INITIATED status.
type InitiatedInfo struct {
	TriggerKey       string `json:"trigger_key"`
	ExternalEntityID string `json:"external_entity_id,omitempty"`
}

// ScheduledInfo accompanies the SCHEDULED status.
type ScheduledInfo struct {
	ScheduleID   string    `json:"schedule_id"`
	ScheduleDate time.Time `json:"schedule_date"`
}

// CancelledInfo accompanies the CANCELLED status.
type CancelledInfo struct {
	Reason      string `json:"reason,omitempty"`
	CancelledBy string `json:"cancelled_by,omitempty"`
}

// FailedInfo accompanies the FAILED status.
type FailedInfo struct {
	Code        string `json:"code,omitempty"`
	Description string `json:"description,omitempty"`
}

// ActivationStatusChanged is emitted on every activation transition.
// Exactly one of the info payloads matching the new status is populated.
type ActivationStatusChanged struct {
	BaseEvent

	ActivationID string                  `json:"activation_id"`
	Status       models.ActivationStatus `json:"status"`
	Initiated    *InitiatedInfo          `json:"initiated,omitempty"`
	Scheduled    *ScheduledInfo          `json:"scheduled,omitempty"`
	Cancelled    *CancelledInfo          `json:"cancelled,omitempty"`
	Failed       *FailedInfo             `json:"failed,omitempty"`
}

func (e ActivationStatusChanged) GetType() EventType {
	return ActivationStatusChangedEvent
}

// ActivationActionStatusChanged is emitted on every per-action transition.
type ActivationActionStatusChanged struct {
	BaseEvent

	ActivationID string                   `json:"activation_id"`
	ActionID     string                   `json:"action_id"`
	ActionKind   models.ActionKind        `json:"action_kind"`
	Status       models.ActionStatusValue `json:"status"`
	ErrorReason  string                   `json:"error_reason,omitempty"`
	DurationMs   int64                    `json:"duration_ms,omitempty"`
}

func (e ActivationActionStatusChanged) GetType() EventType {
	return ActivationActionStatusChangedEvent
}

// ScheduleFired is emitted when a pending schedule reaches its due date
// and the resume callback runs.
type ScheduleFired struct {
	BaseEvent

	ScheduleID   string `json:"schedule_id"`
	Identifier   string `json:"identifier"`
	ActivationID string `json:"activation_id,omitempty"`
}

func (e ScheduleFired) GetType() EventType {
	return ScheduleFiredEvent
}

// ScheduleCancelled is emitted when a pending schedule is cancelled.
type ScheduleCancelled struct {
	BaseEvent

	ScheduleID string `json:"schedule_id"`
	Identifier string `json:"identifier"`
}

func (e ScheduleCancelled) GetType() EventType {
	return ScheduleCancelledEvent
}

// AutomationActivated is emitted when an automation becomes ACTIVE.
type AutomationActivated struct {
	BaseEvent

	Revision int64 `json:"revision"`
}

func (e AutomationActivated) GetType() EventType {
	return AutomationActivatedEvent
}

// AutomationDeactivated is emitted when an automation stops being ACTIVE.
// In-flight activations are cancelled cooperatively.
type AutomationDeactivated struct {
	BaseEvent

	Revision int64 `json:"revision"`
}

func (e AutomationDeactivated) GetType() EventType {
	return AutomationDeactivatedEvent
}

func NewBaseEvent(eventType EventType, automationID string) BaseEvent {
	return BaseEvent{
		ID:           uuid.New().String(),
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		AutomationID: automationID,
		Metadata:     make(map[string]any),
	}
}
