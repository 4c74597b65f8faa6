// Package web provides HTTP request and response types for the trigger event API.
package web

import "github.com/trigonhq/trigon/pkg/models"

// ActionCompletedRequest finishes an async app-defined action by its
// execution id.
type ActionCompletedRequest struct {
	ExecutionID string         `json:"execution_id"           validate:"required"`
	Output      map[string]any `json:"output,omitempty"`
	ErrorReason string         `json:"error_reason,omitempty"`
}

// RunAutomationRequest carries the payload for a direct automation run.
type RunAutomationRequest struct {
	Payload map[string]any `json:"payload"`
}

// ActivationResponse joins an activation with its per-action records.
type ActivationResponse struct {
	Activation *models.Activation     `json:"activation"`
	Actions    []*models.ActionStatus `json:"actions"`
}

// CancelScheduleResponse lists the schedules a cancel request removed.
type CancelScheduleResponse struct {
	Cancelled []*models.Schedule `json:"cancelled"`
}
