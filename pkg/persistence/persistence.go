// Package persistence provides the data storage abstraction layer for
// automations, activations, schedules and idempotency records.
package persistence

import (
	"context"
	"time"

	"github.com/trigonhq/trigon/pkg/models"
)

// AutomationRepository stores automation configurations.
type AutomationRepository interface {
	SaveAutomation(ctx context.Context, automation *models.Automation) error
	AutomationByID(ctx context.Context, id string) (*models.Automation, error)
	Automations(ctx context.Context) ([]*models.Automation, error)
	// ActiveByTrigger returns every ACTIVE automation listening on the
	// given (appID, triggerKey) pair.
	ActiveByTrigger(ctx context.Context, appID, triggerKey string) ([]*models.Automation, error)
	DeleteAutomation(ctx context.Context, id string) error
}

// ActivationRepository stores activations and their per-action records.
type ActivationRepository interface {
	SaveActivation(ctx context.Context, activation *models.Activation) error
	ActivationByID(ctx context.Context, id string) (*models.Activation, error)
	// ActivationsByEntity returns non-terminal activations matching the
	// cancellation key (externalEntityID, triggerKey).
	ActivationsByEntity(ctx context.Context, externalEntityID, triggerKey string) ([]*models.Activation, error)

	// ClaimAction atomically inserts a STARTED record for
	// (activationID, actionID). It returns false when the action was
	// already claimed, guaranteeing at-most-once execution per activation.
	ClaimAction(ctx context.Context, status *models.ActionStatus) (bool, error)
	SaveActionStatus(ctx context.Context, status *models.ActionStatus) error
	ActionStatus(ctx context.Context, activationID, actionID string) (*models.ActionStatus, error)
	ActionStatuses(ctx context.Context, activationID string) ([]*models.ActionStatus, error)
	// ActionStatusByExecutionID routes an async completion callback back
	// to its in-flight action.
	ActionStatusByExecutionID(ctx context.Context, executionID string) (*models.ActionStatus, error)
}

// ScheduleMatch selects schedules for cancellation. Exactly one selector
// should be set; pattern uses path.Match syntax against the identifier.
type ScheduleMatch struct {
	ID                string
	Identifier        string
	IdentifierPattern string
	CorrelationID     string
}

// ScheduleRepository stores durable pending-delay records.
type ScheduleRepository interface {
	SaveSchedule(ctx context.Context, schedule *models.Schedule) error
	// CreateSchedule inserts the schedule unless a PENDING schedule with
	// the same identifier already exists, atomically, so concurrent
	// requests for one identifier never create two pending schedules. It
	// returns false on a dedup conflict.
	CreateSchedule(ctx context.Context, schedule *models.Schedule) (bool, error)
	// OverridePendingSchedule rewrites a schedule guarded by the PENDING
	// status. It returns false when the schedule fired or was cancelled
	// in the meantime.
	OverridePendingSchedule(ctx context.Context, schedule *models.Schedule) (bool, error)
	ScheduleByID(ctx context.Context, id string) (*models.Schedule, error)
	// PendingByIdentifier returns the PENDING schedule sharing the dedup
	// identifier, or nil when none exists.
	PendingByIdentifier(ctx context.Context, identifier string) (*models.Schedule, error)
	// DueSchedules returns PENDING schedules with ScheduleDate <= now.
	DueSchedules(ctx context.Context, now time.Time, limit int) ([]*models.Schedule, error)
	// ClaimSchedule transitions PENDING -> DONE atomically. It returns
	// false when the schedule was already DONE or CANCELLED, so a
	// fired-then-cancelled race always favors "already fired".
	ClaimSchedule(ctx context.Context, id string) (bool, error)
	// CancelSchedules transitions matching PENDING schedules to CANCELLED
	// and returns them. Cancelling a terminal schedule is a no-op.
	CancelSchedules(ctx context.Context, match ScheduleMatch) ([]*models.Schedule, error)

	SaveTriggerSchedule(ctx context.Context, schedule *models.TriggerSchedule) error
	DueTriggerSchedules(ctx context.Context, now time.Time) ([]*models.TriggerSchedule, error)
}

// IdempotencyRepository deduplicates reported events per client key.
type IdempotencyRepository interface {
	IdempotencyRecord(ctx context.Context, key, appID, triggerKey string) (*models.IdempotencyRecord, error)
	SaveIdempotencyRecord(ctx context.Context, record *models.IdempotencyRecord) error
}

// Persistence aggregates the repositories behind one connection lifecycle.
type Persistence interface {
	AutomationRepository() AutomationRepository
	ActivationRepository() ActivationRepository
	ScheduleRepository() ScheduleRepository
	IdempotencyRepository() IdempotencyRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
