// Package service exposes the engine's external operations: reporting
// trigger events, cancelling them, managing schedules and completing
// async actions. It owns trigger matching, filter evaluation and
// idempotent event deduplication; the activation engine owns everything
// after an automation is selected.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/trigonhq/trigon/pkg/activation"
	"github.com/trigonhq/trigon/pkg/expr"
	"github.com/trigonhq/trigon/pkg/graph"
	"github.com/trigonhq/trigon/pkg/models"
	"github.com/trigonhq/trigon/pkg/persistence"
	"github.com/trigonhq/trigon/pkg/scheduler"
)

// Service coordinates trigger events with the activation engine.
type Service struct {
	persistence persistence.Persistence
	engine      *activation.Engine
	scheduler   *scheduler.Scheduler
	evaluator   expr.Evaluator
	logger      *slog.Logger

	idempotencyTTL time.Duration
	nowFn          func() time.Time
}

// NewService wires the service from its collaborators.
func NewService(p persistence.Persistence, engine *activation.Engine, sched *scheduler.Scheduler, evaluator expr.Evaluator, logger *slog.Logger) *Service {
	return &Service{
		persistence:    p,
		engine:         engine,
		scheduler:      sched,
		evaluator:      evaluator,
		logger:         logger.With("module", "service"),
		idempotencyTTL: models.DefaultIdempotencyTTL,
		nowFn:          func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(nowFn func() time.Time) *Service {
	s.nowFn = nowFn

	return s
}

// ReportEventRequest describes one trigger event.
type ReportEventRequest struct {
	AppID            string         `json:"app_id"             validate:"required"`
	TriggerKey       string         `json:"trigger_key"        validate:"required"`
	Payload          map[string]any `json:"payload"`
	ExternalEntityID string         `json:"external_entity_id,omitempty"`
	IdempotencyKey   string         `json:"idempotency_key,omitempty"`
	// ScheduleAt, when set, parks every produced activation until the
	// given time instead of starting it immediately.
	ScheduleAt *time.Time `json:"schedule_at,omitempty"`
}

// ReportEventResult lists the activations produced by one event.
type ReportEventResult struct {
	ActivationIDs []string `json:"activation_ids"`
	// Deduplicated is true when the idempotency key matched a prior
	// report and the stored result was returned unchanged.
	Deduplicated bool `json:"deduplicated"`
}

// ReportEvent fans a trigger event out to every active automation
// listening on (appID, triggerKey) whose filters pass. Events carrying an
// idempotency key are deduplicated within the TTL: a repeat returns the
// original activation ids without creating anything.
func (s *Service) ReportEvent(ctx context.Context, req ReportEventRequest) (*ReportEventResult, error) {
	now := s.nowFn()

	if req.IdempotencyKey != "" {
		record, err := s.persistence.IdempotencyRepository().IdempotencyRecord(ctx, req.IdempotencyKey, req.AppID, req.TriggerKey)
		if err != nil && !persistence.IsIdempotencyRecordNotFound(err) {
			return nil, err
		}

		if record != nil && !record.Expired(now) {
			s.logger.InfoContext(ctx, "Event deduplicated by idempotency key",
				"app_id", req.AppID, "trigger_key", req.TriggerKey)

			return &ReportEventResult{ActivationIDs: record.ActivationIDs, Deduplicated: true}, nil
		}
	}

	automations, err := s.persistence.AutomationRepository().ActiveByTrigger(ctx, req.AppID, req.TriggerKey)
	if err != nil {
		return nil, err
	}

	activationIDs := make([]string, 0, len(automations))

	for _, automation := range automations {
		if !s.filtersPass(ctx, automation, req.Payload, now) {
			continue
		}

		act, err := s.engine.Activate(ctx, automation, req.Payload, activation.ActivateOptions{
			ExternalEntityID: req.ExternalEntityID,
			ScheduleAt:       req.ScheduleAt,
		})
		if err != nil {
			// A structurally broken automation must not block the
			// event for its siblings.
			if graph.IsConfigurationError(err) {
				s.logger.ErrorContext(ctx, "Skipping invalid automation",
					"automation_id", automation.ID, "error", err)

				continue
			}

			return nil, err
		}

		activationIDs = append(activationIDs, act.ID)
	}

	if req.IdempotencyKey != "" {
		record := &models.IdempotencyRecord{
			Key:           req.IdempotencyKey,
			AppID:         req.AppID,
			TriggerKey:    req.TriggerKey,
			ActivationIDs: activationIDs,
			CreatedAt:     now,
			ExpiresAt:     now.Add(s.idempotencyTTL),
		}

		if err := s.persistence.IdempotencyRepository().SaveIdempotencyRecord(ctx, record); err != nil {
			s.logger.ErrorContext(ctx, "Failed to save idempotency record",
				"app_id", req.AppID, "trigger_key", req.TriggerKey, "error", err)
		}
	}

	return &ReportEventResult{ActivationIDs: activationIDs}, nil
}

// BulkReportEvent reports a batch of events in order. Items fail
// independently; the slice holds one result or one error sentinel per item.
func (s *Service) BulkReportEvent(ctx context.Context, reqs []ReportEventRequest) []BulkReportItem {
	results := make([]BulkReportItem, 0, len(reqs))

	for _, req := range reqs {
		result, err := s.ReportEvent(ctx, req)
		if err != nil {
			results = append(results, BulkReportItem{Error: err.Error()})

			continue
		}

		results = append(results, BulkReportItem{Result: result})
	}

	return results
}

// BulkReportItem is one outcome in a bulk report.
type BulkReportItem struct {
	Result *ReportEventResult `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// CancelEventRequest selects activations to cancel by their trigger key
// and the external entity that started them.
type CancelEventRequest struct {
	TriggerKey       string `json:"trigger_key"        validate:"required"`
	ExternalEntityID string `json:"external_entity_id" validate:"required"`
	Reason           string `json:"reason,omitempty"`
}

// CancelEvent cancels every non-terminal activation matching the request.
// Cancelling an already finished activation is a no-op, so the operation
// is idempotent.
func (s *Service) CancelEvent(ctx context.Context, req CancelEventRequest) ([]string, error) {
	activations, err := s.persistence.ActivationRepository().ActivationsByEntity(ctx, req.ExternalEntityID, req.TriggerKey)
	if err != nil {
		return nil, err
	}

	cancelled := make([]string, 0, len(activations))

	for _, act := range activations {
		if err := s.engine.Cancel(ctx, act.ID, req.Reason, "report"); err != nil {
			s.logger.ErrorContext(ctx, "Failed to cancel activation",
				"activation_id", act.ID, "error", err)

			continue
		}

		cancelled = append(cancelled, act.ID)
	}

	return cancelled, nil
}

// BulkCancelEvent cancels a batch of events independently.
func (s *Service) BulkCancelEvent(ctx context.Context, reqs []CancelEventRequest) [][]string {
	results := make([][]string, 0, len(reqs))

	for _, req := range reqs {
		cancelled, err := s.CancelEvent(ctx, req)
		if err != nil {
			s.logger.ErrorContext(ctx, "Bulk cancel item failed",
				"trigger_key", req.TriggerKey, "error", err)

			results = append(results, nil)

			continue
		}

		results = append(results, cancelled)
	}

	return results
}

// ScheduleEventRequest asks for a trigger event to be reported later.
type ScheduleEventRequest struct {
	Identifier   string         `json:"identifier"    validate:"required"`
	ScheduleDate time.Time      `json:"schedule_date" validate:"required"`
	Overrideable bool           `json:"overrideable"`
	AppID        string         `json:"app_id"        validate:"required"`
	TriggerKey   string         `json:"trigger_key"   validate:"required"`
	Payload      map[string]any `json:"payload"`
}

// ScheduleEvent creates a durable schedule that reports the event when it
// fires. The identifier deduplicates: see Scheduler.Schedule for the
// overrideable rules. The returned bool reports whether the request took
// effect.
func (s *Service) ScheduleEvent(ctx context.Context, req ScheduleEventRequest) (*models.Schedule, bool, error) {
	payload := map[string]any{
		"app_id":      req.AppID,
		"trigger_key": req.TriggerKey,
		"payload":     req.Payload,
	}

	return s.scheduler.Schedule(ctx, scheduler.Request{
		Identifier:   req.Identifier,
		ScheduleDate: req.ScheduleDate,
		EventPayload: payload,
		Overrideable: req.Overrideable,
	})
}

// CancelScheduleRequest selects pending schedules to cancel. Exactly one
// selector should be set; IdentifierPattern uses path.Match glob syntax
// against the identifier.
type CancelScheduleRequest struct {
	ID                string `json:"id,omitempty"`
	Identifier        string `json:"identifier,omitempty"`
	IdentifierPattern string `json:"identifier_pattern,omitempty"`
	CorrelationID     string `json:"correlation_id,omitempty"`
}

// CancelPendingSchedule cancels pending schedules by id, exact
// identifier, identifier glob pattern or correlation id.
func (s *Service) CancelPendingSchedule(ctx context.Context, req CancelScheduleRequest) ([]*models.Schedule, error) {
	return s.scheduler.Cancel(ctx, persistence.ScheduleMatch{
		ID:                req.ID,
		Identifier:        req.Identifier,
		IdentifierPattern: req.IdentifierPattern,
		CorrelationID:     req.CorrelationID,
	})
}

// Resume routes a fired schedule: activation-bound schedules go to the
// engine, trigger-event schedules are reported as fresh events.
func (s *Service) Resume(ctx context.Context, schedule *models.Schedule) error {
	if schedule.ActivationID != "" {
		return s.engine.Resume(ctx, schedule)
	}

	appID, _ := schedule.EventPayload["app_id"].(string)
	triggerKey, _ := schedule.EventPayload["trigger_key"].(string)

	if appID == "" || triggerKey == "" {
		s.logger.WarnContext(ctx, "Fired schedule carries no event to report",
			"schedule_id", schedule.ID, "identifier", schedule.Identifier)

		return nil
	}

	payload, _ := schedule.EventPayload["payload"].(map[string]any)

	_, err := s.ReportEvent(ctx, ReportEventRequest{
		AppID:      appID,
		TriggerKey: triggerKey,
		Payload:    payload,
	})

	return err
}

// ActionCompleted finishes an async app-defined action.
func (s *Service) ActionCompleted(ctx context.Context, executionID string, output map[string]any, errorReason string) error {
	return s.engine.ActionCompleted(ctx, executionID, output, errorReason)
}

// RunAutomation activates one automation directly, bypassing trigger
// matching and filters. Archived and deleted automations cannot run.
func (s *Service) RunAutomation(ctx context.Context, automationID string, payload map[string]any) (*models.Activation, error) {
	automation, err := s.persistence.AutomationRepository().AutomationByID(ctx, automationID)
	if err != nil {
		return nil, err
	}

	if automation.Status == models.AutomationStatusArchived || automation.DeletedAt != nil {
		return nil, persistence.ErrAutomationNotFound
	}

	return s.engine.Activate(ctx, automation, payload, activation.ActivateOptions{})
}

// filtersPass evaluates every trigger filter; all must hold. An
// evaluation failure counts as a non-match for that automation rather
// than failing the whole event.
func (s *Service) filtersPass(ctx context.Context, automation *models.Automation, payload map[string]any, now time.Time) bool {
	for _, filter := range automation.Trigger.Filters {
		ok, err := expr.EvaluateBool(s.evaluator, filter, payload, now)
		if err != nil {
			s.logger.WarnContext(ctx, "Trigger filter evaluation failed, treating as non-match",
				"automation_id", automation.ID, "filter", filter, "error", err)

			return false
		}

		if !ok {
			return false
		}
	}

	return true
}
