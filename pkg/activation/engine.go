// Package activation implements the activation engine: it walks an
// automation's action graph in response to a trigger event, evaluating
// conditions, suspending on delays, gating on rate limits and invoking
// app-defined executors, while recording per-action statuses durably so
// a restart or a resume picks up exactly where the walk stopped.
package activation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/trigonhq/trigon/pkg/eventbus"
	"github.com/trigonhq/trigon/pkg/events"
	"github.com/trigonhq/trigon/pkg/expr"
	"github.com/trigonhq/trigon/pkg/graph"
	"github.com/trigonhq/trigon/pkg/models"
	"github.com/trigonhq/trigon/pkg/persistence"
	"github.com/trigonhq/trigon/pkg/protocol"
	"github.com/trigonhq/trigon/pkg/ratelimit"
	"github.com/trigonhq/trigon/pkg/registry"
	"github.com/trigonhq/trigon/pkg/scheduler"
)

// Engine drives activations through their lifecycle. All methods are safe
// for concurrent use; per-action claims in persistence guarantee each
// action of an activation runs at most once even when entry points race.
type Engine struct {
	persistence persistence.Persistence
	scheduler   *scheduler.Scheduler
	registry    *registry.Registry
	limiter     ratelimit.Limiter
	evaluator   expr.Evaluator
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger

	nowFn func() time.Time
	idFn  func() string
}

// ActivateOptions carries per-activation inputs beyond the payload.
type ActivateOptions struct {
	ExternalEntityID string
	// ScheduleAt, when set to a future time, parks the activation in
	// SCHEDULED until a durable schedule fires.
	ScheduleAt *time.Time
}

// run bundles the state threaded through one graph walk.
type run struct {
	activation *models.Activation
	store      *graph.Store
	payload    map[string]any
}

// NewEngine wires an engine from its collaborators.
func NewEngine(
	p persistence.Persistence,
	sched *scheduler.Scheduler,
	reg *registry.Registry,
	limiter ratelimit.Limiter,
	evaluator expr.Evaluator,
	eventBus eventbus.EventPublisher,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		persistence: p,
		scheduler:   sched,
		registry:    reg,
		limiter:     limiter,
		evaluator:   evaluator,
		eventBus:    eventBus,
		logger:      logger.With("module", "activation"),
		nowFn:       func() time.Time { return time.Now().UTC() },
		idFn:        func() string { return uuid.New().String() },
	}
}

// WithNow overrides the clock, for tests.
func (e *Engine) WithNow(nowFn func() time.Time) *Engine {
	e.nowFn = nowFn

	return e
}

// Activate creates an activation for the automation and starts the graph
// walk, or parks it as SCHEDULED when a future start is requested. A
// structurally invalid automation is a fatal configuration error and no
// activation is created.
func (e *Engine) Activate(ctx context.Context, automation *models.Automation, payload map[string]any, opts ActivateOptions) (*models.Activation, error) {
	store, err := graph.NewStore(automation)
	if err != nil {
		return nil, err
	}

	now := e.nowFn()

	activation := &models.Activation{
		ID:                         e.idFn(),
		AutomationID:               automation.ID,
		ConfigurationCorrelationID: fmt.Sprintf("%s@%d", automation.ID, automation.Revision),
		Revision:                   automation.Revision,
		Status:                     models.ActivationStatusInitiated,
		TriggerKey:                 automation.Trigger.TriggerKey,
		ExternalEntityID:           opts.ExternalEntityID,
		Payload:                    graph.ClonePayload(payload),
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}

	if err := e.persistence.ActivationRepository().SaveActivation(ctx, activation); err != nil {
		return nil, err
	}

	e.emitActivationStatus(ctx, activation, &events.InitiatedInfo{
		TriggerKey:       activation.TriggerKey,
		ExternalEntityID: activation.ExternalEntityID,
	}, nil, nil, nil)

	if opts.ScheduleAt != nil && opts.ScheduleAt.After(now) {
		return e.parkScheduled(ctx, activation, *opts.ScheduleAt)
	}

	r := &run{activation: activation, store: store, payload: graph.ClonePayload(payload)}

	if err := e.start(ctx, r); err != nil {
		return activation, err
	}

	return activation, nil
}

// parkScheduled transitions the activation to SCHEDULED behind a durable
// schedule that will fire the real start.
func (e *Engine) parkScheduled(ctx context.Context, activation *models.Activation, at time.Time) (*models.Activation, error) {
	if err := e.transition(ctx, activation, models.ActivationStatusScheduled); err != nil {
		return nil, err
	}

	schedule, _, err := e.scheduler.Schedule(ctx, scheduler.Request{
		Identifier:    "activation:" + activation.ID,
		ScheduleDate:  at,
		ActivationID:  activation.ID,
		CorrelationID: activation.ID,
	})
	if err != nil {
		schedErr := &SchedulerError{Identifier: "activation:" + activation.ID, Err: err}
		e.failActivation(ctx, activation, "SCHEDULER_ERROR", schedErr.Error())

		return nil, schedErr
	}

	e.emitActivationStatus(ctx, activation, nil, &events.ScheduledInfo{
		ScheduleID:   schedule.ID,
		ScheduleDate: schedule.ScheduleDate,
	}, nil, nil)

	return activation, nil
}

// start moves the activation to STARTED and walks every root.
func (e *Engine) start(ctx context.Context, r *run) error {
	if err := e.transition(ctx, r.activation, models.ActivationStatusStarted); err != nil {
		return err
	}

	e.emitActivationStatus(ctx, r.activation, nil, nil, nil, nil)

	for _, rootID := range r.store.Roots() {
		if err := e.execute(ctx, r, rootID); err != nil {
			e.logger.ErrorContext(ctx, "Root action walk failed",
				"activation_id", r.activation.ID, "action_id", rootID, "error", err)
		}
	}

	return e.finish(ctx, r)
}

// Resume handles a fired schedule belonging to an activation: either the
// delayed start of a SCHEDULED activation or a delay action inside a
// running one.
func (e *Engine) Resume(ctx context.Context, schedule *models.Schedule) error {
	if schedule.ActivationID == "" {
		return nil
	}

	r, err := e.loadRun(ctx, schedule.ActivationID)
	if err != nil {
		return err
	}

	if r == nil || r.activation.Status.Terminal() {
		return nil
	}

	if schedule.ScheduledActionID == "" {
		if r.activation.Status != models.ActivationStatusScheduled {
			return nil
		}

		return e.start(ctx, r)
	}

	node, ok := r.store.Node(schedule.ScheduledActionID)
	if !ok || node.Delay == nil {
		return fmt.Errorf("schedule %s references unknown delay action %q", schedule.ID, schedule.ScheduledActionID)
	}

	status, err := e.persistence.ActivationRepository().ActionStatus(ctx, r.activation.ID, node.ID)
	if err != nil {
		return err
	}

	if status.Status != models.ActionStatusStarted {
		return nil
	}

	if err := e.completeAction(ctx, r, node, status, models.ActionStatusEnded, nil, node.Delay.PostActionIDs, ""); err != nil {
		return err
	}

	return e.finish(ctx, r)
}

// ActionCompleted finishes an async app-defined action identified by its
// execution id. Repeated callbacks for the same execution are no-ops.
func (e *Engine) ActionCompleted(ctx context.Context, executionID string, output map[string]any, errorReason string) error {
	status, err := e.persistence.ActivationRepository().ActionStatusByExecutionID(ctx, executionID)
	if err != nil {
		return err
	}

	if status.Status.Terminal() {
		return nil
	}

	r, err := e.loadRun(ctx, status.ActivationID)
	if err != nil {
		return err
	}

	if r == nil || r.activation.Status.Terminal() {
		return nil
	}

	node, ok := r.store.Node(status.ActionID)
	if !ok || node.AppDefined == nil {
		return fmt.Errorf("execution %s references unknown app action %q", executionID, status.ActionID)
	}

	if errorReason != "" {
		if err := e.completeAction(ctx, r, node, status, models.ActionStatusFailed, nil, nil, errorReason); err != nil {
			return err
		}
	} else {
		if err := e.completeAction(ctx, r, node, status, models.ActionStatusEnded, output, node.AppDefined.PostActionIDs, ""); err != nil {
			return err
		}
	}

	return e.finish(ctx, r)
}

// Cancel cooperatively cancels an activation: the status flips, pending
// schedules are cancelled, and in-flight branches stop at their next
// action boundary. Cancelling a terminal activation is a no-op.
func (e *Engine) Cancel(ctx context.Context, activationID, reason, cancelledBy string) error {
	activation, err := e.persistence.ActivationRepository().ActivationByID(ctx, activationID)
	if err != nil {
		return err
	}

	if activation.Status.Terminal() {
		return nil
	}

	if err := e.transition(ctx, activation, models.ActivationStatusCancelled); err != nil {
		return err
	}

	if _, err := e.scheduler.Cancel(ctx, persistence.ScheduleMatch{CorrelationID: activationID}); err != nil {
		e.logger.ErrorContext(ctx, "Failed to cancel activation schedules",
			"activation_id", activationID, "error", err)
	}

	e.emitActivationStatus(ctx, activation, nil, nil, &events.CancelledInfo{
		Reason:      reason,
		CancelledBy: cancelledBy,
	}, nil)

	return nil
}

// loadRun reconstructs the walk state for a persisted activation.
func (e *Engine) loadRun(ctx context.Context, activationID string) (*run, error) {
	activation, err := e.persistence.ActivationRepository().ActivationByID(ctx, activationID)
	if err != nil {
		return nil, err
	}

	automation, err := e.persistence.AutomationRepository().AutomationByID(ctx, activation.AutomationID)
	if err != nil {
		return nil, err
	}

	store, err := graph.NewStore(automation)
	if err != nil {
		return nil, err
	}

	payload := activation.Payload
	if payload == nil {
		payload = make(map[string]any)
	}

	return &run{activation: activation, store: store, payload: graph.ClonePayload(payload)}, nil
}

// execute claims and runs one action. A lost claim means another entry
// point already owns it.
func (e *Engine) execute(ctx context.Context, r *run, actionID string) error {
	if cancelled, err := e.activationStopped(ctx, r); err != nil || cancelled {
		return err
	}

	node, ok := r.store.Node(actionID)
	if !ok {
		return fmt.Errorf("activation %s references unknown action %q", r.activation.ID, actionID)
	}

	status := &models.ActionStatus{
		ActivationID: r.activation.ID,
		ActionID:     actionID,
		Status:       models.ActionStatusStarted,
		StartedAt:    e.nowFn(),
	}

	if node.AppDefined != nil && node.AppDefined.Async {
		status.ExecutionID = e.idFn()
	}

	claimed, err := e.persistence.ActivationRepository().ClaimAction(ctx, status)
	if err != nil {
		return err
	}

	if !claimed {
		return nil
	}

	e.emitActionStatus(ctx, r, node, status)

	switch {
	case node.Condition != nil:
		return e.runCondition(ctx, r, node, status)
	case node.Delay != nil:
		return e.runDelay(ctx, r, node, status)
	case node.RateLimit != nil:
		return e.runRateLimit(ctx, r, node, status)
	case node.Output != nil:
		return e.runOutput(ctx, r, node, status)
	case node.AppDefined != nil:
		return e.runAppDefined(ctx, r, node, status)
	default:
		return e.completeAction(ctx, r, node, status, models.ActionStatusFailed, nil, nil, "action node has no variant")
	}
}

func (e *Engine) runCondition(ctx context.Context, r *run, node *models.ActionNode, status *models.ActionStatus) error {
	holds, err := expr.EvaluateGroup(e.evaluator, node.Condition.Group, r.payload, e.nowFn())
	if err != nil {
		if !expr.IsEvaluationError(err) {
			return e.completeAction(ctx, r, node, status, models.ActionStatusFailed, nil, nil, err.Error())
		}

		// An expression that cannot evaluate does not hold: the walk takes
		// the false branch and the record keeps the reason.
		return e.completeAction(ctx, r, node, status, models.ActionStatusEnded,
			map[string]any{"result": false}, node.Condition.FalsePostActionIDs, err.Error())
	}

	next := node.Condition.TruePostActionIDs
	if !holds {
		next = node.Condition.FalsePostActionIDs
	}

	return e.completeAction(ctx, r, node, status, models.ActionStatusEnded,
		map[string]any{"result": holds}, next, "")
}

func (e *Engine) runDelay(ctx context.Context, r *run, node *models.ActionNode, status *models.ActionStatus) error {
	now := e.nowFn()

	due, err := e.delayDueDate(node.Delay, r.payload, now)
	if err != nil {
		return e.completeAction(ctx, r, node, status, models.ActionStatusFailed, nil, nil, err.Error())
	}

	// A due date that already passed is a zero delay, not an error.
	if !due.After(now) {
		return e.completeAction(ctx, r, node, status, models.ActionStatusEnded, nil, node.Delay.PostActionIDs, "")
	}

	if err := e.persistPayload(ctx, r); err != nil {
		return err
	}

	identifier := fmt.Sprintf("activation:%s:action:%s", r.activation.ID, node.ID)

	_, _, err = e.scheduler.Schedule(ctx, scheduler.Request{
		Identifier:        identifier,
		ScheduleDate:      due,
		ActivationID:      r.activation.ID,
		ScheduledActionID: node.ID,
		CorrelationID:     r.activation.ID,
	})
	if err != nil {
		schedErr := &SchedulerError{Identifier: identifier, Err: err}

		return e.completeAction(ctx, r, node, status, models.ActionStatusFailed, nil, nil, schedErr.Error())
	}

	e.logger.InfoContext(ctx, "Delay action suspended",
		"activation_id", r.activation.ID, "action_id", node.ID, "due", due)

	return nil
}

// delayDueDate resolves the delay target time: an explicit due-date
// expression wins over an offset expression, which wins over the static
// offset.
func (e *Engine) delayDueDate(delay *models.DelayAction, payload map[string]any, now time.Time) (time.Time, error) {
	if delay.DueDateExpression != "" {
		value, err := e.evaluator.Evaluate(delay.DueDateExpression, payload, now)
		if err != nil {
			return time.Time{}, err
		}

		switch v := value.(type) {
		case string:
			due, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return time.Time{}, expr.NewEvaluationError(delay.DueDateExpression, err)
			}

			return due, nil
		case float64:
			return time.UnixMilli(int64(v)).UTC(), nil
		default:
			return time.Time{}, expr.NewEvaluationError(delay.DueDateExpression,
				fmt.Errorf("due date must be an RFC 3339 string or epoch millis, got %T", value))
		}
	}

	if delay.OffsetExpression != "" {
		millis, err := expr.EvaluateNumber(e.evaluator, delay.OffsetExpression, payload, now)
		if err != nil {
			return time.Time{}, err
		}

		return now.Add(time.Duration(millis) * time.Millisecond), nil
	}

	return now.Add(delay.Offset), nil
}

func (e *Engine) runRateLimit(ctx context.Context, r *run, node *models.ActionNode, status *models.ActionStatus) error {
	now := e.nowFn()
	limit := node.RateLimit

	keyValue, err := e.evaluator.Evaluate(limit.KeyExpression, r.payload, now)
	if err != nil {
		return e.denyRateLimit(ctx, r, node, status, err)
	}

	key := fmt.Sprintf("%s:%v", node.ID, keyValue)

	maxActivations := limit.MaxActivations
	if limit.MaxActivationsExpression != "" {
		value, err := expr.EvaluateNumber(e.evaluator, limit.MaxActivationsExpression, r.payload, now)
		if err != nil {
			return e.denyRateLimit(ctx, r, node, status, err)
		}

		maxActivations = int64(value)
	}

	if maxActivations <= 0 {
		return e.completeAction(ctx, r, node, status, models.ActionStatusFailed, nil, nil,
			"rate limit max activations must be positive")
	}

	allowed, err := e.limiter.TryAcquire(ctx, key, maxActivations, limit.WindowDuration)
	if err != nil {
		return e.completeAction(ctx, r, node, status, models.ActionStatusFailed, nil, nil, err.Error())
	}

	// Being over the limit routes to the else branch; it is not a failure.
	next := limit.PostActionIDs
	if !allowed {
		next = limit.ElsePostActionIDs
	}

	return e.completeAction(ctx, r, node, status, models.ActionStatusEnded,
		map[string]any{"allowed": allowed, "key": key}, next, "")
}

// denyRateLimit resolves an expression failure on the gate: the gate
// denies and routes to the else branch, same as being over the limit.
// Anything that is not an expression failure fails the action.
func (e *Engine) denyRateLimit(ctx context.Context, r *run, node *models.ActionNode, status *models.ActionStatus, err error) error {
	if !expr.IsEvaluationError(err) {
		return e.completeAction(ctx, r, node, status, models.ActionStatusFailed, nil, nil, err.Error())
	}

	return e.completeAction(ctx, r, node, status, models.ActionStatusEnded,
		map[string]any{"allowed": false}, node.RateLimit.ElsePostActionIDs, err.Error())
}

func (e *Engine) runOutput(ctx context.Context, r *run, node *models.ActionNode, status *models.ActionStatus) error {
	now := e.nowFn()
	output := make(map[string]any, len(node.Output.Mapping))

	for field, expression := range node.Output.Mapping {
		value, err := e.evaluator.Evaluate(expression, r.payload, now)
		if err != nil {
			return e.completeAction(ctx, r, node, status, models.ActionStatusFailed, nil, nil, err.Error())
		}

		output[field] = value
	}

	if r.activation.Output == nil {
		r.activation.Output = make(map[string]any)
	}

	graph.MergeOutput(r.activation.Output, node.Namespace, output)

	if err := e.persistPayload(ctx, r); err != nil {
		return err
	}

	return e.completeAction(ctx, r, node, status, models.ActionStatusEnded, output, nil, "")
}

func (e *Engine) runAppDefined(ctx context.Context, r *run, node *models.ActionNode, status *models.ActionStatus) error {
	action := node.AppDefined

	executor, err := e.registry.CreateExecutor(action.AppID, action.ActionKey, action.Config)
	if err != nil {
		return e.completeAction(ctx, r, node, status, models.ActionStatusFailed, nil, nil, err.Error())
	}

	if action.Async {
		if err := e.persistPayload(ctx, r); err != nil {
			return err
		}
	}

	request := protocol.ExecutionRequest{
		ActivationID: r.activation.ID,
		ActionID:     node.ID,
		ExecutionID:  status.ExecutionID,
		Config:       action.Config,
		Payload:      graph.ClonePayload(r.payload),
	}

	result, err := executor.Execute(ctx, request, e.logger)
	if err != nil {
		actionErr := &ExternalActionError{AppID: action.AppID, ActionKey: action.ActionKey, Err: err}

		return e.completeAction(ctx, r, node, status, models.ActionStatusFailed, nil, nil, actionErr.Error())
	}

	if action.Async || result.Pending {
		e.logger.InfoContext(ctx, "Async action awaiting completion",
			"activation_id", r.activation.ID, "action_id", node.ID, "execution_id", status.ExecutionID)

		return nil
	}

	return e.completeAction(ctx, r, node, status, models.ActionStatusEnded, result.Output, action.PostActionIDs, "")
}

// completeAction records the terminal status, merges app output into the
// running payload, and advances every successor.
func (e *Engine) completeAction(ctx context.Context, r *run, node *models.ActionNode, status *models.ActionStatus, value models.ActionStatusValue, output map[string]any, next []string, errorReason string) error {
	now := e.nowFn()

	status.Status = value
	status.Output = output
	status.NextActionIDs = next
	status.ErrorReason = errorReason
	status.CompletedAt = &now

	if err := e.persistence.ActivationRepository().SaveActionStatus(ctx, status); err != nil {
		return err
	}

	e.emitActionStatus(ctx, r, node, status)

	if value == models.ActionStatusEnded && node.AppDefined != nil {
		graph.MergeOutput(r.payload, node.Namespace, output)
	}

	for _, successorID := range r.store.Successors(node.ID) {
		if err := e.advance(ctx, r, successorID); err != nil {
			e.logger.ErrorContext(ctx, "Failed to advance successor",
				"activation_id", r.activation.ID, "action_id", successorID, "error", err)
		}
	}

	return nil
}

// advance decides what happens to an action once one of its predecessors
// reached a terminal state: wait for the remaining predecessors, execute
// when at least one routed here, or skip when none did.
func (e *Engine) advance(ctx context.Context, r *run, actionID string) error {
	selected := false

	for _, predecessorID := range r.store.Predecessors(actionID) {
		status, err := e.persistence.ActivationRepository().ActionStatus(ctx, r.activation.ID, predecessorID)
		if err != nil {
			if persistence.IsActionStatusNotFound(err) {
				return nil
			}

			return err
		}

		if !status.Status.Terminal() {
			return nil
		}

		if status.RoutedTo(actionID) {
			selected = true
		}
	}

	if selected {
		return e.execute(ctx, r, actionID)
	}

	return e.skip(ctx, r, actionID)
}

// skip records a SKIPPED status and propagates the skip downstream, so
// joins behind a pruned branch resolve instead of waiting forever.
func (e *Engine) skip(ctx context.Context, r *run, actionID string) error {
	node, ok := r.store.Node(actionID)
	if !ok {
		return fmt.Errorf("activation %s references unknown action %q", r.activation.ID, actionID)
	}

	now := e.nowFn()
	status := &models.ActionStatus{
		ActivationID: r.activation.ID,
		ActionID:     actionID,
		Status:       models.ActionStatusSkipped,
		StartedAt:    now,
		CompletedAt:  &now,
	}

	claimed, err := e.persistence.ActivationRepository().ClaimAction(ctx, status)
	if err != nil {
		return err
	}

	if !claimed {
		return nil
	}

	e.emitActionStatus(ctx, r, node, status)

	for _, successorID := range r.store.Successors(actionID) {
		if err := e.advance(ctx, r, successorID); err != nil {
			e.logger.ErrorContext(ctx, "Failed to advance successor of skipped action",
				"activation_id", r.activation.ID, "action_id", successorID, "error", err)
		}
	}

	return nil
}

// finish ends the activation when nothing is left in flight: every
// recorded action is terminal, so no branch is suspended on a delay or an
// async completion.
func (e *Engine) finish(ctx context.Context, r *run) error {
	activation, err := e.persistence.ActivationRepository().ActivationByID(ctx, r.activation.ID)
	if err != nil {
		return err
	}

	if activation.Status != models.ActivationStatusStarted {
		return nil
	}

	statuses, err := e.persistence.ActivationRepository().ActionStatuses(ctx, r.activation.ID)
	if err != nil {
		return err
	}

	for _, status := range statuses {
		if !status.Status.Terminal() {
			return nil
		}
	}

	activation.Payload = r.payload
	activation.Output = r.activation.Output
	r.activation = activation

	if err := e.transition(ctx, activation, models.ActivationStatusEnded); err != nil {
		return err
	}

	e.emitActivationStatus(ctx, activation, nil, nil, nil, nil)

	return nil
}

// activationStopped reloads the activation and reports whether the walk
// should stop, which is how cancellation interrupts running branches.
func (e *Engine) activationStopped(ctx context.Context, r *run) (bool, error) {
	activation, err := e.persistence.ActivationRepository().ActivationByID(ctx, r.activation.ID)
	if err != nil {
		return false, err
	}

	return activation.Status.Terminal(), nil
}

// failActivation force-fails an activation outside the normal walk.
func (e *Engine) failActivation(ctx context.Context, activation *models.Activation, code, description string) {
	activation.Error = description

	if err := e.transition(ctx, activation, models.ActivationStatusFailed); err != nil {
		e.logger.ErrorContext(ctx, "Failed to mark activation failed",
			"activation_id", activation.ID, "error", err)

		return
	}

	e.emitActivationStatus(ctx, activation, nil, nil, nil, &events.FailedInfo{Code: code, Description: description})
}

// transition applies a status change and persists it.
func (e *Engine) transition(ctx context.Context, activation *models.Activation, to models.ActivationStatus) error {
	if err := activation.TransitionTo(to, e.nowFn()); err != nil {
		return err
	}

	return e.persistence.ActivationRepository().SaveActivation(ctx, activation)
}

// persistPayload saves the running payload before a suspension point.
func (e *Engine) persistPayload(ctx context.Context, r *run) error {
	r.activation.Payload = graph.ClonePayload(r.payload)
	r.activation.UpdatedAt = e.nowFn()

	return e.persistence.ActivationRepository().SaveActivation(ctx, r.activation)
}

func (e *Engine) emitActivationStatus(ctx context.Context, activation *models.Activation, initiated *events.InitiatedInfo, scheduled *events.ScheduledInfo, cancelled *events.CancelledInfo, failed *events.FailedInfo) {
	event := events.ActivationStatusChanged{
		BaseEvent:    events.NewBaseEvent(events.ActivationStatusChangedEvent, activation.AutomationID),
		ActivationID: activation.ID,
		Status:       activation.Status,
		Initiated:    initiated,
		Scheduled:    scheduled,
		Cancelled:    cancelled,
		Failed:       failed,
	}

	if err := e.eventBus.Publish(ctx, activation.ID, event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish activation status event",
			"activation_id", activation.ID, "status", activation.Status, "error", err)
	}
}

func (e *Engine) emitActionStatus(ctx context.Context, r *run, node *models.ActionNode, status *models.ActionStatus) {
	kind, _ := node.Kind()

	event := events.ActivationActionStatusChanged{
		BaseEvent:    events.NewBaseEvent(events.ActivationActionStatusChangedEvent, r.activation.AutomationID),
		ActivationID: status.ActivationID,
		ActionID:     status.ActionID,
		ActionKind:   kind,
		Status:       status.Status,
		ErrorReason:  status.ErrorReason,
	}

	if status.CompletedAt != nil {
		event.DurationMs = status.CompletedAt.Sub(status.StartedAt).Milliseconds()
	}

	if err := e.eventBus.Publish(ctx, status.ActivationID, event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish action status event",
			"activation_id", status.ActivationID, "action_id", status.ActionID, "error", err)
	}
}
