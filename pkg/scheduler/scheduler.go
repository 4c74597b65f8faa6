// Package scheduler owns durable time-based work: pending-delay schedules
// created by running activations and recurring cron trigger schedules. A
// centralized poller claims due entries and hands them to the engine, so
// restarts never lose a pending delay.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/trigonhq/trigon/pkg/eventbus"
	"github.com/trigonhq/trigon/pkg/events"
	"github.com/trigonhq/trigon/pkg/models"
	"github.com/trigonhq/trigon/pkg/persistence"
)

const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 100
)

// ResumeFunc is invoked for every claimed due schedule.
type ResumeFunc func(ctx context.Context, schedule *models.Schedule) error

// TriggerFireFunc is invoked for every due recurring trigger schedule.
type TriggerFireFunc func(ctx context.Context, schedule *models.TriggerSchedule) error

// Request describes a schedule to be created. Identifier is the
// deduplication key; Overrideable decides what happens when a later
// request reuses the identifier while this schedule is still pending.
type Request struct {
	Identifier        string
	ScheduleDate      time.Time
	EventPayload      map[string]any
	Overrideable      bool
	ActivationID      string
	ScheduledActionID string
	CorrelationID     string
}

// Scheduler polls persistence for due schedules and claims each one
// before resuming it, so concurrent engine instances never double-fire.
type Scheduler struct {
	schedules persistence.ScheduleRepository
	eventBus  eventbus.EventPublisher
	logger    *slog.Logger

	resume      ResumeFunc
	triggerFire TriggerFireFunc

	pollInterval time.Duration
	batchSize    int
	nowFn        func() time.Time

	ticker  *time.Ticker
	done    chan bool
	started bool
	mu      sync.Mutex
}

// NewScheduler creates a scheduler over the given repository. The resume
// callback runs once per claimed schedule.
func NewScheduler(schedules persistence.ScheduleRepository, eventBus eventbus.EventPublisher, logger *slog.Logger, resume ResumeFunc) *Scheduler {
	return &Scheduler{
		schedules:    schedules,
		eventBus:     eventBus,
		logger:       logger.With("module", "scheduler"),
		resume:       resume,
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
		nowFn:        func() time.Time { return time.Now().UTC() },
	}
}

// WithTriggerFire registers the callback for recurring trigger schedules.
func (s *Scheduler) WithTriggerFire(fn TriggerFireFunc) *Scheduler {
	s.triggerFire = fn

	return s
}

// WithPollInterval overrides the default poll interval.
func (s *Scheduler) WithPollInterval(interval time.Duration) *Scheduler {
	s.pollInterval = interval

	return s
}

// WithNow overrides the clock, for tests.
func (s *Scheduler) WithNow(nowFn func() time.Time) *Scheduler {
	s.nowFn = nowFn

	return s
}

// Schedule creates a pending schedule or applies the deduplication rule:
// when a pending schedule with the same identifier exists, an overrideable
// one is replaced in place and a non-overrideable one wins, dropping the
// new request. Creation and override are atomic repository operations, so
// concurrent requests for one identifier settle on a single pending
// schedule; losing a race re-reads the winner and reapplies the rule.
// The returned bool reports whether the request took effect.
func (s *Scheduler) Schedule(ctx context.Context, req Request) (*models.Schedule, bool, error) {
	for {
		now := s.nowFn()

		existing, err := s.schedules.PendingByIdentifier(ctx, req.Identifier)
		if err != nil {
			return nil, false, err
		}

		if existing != nil {
			if !existing.Overrideable {
				s.logger.InfoContext(ctx, "Schedule request dropped, pending schedule is not overrideable",
					"identifier", req.Identifier, "schedule_id", existing.ID)

				return existing, false, nil
			}

			existing.ScheduleDate = req.ScheduleDate
			existing.EventPayload = req.EventPayload
			existing.Overrideable = req.Overrideable
			existing.UpdatedAt = now

			var overridden bool

			err := s.withRetry(ctx, func(ctx context.Context) error {
				var err error
				overridden, err = s.schedules.OverridePendingSchedule(ctx, existing)

				return err
			})
			if err != nil {
				return nil, false, err
			}

			if !overridden {
				// The schedule fired or was cancelled between the read and
				// the write; start over against the current state.
				continue
			}

			s.logger.InfoContext(ctx, "Pending schedule overridden",
				"identifier", req.Identifier, "schedule_id", existing.ID, "schedule_date", existing.ScheduleDate)

			return existing, true, nil
		}

		schedule, err := models.NewSchedule(uuid.New().String(), req.Identifier, req.ScheduleDate, now)
		if err != nil {
			return nil, false, err
		}

		schedule.EventPayload = req.EventPayload
		schedule.Overrideable = req.Overrideable
		schedule.ActivationID = req.ActivationID
		schedule.ScheduledActionID = req.ScheduledActionID
		schedule.CorrelationID = req.CorrelationID

		var created bool

		err = s.withRetry(ctx, func(ctx context.Context) error {
			var err error
			created, err = s.schedules.CreateSchedule(ctx, schedule)

			return err
		})
		if err != nil {
			return nil, false, err
		}

		if !created {
			// A concurrent request created the pending schedule first.
			continue
		}

		s.logger.InfoContext(ctx, "Schedule created",
			"identifier", req.Identifier, "schedule_id", schedule.ID, "schedule_date", schedule.ScheduleDate)

		return schedule, true, nil
	}
}

// Cancel cancels every pending schedule matching the selector. Cancelling
// schedules that are already done or cancelled is a no-op, so the
// operation is idempotent and a fired schedule always stays fired.
func (s *Scheduler) Cancel(ctx context.Context, match persistence.ScheduleMatch) ([]*models.Schedule, error) {
	cancelled, err := s.schedules.CancelSchedules(ctx, match)
	if err != nil {
		return nil, err
	}

	for _, schedule := range cancelled {
		event := events.ScheduleCancelled{
			BaseEvent:  events.NewBaseEvent(events.ScheduleCancelledEvent, ""),
			ScheduleID: schedule.ID,
			Identifier: schedule.Identifier,
		}

		if err := s.eventBus.Publish(ctx, schedule.ID, event); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish schedule cancelled event",
				"schedule_id", schedule.ID, "error", err)
		}
	}

	return cancelled, nil
}

// Start begins the centralized poller.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.InfoContext(ctx, "Starting scheduler poller", "poll_interval", s.pollInterval)

	s.ticker = time.NewTicker(s.pollInterval)
	s.done = make(chan bool)
	s.started = true

	go s.poll(ctx)

	return nil
}

// Stop shuts the poller down.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.InfoContext(ctx, "Stopping scheduler poller")

	if s.ticker != nil {
		s.ticker.Stop()
	}

	select {
	case s.done <- true:
	default:
	}

	s.started = false

	return nil
}

func (s *Scheduler) poll(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-s.ticker.C:
			s.processDueSchedules(ctx)
			s.processDueTriggerSchedules(ctx)
		}
	}
}

// processDueSchedules claims and resumes every due pending schedule. The
// claim is a compare-and-set, so a schedule cancelled after being listed
// here is silently skipped and one fired concurrently elsewhere is not
// fired twice.
func (s *Scheduler) processDueSchedules(ctx context.Context) {
	now := s.nowFn()

	due, err := s.schedules.DueSchedules(ctx, now, s.batchSize)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to query due schedules", "error", err)

		return
	}

	for _, schedule := range due {
		claimed, err := s.schedules.ClaimSchedule(ctx, schedule.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to claim schedule", "schedule_id", schedule.ID, "error", err)

			continue
		}

		if !claimed {
			continue
		}

		event := events.ScheduleFired{
			BaseEvent:    events.NewBaseEvent(events.ScheduleFiredEvent, ""),
			ScheduleID:   schedule.ID,
			Identifier:   schedule.Identifier,
			ActivationID: schedule.ActivationID,
		}

		if err := s.eventBus.Publish(ctx, schedule.ID, event); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish schedule fired event",
				"schedule_id", schedule.ID, "error", err)
		}

		if err := s.resume(ctx, schedule); err != nil {
			s.logger.ErrorContext(ctx, "Failed to resume schedule",
				"schedule_id", schedule.ID, "identifier", schedule.Identifier, "error", err)
		}
	}
}

// processDueTriggerSchedules fires due recurring schedules and advances
// their next due time.
func (s *Scheduler) processDueTriggerSchedules(ctx context.Context) {
	if s.triggerFire == nil {
		return
	}

	now := s.nowFn()

	due, err := s.schedules.DueTriggerSchedules(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to query due trigger schedules", "error", err)

		return
	}

	for _, schedule := range due {
		if err := s.triggerFire(ctx, schedule); err != nil {
			s.logger.ErrorContext(ctx, "Failed to fire trigger schedule",
				"trigger_schedule_id", schedule.ID, "error", err)

			continue
		}

		if err := schedule.Advance(now); err != nil {
			s.logger.ErrorContext(ctx, "Failed to advance trigger schedule",
				"trigger_schedule_id", schedule.ID, "cron", schedule.CronExpression, "error", err)

			continue
		}

		if err := s.schedules.SaveTriggerSchedule(ctx, schedule); err != nil {
			s.logger.ErrorContext(ctx, "Failed to save trigger schedule",
				"trigger_schedule_id", schedule.ID, "error", err)
		}
	}
}

// withRetry runs a storage write, retrying transient failures with
// exponential backoff.
func (s *Scheduler) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return retry.RetryableError(err)
		}

		return nil
	})
}
