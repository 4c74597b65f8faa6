package cmd

import (
	"context"
	"log/slog"

	"github.com/trigonhq/trigon/pkg/activation"
	"github.com/trigonhq/trigon/pkg/eventbus"
	"github.com/trigonhq/trigon/pkg/expr"
	"github.com/trigonhq/trigon/pkg/models"
	"github.com/trigonhq/trigon/pkg/persistence"
	"github.com/trigonhq/trigon/pkg/ratelimit"
	"github.com/trigonhq/trigon/pkg/registry"
	"github.com/trigonhq/trigon/pkg/scheduler"
	"github.com/trigonhq/trigon/pkg/service"
)

// NewService assembles the scheduler, activation engine and event service.
// The scheduler resumes through the service so fired trigger-event
// schedules are reported as fresh events.
func NewService(
	p persistence.Persistence,
	bus *eventbus.WatermillEventBus,
	reg *registry.Registry,
	limiter ratelimit.Limiter,
	evaluator expr.Evaluator,
	logger *slog.Logger,
) (*service.Service, *scheduler.Scheduler) {
	var svc *service.Service

	sched := scheduler.NewScheduler(p.ScheduleRepository(), bus, logger,
		func(ctx context.Context, schedule *models.Schedule) error {
			return svc.Resume(ctx, schedule)
		}).WithTriggerFire(func(ctx context.Context, ts *models.TriggerSchedule) error {
		_, err := svc.RunAutomation(ctx, ts.AutomationID, ts.EventPayload)

		return err
	})

	engine := activation.NewEngine(p, sched, reg, limiter, evaluator, bus, logger)
	svc = service.NewService(p, engine, sched, evaluator, logger)

	return svc, sched
}
