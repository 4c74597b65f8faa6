// Package main provides the Trigon engine runner: the schedule poller plus
// an audit subscription on the activation event stream.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/trigonhq/trigon/pkg/cmd"
	"github.com/trigonhq/trigon/pkg/eventbus"
	"github.com/trigonhq/trigon/pkg/events"
	"github.com/trigonhq/trigon/pkg/expr"
	"github.com/trigonhq/trigon/pkg/otelhelper"
	"github.com/trigonhq/trigon/pkg/persistence"
	"github.com/trigonhq/trigon/pkg/ratelimit"
)

type Runner struct {
	id          string
	persistence persistence.Persistence
	eventBus    *eventbus.WatermillEventBus
	limiter     ratelimit.Limiter
	tracing     bool
	logger      *slog.Logger
}

func NewRunner(
	id string,
	p persistence.Persistence,
	eventBus *eventbus.WatermillEventBus,
	limiter ratelimit.Limiter,
	tracing bool,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		id:          id,
		persistence: p,
		eventBus:    eventBus,
		limiter:     limiter,
		tracing:     tracing,
		logger:      logger,
	}
}

// Start runs until the context is cancelled or a termination signal arrives.
func (r *Runner) Start(ctx context.Context) {
	rCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.logger.Info("Starting engine")
	r.handleSignals(cancel)

	if r.tracing {
		tracer, err := otelhelper.NewTracer(rCtx, "trigon-engine")
		if err != nil {
			r.logger.Error("Failed to initialize tracer", "error", err)
		} else {
			r.eventBus.WithTracer(tracer)
		}
	}

	evaluator := expr.NewGojaEvaluator()
	registry := cmd.NewRegistry(r.logger, evaluator)

	_, sched := cmd.NewService(r.persistence, r.eventBus, registry, r.limiter, evaluator, r.logger)

	r.subscribeAuditLog(rCtx)

	if err := sched.Start(rCtx); err != nil {
		r.logger.Error("Failed to start scheduler", "error", err)

		return
	}

	<-rCtx.Done()
	r.logger.Info("Engine context cancelled, stopping")

	if err := sched.Stop(context.WithoutCancel(rCtx)); err != nil {
		r.logger.Error("Failed to stop scheduler", "error", err)
	}
}

func (r *Runner) handleSignals(cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signals
		r.logger.Info("Received signal", "signal", sig)
		cancel()
	}()
}

// subscribeAuditLog mirrors the activation event stream into the log.
func (r *Runner) subscribeAuditLog(ctx context.Context) {
	_ = r.eventBus.Handle(events.ActivationStatusChangedEvent, func(ctx context.Context, event any) error {
		e, ok := event.(*events.ActivationStatusChanged)
		if !ok {
			return nil
		}

		r.logger.InfoContext(ctx, "Activation status changed",
			"activation_id", e.ActivationID, "status", e.Status)

		return nil
	})

	_ = r.eventBus.Handle(events.ActivationActionStatusChangedEvent, func(ctx context.Context, event any) error {
		e, ok := event.(*events.ActivationActionStatusChanged)
		if !ok {
			return nil
		}

		r.logger.InfoContext(ctx, "Action status changed",
			"activation_id", e.ActivationID, "action_id", e.ActionID, "status", e.Status)

		return nil
	})

	if err := r.eventBus.Subscribe(ctx); err != nil {
		r.logger.Error("Failed to subscribe to event stream", "error", err)
	}
}
