// Package main provides the Trigon API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/trigonhq/trigon/pkg/cmd"
	"github.com/trigonhq/trigon/pkg/eventbus"
	"github.com/trigonhq/trigon/pkg/expr"
	"github.com/trigonhq/trigon/pkg/persistence"
	"github.com/trigonhq/trigon/pkg/ratelimit"
	"github.com/trigonhq/trigon/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    *eventbus.WatermillEventBus
	limiter     ratelimit.Limiter
	standalone  bool
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	p persistence.Persistence,
	eventBus *eventbus.WatermillEventBus,
	limiter ratelimit.Limiter,
	standalone bool,
) *API {
	return &API{
		logger:      logger,
		persistence: p,
		eventBus:    eventBus,
		limiter:     limiter,
		standalone:  standalone,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) Start(ctx context.Context, port int) error {
	evaluator := expr.NewGojaEvaluator()
	registry := cmd.NewRegistry(a.logger, evaluator)

	svc, sched := cmd.NewService(a.persistence, a.eventBus, registry, a.limiter, evaluator, a.logger)

	if a.standalone {
		if err := sched.Start(ctx); err != nil {
			return err
		}

		defer func() {
			if err := sched.Stop(ctx); err != nil {
				a.logger.ErrorContext(ctx, "Failed to stop scheduler", "error", err)
			}
		}()
	}

	handlers := web.NewAPIHandlers(svc, a.persistence, a.validate)
	app := web.NewApp(handlers)

	return app.Listen(":" + strconv.Itoa(port))
}
