package cmd

import (
	"log/slog"

	"github.com/trigonhq/trigon/pkg/actions/httprequest"
	logaction "github.com/trigonhq/trigon/pkg/actions/log"
	"github.com/trigonhq/trigon/pkg/actions/transform"
	"github.com/trigonhq/trigon/pkg/expr"
	"github.com/trigonhq/trigon/pkg/registry"
)

func registerNativeExecutors(reg *registry.Registry, evaluator expr.Evaluator) {
	reg.RegisterExecutor(&logaction.Factory{Evaluator: evaluator})
	reg.RegisterExecutor(&httprequest.Factory{Evaluator: evaluator})
	reg.RegisterExecutor(&transform.Factory{Evaluator: evaluator})
}

func NewRegistry(logger *slog.Logger, evaluator expr.Evaluator) *registry.Registry {
	reg := registry.NewRegistry(logger)

	registerNativeExecutors(reg, evaluator)

	return reg
}
