package registry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logaction "github.com/trigonhq/trigon/pkg/actions/log"
	"github.com/trigonhq/trigon/pkg/actions/transform"
	"github.com/trigonhq/trigon/pkg/expr"
	"github.com/trigonhq/trigon/pkg/protocol"
)

func newTestRegistry() *Registry {
	logger := slog.New(slog.DiscardHandler)
	evaluator := expr.NewGojaEvaluator()

	r := NewRegistry(logger)
	r.RegisterExecutor(&logaction.Factory{Evaluator: evaluator})
	r.RegisterExecutor(&transform.Factory{Evaluator: evaluator})

	return r
}

func TestCreateExecutor_UnknownActionKey(t *testing.T) {
	r := newTestRegistry()

	_, err := r.CreateExecutor("core", "does_not_exist", nil)
	assert.ErrorContains(t, err, "not registered")
}

func TestCreateExecutor_RejectsInvalidConfig(t *testing.T) {
	r := newTestRegistry()

	_, err := r.CreateExecutor("core", "log", map[string]any{"level": "info"})
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestCreateExecutor_BuildsAndRuns(t *testing.T) {
	r := newTestRegistry()

	executor, err := r.CreateExecutor("core", "transform", map[string]any{
		"mapping": map[string]any{
			"greeting": `{{ "hello " + name }}`,
		},
	})
	require.NoError(t, err)

	result, err := executor.Execute(context.Background(), protocol.ExecutionRequest{
		ActivationID: "act-1",
		ActionID:     "a1",
		Payload:      map[string]any{"name": "ada"},
	}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.Equal(t, "hello ada", result.Output["greeting"])
}
