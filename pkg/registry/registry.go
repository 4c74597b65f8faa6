// Package registry maps (appID, actionKey) pairs to action executor
// factories and validates action configuration against each factory's
// schema before an executor is built.
package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/xeipuuv/gojsonschema"

	"github.com/trigonhq/trigon/pkg/protocol"
)

// Registry holds the executor factories known to this engine instance.
type Registry struct {
	logger    *slog.Logger
	factories map[string]protocol.ExecutorFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		factories: make(map[string]protocol.ExecutorFactory),
	}
}

// RegisterExecutor adds a factory under its ID, replacing any previous
// registration.
func (r *Registry) RegisterExecutor(factory protocol.ExecutorFactory) {
	r.factories[factory.ID()] = factory
}

// ExecutorIDs returns the registered executor IDs.
func (r *Registry) ExecutorIDs() []string {
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}

	return ids
}

// CreateExecutor validates the configuration against the factory schema
// and builds the executor for appID/actionKey.
func (r *Registry) CreateExecutor(appID, actionKey string, config map[string]any) (protocol.ActionExecutor, error) {
	id := appID + "/" + actionKey

	factory, ok := r.factories[id]
	if !ok {
		return nil, fmt.Errorf("action executor %q not registered", id)
	}

	if schema := factory.Schema(); schema != nil {
		if err := validateConfig(schema, config); err != nil {
			return nil, fmt.Errorf("invalid configuration for %q: %w", id, err)
		}
	}

	return factory.Create(config)
}

func validateConfig(schema, config map[string]any) error {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}

	configJSON, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(configJSON),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("configuration does not match schema: %s", errs[0].String())
		}

		return fmt.Errorf("configuration does not match schema")
	}

	return nil
}
