package file

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"

	"github.com/trigonhq/trigon/pkg/models"
	"github.com/trigonhq/trigon/pkg/persistence"
)

const (
	activationsDir  = "activations"
	actionStatusDir = "action_statuses"
)

// ActivationRepository stores activations and per-action execution
// records. Action statuses live under action_statuses/<activationID>/.
type ActivationRepository struct {
	persistence *Persistence
}

func (r *ActivationRepository) SaveActivation(_ context.Context, activation *models.Activation) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	if err := r.persistence.write(activationsDir, activation.ID, activation); err != nil {
		return persistence.NewStorageError("SaveActivation", activation.ID, err)
	}

	return nil
}

func (r *ActivationRepository) ActivationByID(_ context.Context, id string) (*models.Activation, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	var activation models.Activation
	if err := r.persistence.read(activationsDir, id, &activation, persistence.ErrActivationNotFound); err != nil {
		return nil, err
	}

	return &activation, nil
}

func (r *ActivationRepository) ActivationsByEntity(_ context.Context, externalEntityID, triggerKey string) ([]*models.Activation, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	var matched []*models.Activation

	err := r.persistence.list(activationsDir, func(data []byte) error {
		var activation models.Activation
		if err := json.Unmarshal(data, &activation); err != nil {
			return err
		}

		if activation.Status.Terminal() {
			return nil
		}

		if activation.ExternalEntityID == externalEntityID && activation.TriggerKey == triggerKey {
			matched = append(matched, &activation)
		}

		return nil
	})
	if err != nil {
		return nil, persistence.NewStorageError("ActivationsByEntity", externalEntityID, err)
	}

	return matched, nil
}

func (r *ActivationRepository) ClaimAction(_ context.Context, status *models.ActionStatus) (bool, error) {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	dir := filepath.Join(actionStatusDir, status.ActivationID)

	var existing models.ActionStatus

	err := r.persistence.read(dir, status.ActionID, &existing, persistence.ErrActionStatusNotFound)
	if err == nil {
		return false, nil
	}

	if !errors.Is(err, persistence.ErrActionStatusNotFound) {
		return false, persistence.NewStorageError("ClaimAction", status.ActionID, err)
	}

	if err := r.persistence.write(dir, status.ActionID, status); err != nil {
		return false, persistence.NewStorageError("ClaimAction", status.ActionID, err)
	}

	return true, nil
}

func (r *ActivationRepository) SaveActionStatus(_ context.Context, status *models.ActionStatus) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	dir := filepath.Join(actionStatusDir, status.ActivationID)
	if err := r.persistence.write(dir, status.ActionID, status); err != nil {
		return persistence.NewStorageError("SaveActionStatus", status.ActionID, err)
	}

	return nil
}

func (r *ActivationRepository) ActionStatus(_ context.Context, activationID, actionID string) (*models.ActionStatus, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	var status models.ActionStatus

	dir := filepath.Join(actionStatusDir, activationID)
	if err := r.persistence.read(dir, actionID, &status, persistence.ErrActionStatusNotFound); err != nil {
		return nil, err
	}

	return &status, nil
}

func (r *ActivationRepository) ActionStatuses(_ context.Context, activationID string) ([]*models.ActionStatus, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	var statuses []*models.ActionStatus

	err := r.persistence.list(filepath.Join(actionStatusDir, activationID), func(data []byte) error {
		var status models.ActionStatus
		if err := json.Unmarshal(data, &status); err != nil {
			return err
		}

		statuses = append(statuses, &status)

		return nil
	})
	if err != nil {
		return nil, persistence.NewStorageError("ActionStatuses", activationID, err)
	}

	return statuses, nil
}

func (r *ActivationRepository) ActionStatusByExecutionID(_ context.Context, executionID string) (*models.ActionStatus, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	var found *models.ActionStatus

	// Scan per-activation directories; acceptable for the file backend,
	// the postgres backend indexes execution_id.
	entries, err := r.activationDirs()
	if err != nil {
		return nil, err
	}

	for _, activationID := range entries {
		err := r.persistence.list(filepath.Join(actionStatusDir, activationID), func(data []byte) error {
			var status models.ActionStatus
			if err := json.Unmarshal(data, &status); err != nil {
				return err
			}

			if status.ExecutionID == executionID {
				found = &status
			}

			return nil
		})
		if err != nil {
			return nil, persistence.NewStorageError("ActionStatusByExecutionID", executionID, err)
		}

		if found != nil {
			return found, nil
		}
	}

	return nil, persistence.ErrActionStatusNotFound
}

func (r *ActivationRepository) activationDirs() ([]string, error) {
	root := filepath.Join(r.persistence.root, actionStatusDir)

	entries, err := readDirNames(root)
	if err != nil {
		return nil, persistence.NewStorageError("ActionStatusByExecutionID", "", err)
	}

	return entries, nil
}
