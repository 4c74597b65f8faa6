package file

import (
	"context"
	"encoding/json"

	"github.com/trigonhq/trigon/pkg/models"
	"github.com/trigonhq/trigon/pkg/persistence"
)

const automationsDir = "automations"

// AutomationRepository stores one JSON document per automation.
type AutomationRepository struct {
	persistence *Persistence
}

func (r *AutomationRepository) SaveAutomation(_ context.Context, automation *models.Automation) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	if err := r.persistence.write(automationsDir, automation.ID, automation); err != nil {
		return persistence.NewStorageError("SaveAutomation", automation.ID, err)
	}

	return nil
}

func (r *AutomationRepository) AutomationByID(_ context.Context, id string) (*models.Automation, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	var automation models.Automation
	if err := r.persistence.read(automationsDir, id, &automation, persistence.ErrAutomationNotFound); err != nil {
		return nil, err
	}

	return &automation, nil
}

func (r *AutomationRepository) Automations(_ context.Context) ([]*models.Automation, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	var automations []*models.Automation

	err := r.persistence.list(automationsDir, func(data []byte) error {
		var automation models.Automation
		if err := json.Unmarshal(data, &automation); err != nil {
			return err
		}

		automations = append(automations, &automation)

		return nil
	})
	if err != nil {
		return nil, persistence.NewStorageError("Automations", "", err)
	}

	return automations, nil
}

func (r *AutomationRepository) ActiveByTrigger(ctx context.Context, appID, triggerKey string) ([]*models.Automation, error) {
	automations, err := r.Automations(ctx)
	if err != nil {
		return nil, err
	}

	var matched []*models.Automation

	for _, automation := range automations {
		if !automation.IsActive() || automation.Trigger == nil {
			continue
		}

		if automation.Trigger.AppID == appID && automation.Trigger.TriggerKey == triggerKey {
			matched = append(matched, automation)
		}
	}

	return matched, nil
}

func (r *AutomationRepository) DeleteAutomation(_ context.Context, id string) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	if err := r.persistence.remove(automationsDir, id); err != nil {
		return persistence.NewStorageError("DeleteAutomation", id, err)
	}

	return nil
}
