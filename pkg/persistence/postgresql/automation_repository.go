package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/trigonhq/trigon/pkg/models"
	"github.com/trigonhq/trigon/pkg/persistence"
)

const automationColumns = `
	id, name, description, status, revision,
	trigger_app_id, trigger_key, trigger_filters,
	root_action_ids, actions, origin, owner,
	created_at, updated_at, deleted_at
`

// AutomationRepository stores automation configurations in PostgreSQL.
// The action graph is a single JSONB document; trigger fields are
// flattened into columns so ActiveByTrigger can use an index.
type AutomationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *AutomationRepository) SaveAutomation(ctx context.Context, automation *models.Automation) error {
	filtersJSON, err := json.Marshal(automation.Trigger.Filters)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger filters: %w", err)
	}

	rootsJSON, err := json.Marshal(automation.RootActionIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal root action ids: %w", err)
	}

	actionsJSON, err := json.Marshal(automation.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	query := `
		INSERT INTO automations (` + automationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			revision = EXCLUDED.revision,
			trigger_app_id = EXCLUDED.trigger_app_id,
			trigger_key = EXCLUDED.trigger_key,
			trigger_filters = EXCLUDED.trigger_filters,
			root_action_ids = EXCLUDED.root_action_ids,
			actions = EXCLUDED.actions,
			origin = EXCLUDED.origin,
			owner = EXCLUDED.owner,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at
	`

	_, err = r.db.ExecContext(ctx, query,
		automation.ID,
		automation.Name,
		automation.Description,
		automation.Status,
		automation.Revision,
		automation.Trigger.AppID,
		automation.Trigger.TriggerKey,
		filtersJSON,
		rootsJSON,
		actionsJSON,
		automation.Origin,
		automation.Owner,
		automation.CreatedAt,
		automation.UpdatedAt,
		automation.DeletedAt,
	)
	if err != nil {
		return persistence.NewStorageError("SaveAutomation", automation.ID, err)
	}

	return nil
}

func (r *AutomationRepository) AutomationByID(ctx context.Context, id string) (*models.Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE id = $1 AND deleted_at IS NULL`

	automation, err := scanAutomation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrAutomationNotFound
		}

		return nil, persistence.NewStorageError("AutomationByID", id, err)
	}

	return automation, nil
}

func (r *AutomationRepository) Automations(ctx context.Context) ([]*models.Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE deleted_at IS NULL ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, persistence.NewStorageError("Automations", "", err)
	}
	defer rows.Close()

	return collectAutomations(rows)
}

func (r *AutomationRepository) ActiveByTrigger(ctx context.Context, appID, triggerKey string) ([]*models.Automation, error) {
	query := `
		SELECT ` + automationColumns + `
		FROM automations
		WHERE status = $1 AND trigger_app_id = $2 AND trigger_key = $3 AND deleted_at IS NULL
	`

	rows, err := r.db.QueryContext(ctx, query, models.AutomationStatusActive, appID, triggerKey)
	if err != nil {
		return nil, persistence.NewStorageError("ActiveByTrigger", triggerKey, err)
	}
	defer rows.Close()

	return collectAutomations(rows)
}

// DeleteAutomation soft deletes by setting deleted_at.
func (r *AutomationRepository) DeleteAutomation(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE automations SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return persistence.NewStorageError("DeleteAutomation", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStorageError("DeleteAutomation", id, err)
	}

	if affected == 0 {
		return persistence.ErrAutomationNotFound
	}

	return nil
}

func collectAutomations(rows *sql.Rows) ([]*models.Automation, error) {
	var automations []*models.Automation

	for rows.Next() {
		automation, err := scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation: %w", err)
		}

		automations = append(automations, automation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate automations: %w", err)
	}

	return automations, nil
}

func scanAutomation(scanner interface{ Scan(dest ...any) error }) (*models.Automation, error) {
	var (
		automation                         models.Automation
		trigger                            models.Trigger
		filtersJSON, rootsJSON, actionsJSON []byte
		deletedAt                          sql.NullTime
	)

	err := scanner.Scan(
		&automation.ID,
		&automation.Name,
		&automation.Description,
		&automation.Status,
		&automation.Revision,
		&trigger.AppID,
		&trigger.TriggerKey,
		&filtersJSON,
		&rootsJSON,
		&actionsJSON,
		&automation.Origin,
		&automation.Owner,
		&automation.CreatedAt,
		&automation.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	if filtersJSON != nil {
		if err := json.Unmarshal(filtersJSON, &trigger.Filters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger filters: %w", err)
		}
	}

	if rootsJSON != nil {
		if err := json.Unmarshal(rootsJSON, &automation.RootActionIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal root action ids: %w", err)
		}
	}

	automation.Actions = make(map[string]*models.ActionNode)
	if actionsJSON != nil {
		if err := json.Unmarshal(actionsJSON, &automation.Actions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
		}
	}

	automation.Trigger = &trigger

	if deletedAt.Valid {
		t := deletedAt.Time
		automation.DeletedAt = &t
	}

	return &automation, nil
}
