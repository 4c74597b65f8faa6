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

const activationColumns = `
	id, automation_id, configuration_correlation_id, revision, status,
	trigger_key, external_entity_id, payload, output, error_message,
	created_at, updated_at, ended_at
`

const actionStatusColumns = `
	activation_id, action_id, status, execution_id, output,
	error_reason, started_at, completed_at
`

// ActivationRepository stores activations and per-action execution
// records in PostgreSQL. ClaimAction relies on the (activation_id,
// action_id) primary key for its atomicity.
type ActivationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *ActivationRepository) SaveActivation(ctx context.Context, activation *models.Activation) error {
	payloadJSON, err := json.Marshal(activation.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	outputJSON, err := json.Marshal(activation.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	query := `
		INSERT INTO activations (` + activationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			payload = EXCLUDED.payload,
			output = EXCLUDED.output,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at,
			ended_at = EXCLUDED.ended_at
	`

	_, err = r.db.ExecContext(ctx, query,
		activation.ID,
		activation.AutomationID,
		activation.ConfigurationCorrelationID,
		activation.Revision,
		activation.Status,
		activation.TriggerKey,
		activation.ExternalEntityID,
		payloadJSON,
		outputJSON,
		activation.Error,
		activation.CreatedAt,
		activation.UpdatedAt,
		activation.EndedAt,
	)
	if err != nil {
		return persistence.NewStorageError("SaveActivation", activation.ID, err)
	}

	return nil
}

func (r *ActivationRepository) ActivationByID(ctx context.Context, id string) (*models.Activation, error) {
	query := `SELECT ` + activationColumns + ` FROM activations WHERE id = $1`

	activation, err := scanActivation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrActivationNotFound
		}

		return nil, persistence.NewStorageError("ActivationByID", id, err)
	}

	return activation, nil
}

func (r *ActivationRepository) ActivationsByEntity(ctx context.Context, externalEntityID, triggerKey string) ([]*models.Activation, error) {
	query := `
		SELECT ` + activationColumns + `
		FROM activations
		WHERE external_entity_id = $1 AND trigger_key = $2
		  AND status NOT IN ($3, $4, $5)
	`

	rows, err := r.db.QueryContext(ctx, query,
		externalEntityID, triggerKey,
		models.ActivationStatusEnded, models.ActivationStatusCancelled, models.ActivationStatusFailed)
	if err != nil {
		return nil, persistence.NewStorageError("ActivationsByEntity", externalEntityID, err)
	}
	defer rows.Close()

	var activations []*models.Activation

	for rows.Next() {
		activation, err := scanActivation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activation: %w", err)
		}

		activations = append(activations, activation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activations: %w", err)
	}

	return activations, nil
}

func (r *ActivationRepository) ClaimAction(ctx context.Context, status *models.ActionStatus) (bool, error) {
	outputJSON, err := json.Marshal(status.Output)
	if err != nil {
		return false, fmt.Errorf("failed to marshal output: %w", err)
	}

	query := `
		INSERT INTO action_statuses (` + actionStatusColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (activation_id, action_id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		status.ActivationID,
		status.ActionID,
		status.Status,
		status.ExecutionID,
		outputJSON,
		status.ErrorReason,
		status.StartedAt,
		status.CompletedAt,
	)
	if err != nil {
		return false, persistence.NewStorageError("ClaimAction", status.ActionID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, persistence.NewStorageError("ClaimAction", status.ActionID, err)
	}

	return affected == 1, nil
}

func (r *ActivationRepository) SaveActionStatus(ctx context.Context, status *models.ActionStatus) error {
	outputJSON, err := json.Marshal(status.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	query := `
		INSERT INTO action_statuses (` + actionStatusColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (activation_id, action_id) DO UPDATE SET
			status = EXCLUDED.status,
			execution_id = EXCLUDED.execution_id,
			output = EXCLUDED.output,
			error_reason = EXCLUDED.error_reason,
			completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		status.ActivationID,
		status.ActionID,
		status.Status,
		status.ExecutionID,
		outputJSON,
		status.ErrorReason,
		status.StartedAt,
		status.CompletedAt,
	)
	if err != nil {
		return persistence.NewStorageError("SaveActionStatus", status.ActionID, err)
	}

	return nil
}

func (r *ActivationRepository) ActionStatus(ctx context.Context, activationID, actionID string) (*models.ActionStatus, error) {
	query := `SELECT ` + actionStatusColumns + ` FROM action_statuses WHERE activation_id = $1 AND action_id = $2`

	status, err := scanActionStatus(r.db.QueryRowContext(ctx, query, activationID, actionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrActionStatusNotFound
		}

		return nil, persistence.NewStorageError("ActionStatus", actionID, err)
	}

	return status, nil
}

func (r *ActivationRepository) ActionStatuses(ctx context.Context, activationID string) ([]*models.ActionStatus, error) {
	query := `SELECT ` + actionStatusColumns + ` FROM action_statuses WHERE activation_id = $1 ORDER BY started_at`

	rows, err := r.db.QueryContext(ctx, query, activationID)
	if err != nil {
		return nil, persistence.NewStorageError("ActionStatuses", activationID, err)
	}
	defer rows.Close()

	var statuses []*models.ActionStatus

	for rows.Next() {
		status, err := scanActionStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action status: %w", err)
		}

		statuses = append(statuses, status)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate action statuses: %w", err)
	}

	return statuses, nil
}

func (r *ActivationRepository) ActionStatusByExecutionID(ctx context.Context, executionID string) (*models.ActionStatus, error) {
	query := `SELECT ` + actionStatusColumns + ` FROM action_statuses WHERE execution_id = $1 LIMIT 1`

	status, err := scanActionStatus(r.db.QueryRowContext(ctx, query, executionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrActionStatusNotFound
		}

		return nil, persistence.NewStorageError("ActionStatusByExecutionID", executionID, err)
	}

	return status, nil
}

func scanActivation(scanner interface{ Scan(dest ...any) error }) (*models.Activation, error) {
	var (
		activation               models.Activation
		payloadJSON, outputJSON  []byte
		externalEntityID, errMsg sql.NullString
		endedAt                  sql.NullTime
	)

	err := scanner.Scan(
		&activation.ID,
		&activation.AutomationID,
		&activation.ConfigurationCorrelationID,
		&activation.Revision,
		&activation.Status,
		&activation.TriggerKey,
		&externalEntityID,
		&payloadJSON,
		&outputJSON,
		&errMsg,
		&activation.CreatedAt,
		&activation.UpdatedAt,
		&endedAt,
	)
	if err != nil {
		return nil, err
	}

	activation.ExternalEntityID = externalEntityID.String
	activation.Error = errMsg.String

	if payloadJSON != nil {
		if err := json.Unmarshal(payloadJSON, &activation.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	if outputJSON != nil {
		if err := json.Unmarshal(outputJSON, &activation.Output); err != nil {
			return nil, fmt.Errorf("failed to unmarshal output: %w", err)
		}
	}

	if endedAt.Valid {
		t := endedAt.Time
		activation.EndedAt = &t
	}

	return &activation, nil
}

func scanActionStatus(scanner interface{ Scan(dest ...any) error }) (*models.ActionStatus, error) {
	var (
		status                   models.ActionStatus
		outputJSON               []byte
		executionID, errorReason sql.NullString
		completedAt              sql.NullTime
	)

	err := scanner.Scan(
		&status.ActivationID,
		&status.ActionID,
		&status.Status,
		&executionID,
		&outputJSON,
		&errorReason,
		&status.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	status.ExecutionID = executionID.String
	status.ErrorReason = errorReason.String

	if outputJSON != nil {
		if err := json.Unmarshal(outputJSON, &status.Output); err != nil {
			return nil, fmt.Errorf("failed to unmarshal output: %w", err)
		}
	}

	if completedAt.Valid {
		t := completedAt.Time
		status.CompletedAt = &t
	}

	return &status, nil
}
