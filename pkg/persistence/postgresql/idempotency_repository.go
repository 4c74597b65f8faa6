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

// IdempotencyRepository stores event deduplication records keyed by
// (key, app_id, trigger_key).
type IdempotencyRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *IdempotencyRepository) IdempotencyRecord(ctx context.Context, key, appID, triggerKey string) (*models.IdempotencyRecord, error) {
	query := `
		SELECT key, app_id, trigger_key, activation_ids, created_at, expires_at
		FROM idempotency_records
		WHERE key = $1 AND app_id = $2 AND trigger_key = $3
	`

	var (
		record             models.IdempotencyRecord
		activationIDsJSON  []byte
	)

	err := r.db.QueryRowContext(ctx, query, key, appID, triggerKey).Scan(
		&record.Key,
		&record.AppID,
		&record.TriggerKey,
		&activationIDsJSON,
		&record.CreatedAt,
		&record.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrIdempotencyRecordNotFound
		}

		return nil, persistence.NewStorageError("IdempotencyRecord", key, err)
	}

	if activationIDsJSON != nil {
		if err := json.Unmarshal(activationIDsJSON, &record.ActivationIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal activation ids: %w", err)
		}
	}

	return &record, nil
}

func (r *IdempotencyRepository) SaveIdempotencyRecord(ctx context.Context, record *models.IdempotencyRecord) error {
	activationIDsJSON, err := json.Marshal(record.ActivationIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal activation ids: %w", err)
	}

	query := `
		INSERT INTO idempotency_records (key, app_id, trigger_key, activation_ids, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key, app_id, trigger_key) DO UPDATE SET
			activation_ids = EXCLUDED.activation_ids,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`

	_, err = r.db.ExecContext(ctx, query,
		record.Key,
		record.AppID,
		record.TriggerKey,
		activationIDsJSON,
		record.CreatedAt,
		record.ExpiresAt,
	)
	if err != nil {
		return persistence.NewStorageError("SaveIdempotencyRecord", record.Key, err)
	}

	return nil
}
