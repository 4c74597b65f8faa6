package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/trigonhq/trigon/pkg/models"
	"github.com/trigonhq/trigon/pkg/persistence"
)

const scheduleColumns = `
	id, identifier, status, schedule_date, event_payload, overrideable,
	activation_id, scheduled_action_id, correlation_id, created_at, updated_at
`

const triggerScheduleColumns = `
	id, automation_id, cron_expression, event_payload, next_due_at,
	active, created_at, updated_at
`

// ScheduleRepository stores pending-delay records and recurring trigger
// schedules. Claim and cancel are single UPDATE statements guarded by the
// PENDING status, so a fired-then-cancelled race always favors the claim.
type ScheduleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *ScheduleRepository) SaveSchedule(ctx context.Context, schedule *models.Schedule) error {
	payloadJSON, err := json.Marshal(schedule.EventPayload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	query := `
		INSERT INTO schedules (` + scheduleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			identifier = EXCLUDED.identifier,
			status = EXCLUDED.status,
			schedule_date = EXCLUDED.schedule_date,
			event_payload = EXCLUDED.event_payload,
			overrideable = EXCLUDED.overrideable,
			activation_id = EXCLUDED.activation_id,
			scheduled_action_id = EXCLUDED.scheduled_action_id,
			correlation_id = EXCLUDED.correlation_id,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		schedule.ID,
		schedule.Identifier,
		schedule.Status,
		schedule.ScheduleDate,
		payloadJSON,
		schedule.Overrideable,
		schedule.ActivationID,
		schedule.ScheduledActionID,
		schedule.CorrelationID,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStorageError("SaveSchedule", schedule.ID, err)
	}

	return nil
}

// CreateSchedule relies on the partial unique index over PENDING
// identifiers: a concurrent insert for the same identifier conflicts and
// is dropped, so deduplication holds across replicas.
func (r *ScheduleRepository) CreateSchedule(ctx context.Context, schedule *models.Schedule) (bool, error) {
	payloadJSON, err := json.Marshal(schedule.EventPayload)
	if err != nil {
		return false, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	query := `
		INSERT INTO schedules (` + scheduleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (identifier) WHERE status = 'PENDING' DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		schedule.ID,
		schedule.Identifier,
		schedule.Status,
		schedule.ScheduleDate,
		payloadJSON,
		schedule.Overrideable,
		schedule.ActivationID,
		schedule.ScheduledActionID,
		schedule.CorrelationID,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	)
	if err != nil {
		return false, persistence.NewStorageError("CreateSchedule", schedule.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, persistence.NewStorageError("CreateSchedule", schedule.ID, err)
	}

	return affected == 1, nil
}

func (r *ScheduleRepository) OverridePendingSchedule(ctx context.Context, schedule *models.Schedule) (bool, error) {
	payloadJSON, err := json.Marshal(schedule.EventPayload)
	if err != nil {
		return false, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	query := `
		UPDATE schedules SET
			schedule_date = $1,
			event_payload = $2,
			overrideable = $3,
			updated_at = $4
		WHERE id = $5 AND status = $6
	`

	result, err := r.db.ExecContext(ctx, query,
		schedule.ScheduleDate,
		payloadJSON,
		schedule.Overrideable,
		schedule.UpdatedAt,
		schedule.ID,
		models.ScheduleStatusPending,
	)
	if err != nil {
		return false, persistence.NewStorageError("OverridePendingSchedule", schedule.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, persistence.NewStorageError("OverridePendingSchedule", schedule.ID, err)
	}

	return affected == 1, nil
}

func (r *ScheduleRepository) ScheduleByID(ctx context.Context, id string) (*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1`

	schedule, err := scanSchedule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrScheduleNotFound
		}

		return nil, persistence.NewStorageError("ScheduleByID", id, err)
	}

	return schedule, nil
}

func (r *ScheduleRepository) PendingByIdentifier(ctx context.Context, identifier string) (*models.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE identifier = $1 AND status = $2
		ORDER BY created_at
		LIMIT 1
	`

	schedule, err := scanSchedule(r.db.QueryRowContext(ctx, query, identifier, models.ScheduleStatusPending))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewStorageError("PendingByIdentifier", identifier, err)
	}

	return schedule, nil
}

func (r *ScheduleRepository) DueSchedules(ctx context.Context, now time.Time, limit int) ([]*models.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE status = $1 AND schedule_date <= $2
		ORDER BY schedule_date
	`

	args := []any{models.ScheduleStatusPending, now}

	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewStorageError("DueSchedules", "", err)
	}
	defer rows.Close()

	return collectSchedules(rows)
}

func (r *ScheduleRepository) ClaimSchedule(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE schedules SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		models.ScheduleStatusDone, id, models.ScheduleStatusPending)
	if err != nil {
		return false, persistence.NewStorageError("ClaimSchedule", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, persistence.NewStorageError("ClaimSchedule", id, err)
	}

	return affected == 1, nil
}

func (r *ScheduleRepository) CancelSchedules(ctx context.Context, match persistence.ScheduleMatch) ([]*models.Schedule, error) {
	where, arg, ok := matchClause(match)
	if !ok {
		return nil, nil
	}

	query := `
		UPDATE schedules SET status = $1, updated_at = NOW()
		WHERE status = $2 AND ` + where + `
		RETURNING ` + scheduleColumns

	rows, err := r.db.QueryContext(ctx, query, models.ScheduleStatusCancelled, models.ScheduleStatusPending, arg)
	if err != nil {
		return nil, persistence.NewStorageError("CancelSchedules", arg, err)
	}
	defer rows.Close()

	return collectSchedules(rows)
}

func (r *ScheduleRepository) SaveTriggerSchedule(ctx context.Context, schedule *models.TriggerSchedule) error {
	payloadJSON, err := json.Marshal(schedule.EventPayload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	query := `
		INSERT INTO trigger_schedules (` + triggerScheduleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			cron_expression = EXCLUDED.cron_expression,
			event_payload = EXCLUDED.event_payload,
			next_due_at = EXCLUDED.next_due_at,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		schedule.ID,
		schedule.AutomationID,
		schedule.CronExpression,
		payloadJSON,
		schedule.NextDueAt,
		schedule.Active,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStorageError("SaveTriggerSchedule", schedule.ID, err)
	}

	return nil
}

func (r *ScheduleRepository) DueTriggerSchedules(ctx context.Context, now time.Time) ([]*models.TriggerSchedule, error) {
	query := `
		SELECT ` + triggerScheduleColumns + `
		FROM trigger_schedules
		WHERE active = true AND next_due_at <= $1
		ORDER BY next_due_at
	`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, persistence.NewStorageError("DueTriggerSchedules", "", err)
	}
	defer rows.Close()

	var schedules []*models.TriggerSchedule

	for rows.Next() {
		var (
			schedule    models.TriggerSchedule
			payloadJSON []byte
		)

		err := rows.Scan(
			&schedule.ID,
			&schedule.AutomationID,
			&schedule.CronExpression,
			&payloadJSON,
			&schedule.NextDueAt,
			&schedule.Active,
			&schedule.CreatedAt,
			&schedule.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trigger schedule: %w", err)
		}

		if payloadJSON != nil {
			if err := json.Unmarshal(payloadJSON, &schedule.EventPayload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event payload: %w", err)
			}
		}

		schedules = append(schedules, &schedule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trigger schedules: %w", err)
	}

	return schedules, nil
}

// matchClause maps a ScheduleMatch selector to a WHERE fragment. The
// identifier pattern uses LIKE; "*" wildcards are translated to "%".
func matchClause(match persistence.ScheduleMatch) (string, string, bool) {
	switch {
	case match.ID != "":
		return "id = $3", match.ID, true
	case match.Identifier != "":
		return "identifier = $3", match.Identifier, true
	case match.IdentifierPattern != "":
		pattern := ""

		for _, r := range match.IdentifierPattern {
			switch r {
			case '*':
				pattern += "%"
			case '?':
				pattern += "_"
			case '%', '_', '\\':
				pattern += `\` + string(r)
			default:
				pattern += string(r)
			}
		}

		return "identifier LIKE $3", pattern, true
	case match.CorrelationID != "":
		return "correlation_id = $3", match.CorrelationID, true
	default:
		return "", "", false
	}
}

func collectSchedules(rows *sql.Rows) ([]*models.Schedule, error) {
	var schedules []*models.Schedule

	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}

		schedules = append(schedules, schedule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schedules: %w", err)
	}

	return schedules, nil
}

func scanSchedule(scanner interface{ Scan(dest ...any) error }) (*models.Schedule, error) {
	var (
		schedule                                     models.Schedule
		payloadJSON                                  []byte
		activationID, scheduledActionID, correlation sql.NullString
	)

	err := scanner.Scan(
		&schedule.ID,
		&schedule.Identifier,
		&schedule.Status,
		&schedule.ScheduleDate,
		&payloadJSON,
		&schedule.Overrideable,
		&activationID,
		&scheduledActionID,
		&correlation,
		&schedule.CreatedAt,
		&schedule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	schedule.ActivationID = activationID.String
	schedule.ScheduledActionID = scheduledActionID.String
	schedule.CorrelationID = correlation.String

	if payloadJSON != nil {
		if err := json.Unmarshal(payloadJSON, &schedule.EventPayload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event payload: %w", err)
		}
	}

	return &schedule, nil
}
