package file

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"time"

	"github.com/trigonhq/trigon/pkg/models"
	"github.com/trigonhq/trigon/pkg/persistence"
)

const (
	schedulesDir        = "schedules"
	triggerSchedulesDir = "trigger_schedules"
)

// ScheduleRepository stores durable pending-delay records and recurring
// trigger schedules. The persistence lock makes ClaimSchedule a true
// compare-and-set within a process.
type ScheduleRepository struct {
	persistence *Persistence
}

func (r *ScheduleRepository) SaveSchedule(_ context.Context, schedule *models.Schedule) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	if err := r.persistence.write(schedulesDir, schedule.ID, schedule); err != nil {
		return persistence.NewStorageError("SaveSchedule", schedule.ID, err)
	}

	return nil
}

// CreateSchedule checks for a pending schedule with the same identifier
// and writes the new one under a single lock acquisition, so concurrent
// creates for one identifier never both succeed.
func (r *ScheduleRepository) CreateSchedule(_ context.Context, schedule *models.Schedule) (bool, error) {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	existing, err := r.findPending(func(s *models.Schedule) bool {
		return s.Identifier == schedule.Identifier
	})
	if err != nil {
		return false, err
	}

	if existing != nil {
		return false, nil
	}

	if err := r.persistence.write(schedulesDir, schedule.ID, schedule); err != nil {
		return false, persistence.NewStorageError("CreateSchedule", schedule.ID, err)
	}

	return true, nil
}

func (r *ScheduleRepository) OverridePendingSchedule(_ context.Context, schedule *models.Schedule) (bool, error) {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	var current models.Schedule

	err := r.persistence.read(schedulesDir, schedule.ID, &current, persistence.ErrScheduleNotFound)
	if err != nil {
		if errors.Is(err, persistence.ErrScheduleNotFound) {
			return false, nil
		}

		return false, persistence.NewStorageError("OverridePendingSchedule", schedule.ID, err)
	}

	if current.Status != models.ScheduleStatusPending {
		return false, nil
	}

	if err := r.persistence.write(schedulesDir, schedule.ID, schedule); err != nil {
		return false, persistence.NewStorageError("OverridePendingSchedule", schedule.ID, err)
	}

	return true, nil
}

func (r *ScheduleRepository) ScheduleByID(_ context.Context, id string) (*models.Schedule, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	var schedule models.Schedule
	if err := r.persistence.read(schedulesDir, id, &schedule, persistence.ErrScheduleNotFound); err != nil {
		return nil, err
	}

	return &schedule, nil
}

func (r *ScheduleRepository) PendingByIdentifier(_ context.Context, identifier string) (*models.Schedule, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.findPending(func(s *models.Schedule) bool {
		return s.Identifier == identifier
	})
}

func (r *ScheduleRepository) DueSchedules(_ context.Context, now time.Time, limit int) ([]*models.Schedule, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	var due []*models.Schedule

	err := r.persistence.list(schedulesDir, func(data []byte) error {
		if limit > 0 && len(due) >= limit {
			return nil
		}

		var schedule models.Schedule
		if err := json.Unmarshal(data, &schedule); err != nil {
			return err
		}

		if schedule.IsDue(now) {
			due = append(due, &schedule)
		}

		return nil
	})
	if err != nil {
		return nil, persistence.NewStorageError("DueSchedules", "", err)
	}

	return due, nil
}

func (r *ScheduleRepository) ClaimSchedule(_ context.Context, id string) (bool, error) {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	var schedule models.Schedule

	err := r.persistence.read(schedulesDir, id, &schedule, persistence.ErrScheduleNotFound)
	if err != nil {
		if errors.Is(err, persistence.ErrScheduleNotFound) {
			return false, nil
		}

		return false, persistence.NewStorageError("ClaimSchedule", id, err)
	}

	if schedule.Status != models.ScheduleStatusPending {
		return false, nil
	}

	schedule.Status = models.ScheduleStatusDone
	schedule.UpdatedAt = time.Now().UTC()

	if err := r.persistence.write(schedulesDir, id, &schedule); err != nil {
		return false, persistence.NewStorageError("ClaimSchedule", id, err)
	}

	return true, nil
}

func (r *ScheduleRepository) CancelSchedules(_ context.Context, match persistence.ScheduleMatch) ([]*models.Schedule, error) {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	var cancelled []*models.Schedule

	err := r.persistence.list(schedulesDir, func(data []byte) error {
		var schedule models.Schedule
		if err := json.Unmarshal(data, &schedule); err != nil {
			return err
		}

		if schedule.Status != models.ScheduleStatusPending || !matches(&schedule, match) {
			return nil
		}

		schedule.Status = models.ScheduleStatusCancelled
		schedule.UpdatedAt = time.Now().UTC()

		if err := r.persistence.write(schedulesDir, schedule.ID, &schedule); err != nil {
			return err
		}

		cancelled = append(cancelled, &schedule)

		return nil
	})
	if err != nil {
		return nil, persistence.NewStorageError("CancelSchedules", "", err)
	}

	return cancelled, nil
}

func (r *ScheduleRepository) SaveTriggerSchedule(_ context.Context, schedule *models.TriggerSchedule) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	if err := r.persistence.write(triggerSchedulesDir, schedule.ID, schedule); err != nil {
		return persistence.NewStorageError("SaveTriggerSchedule", schedule.ID, err)
	}

	return nil
}

func (r *ScheduleRepository) DueTriggerSchedules(_ context.Context, now time.Time) ([]*models.TriggerSchedule, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	var due []*models.TriggerSchedule

	err := r.persistence.list(triggerSchedulesDir, func(data []byte) error {
		var schedule models.TriggerSchedule
		if err := json.Unmarshal(data, &schedule); err != nil {
			return err
		}

		if schedule.IsDue(now) {
			due = append(due, &schedule)
		}

		return nil
	})
	if err != nil {
		return nil, persistence.NewStorageError("DueTriggerSchedules", "", err)
	}

	return due, nil
}

// findPending scans for the first PENDING schedule matching the predicate.
// Callers hold the read lock.
func (r *ScheduleRepository) findPending(predicate func(*models.Schedule) bool) (*models.Schedule, error) {
	var found *models.Schedule

	err := r.persistence.list(schedulesDir, func(data []byte) error {
		if found != nil {
			return nil
		}

		var schedule models.Schedule
		if err := json.Unmarshal(data, &schedule); err != nil {
			return err
		}

		if schedule.Status == models.ScheduleStatusPending && predicate(&schedule) {
			found = &schedule
		}

		return nil
	})
	if err != nil {
		return nil, persistence.NewStorageError("PendingByIdentifier", "", err)
	}

	return found, nil
}

// matches applies the cancellation selector to a schedule.
func matches(schedule *models.Schedule, match persistence.ScheduleMatch) bool {
	switch {
	case match.ID != "":
		return schedule.ID == match.ID
	case match.Identifier != "":
		return schedule.Identifier == match.Identifier
	case match.IdentifierPattern != "":
		ok, err := path.Match(match.IdentifierPattern, schedule.Identifier)

		return err == nil && ok
	case match.CorrelationID != "":
		return schedule.CorrelationID == match.CorrelationID
	default:
		return false
	}
}
