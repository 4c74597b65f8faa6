package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trigonhq/trigon/pkg/eventbus"
	"github.com/trigonhq/trigon/pkg/models"
	"github.com/trigonhq/trigon/pkg/persistence"
	"github.com/trigonhq/trigon/pkg/persistence/file"
)

type recordingPublisher struct {
	published []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.published = append(p.published, event)

	return nil
}

type fixture struct {
	scheduler *Scheduler
	repo      persistence.ScheduleRepository
	publisher *recordingPublisher
	resumed   []*models.Schedule
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		publisher: &recordingPublisher{},
		now:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	f.repo = file.NewPersistence(t.TempDir()).ScheduleRepository()
	logger := slog.New(slog.DiscardHandler)

	f.scheduler = NewScheduler(f.repo, f.publisher, logger, func(_ context.Context, schedule *models.Schedule) error {
		f.resumed = append(f.resumed, schedule)

		return nil
	}).WithNow(func() time.Time { return f.now })

	return f
}

func TestSchedule_NonOverrideablePendingWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, applied, err := f.scheduler.Schedule(ctx, Request{
		Identifier:   "reminder:contact-1",
		ScheduleDate: f.now.Add(time.Hour),
		Overrideable: false,
	})
	require.NoError(t, err)
	assert.True(t, applied)

	second, applied, err := f.scheduler.Schedule(ctx, Request{
		Identifier:   "reminder:contact-1",
		ScheduleDate: f.now.Add(2 * time.Hour),
		Overrideable: false,
	})
	require.NoError(t, err)
	assert.False(t, applied, "the pending schedule wins, the new request is dropped")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ScheduleDate, second.ScheduleDate)
}

func TestSchedule_OverrideableIsReplacedInPlace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, _, err := f.scheduler.Schedule(ctx, Request{
		Identifier:   "reminder:contact-1",
		ScheduleDate: f.now.Add(time.Hour),
		Overrideable: true,
	})
	require.NoError(t, err)

	newDate := f.now.Add(3 * time.Hour)

	second, applied, err := f.scheduler.Schedule(ctx, Request{
		Identifier:   "reminder:contact-1",
		ScheduleDate: newDate,
		Overrideable: true,
	})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, first.ID, second.ID, "override keeps the schedule id")
	assert.True(t, second.ScheduleDate.Equal(newDate))
}

func TestSchedule_ConcurrentRequestsCreateOnePendingSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 8

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, ok, err := f.scheduler.Schedule(ctx, Request{
				Identifier:   "reminder:contact-1",
				ScheduleDate: f.now.Add(time.Hour),
			})
			assert.NoError(t, err)

			mu.Lock()
			if ok {
				applied++
			}
			mu.Unlock()
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, applied, "exactly one request creates the schedule")

	due, err := f.repo.DueSchedules(ctx, f.now.Add(2*time.Hour), 0)
	require.NoError(t, err)
	assert.Len(t, due, 1, "concurrent requests never double-schedule")
}

func TestCreateSchedule_RejectsDuplicatePendingIdentifier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := models.NewSchedule("s-1", "reminder:contact-1", f.now.Add(time.Hour), f.now)
	require.NoError(t, err)

	created, err := f.repo.CreateSchedule(ctx, first)
	require.NoError(t, err)
	require.True(t, created)

	second, err := models.NewSchedule("s-2", "reminder:contact-1", f.now.Add(2*time.Hour), f.now)
	require.NoError(t, err)

	created, err = f.repo.CreateSchedule(ctx, second)
	require.NoError(t, err)
	assert.False(t, created, "a pending identifier blocks a second create")

	// Once the first fired, the identifier is free again.
	claimed, err := f.repo.ClaimSchedule(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	created, err = f.repo.CreateSchedule(ctx, second)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestProcessDueSchedules_ResumesEachScheduleOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.scheduler.Schedule(ctx, Request{
		Identifier:   "delay:act-1",
		ScheduleDate: f.now.Add(time.Minute),
		ActivationID: "act-1",
	})
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Minute)

	f.scheduler.processDueSchedules(ctx)
	require.Len(t, f.resumed, 1)
	assert.Equal(t, "act-1", f.resumed[0].ActivationID)

	f.scheduler.processDueSchedules(ctx)
	assert.Len(t, f.resumed, 1, "a claimed schedule must not fire again")
}

func TestCancelledScheduleNeverFires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	schedule, _, err := f.scheduler.Schedule(ctx, Request{
		Identifier:   "delay:act-1",
		ScheduleDate: f.now.Add(time.Minute),
	})
	require.NoError(t, err)

	cancelled, err := f.scheduler.Cancel(ctx, persistence.ScheduleMatch{ID: schedule.ID})
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	require.Len(t, f.publisher.published, 1)

	f.now = f.now.Add(time.Hour)

	f.scheduler.processDueSchedules(ctx)
	assert.Empty(t, f.resumed, "a cancelled schedule must never fire")

	// Cancelling again is a no-op.
	cancelled, err = f.scheduler.Cancel(ctx, persistence.ScheduleMatch{ID: schedule.ID})
	require.NoError(t, err)
	assert.Empty(t, cancelled)
}

func TestProcessDueTriggerSchedules_FiresAndAdvances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	repo := file.NewPersistence(t.TempDir()).ScheduleRepository()
	logger := slog.New(slog.DiscardHandler)

	var fired []*models.TriggerSchedule

	scheduler := NewScheduler(repo, f.publisher, logger, func(context.Context, *models.Schedule) error {
		return nil
	}).WithNow(func() time.Time { return f.now }).WithTriggerFire(func(_ context.Context, ts *models.TriggerSchedule) error {
		fired = append(fired, ts)

		return nil
	})

	triggerSchedule, err := models.NewTriggerSchedule("ts-1", "auto-1", "0 * * * *", f.now)
	require.NoError(t, err)
	require.NoError(t, repo.SaveTriggerSchedule(ctx, triggerSchedule))

	f.now = triggerSchedule.NextDueAt.Add(time.Second)

	scheduler.processDueTriggerSchedules(ctx)
	require.Len(t, fired, 1)

	saved, err := repo.DueTriggerSchedules(ctx, f.now)
	require.NoError(t, err)
	assert.Empty(t, saved, "next due time must advance past now after firing")
}
