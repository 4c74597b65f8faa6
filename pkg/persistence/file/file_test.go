package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trigonhq/trigon/pkg/models"
	"github.com/trigonhq/trigon/pkg/persistence"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	p := NewPersistence(t.TempDir())
	require.NoError(t, p.HealthCheck(context.Background()))

	return p
}

func TestAutomationRepository_SaveAndFetch(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	automation := &models.Automation{
		ID:            "auto-1",
		Name:          "vip onboarding",
		Status:        models.AutomationStatusActive,
		Trigger:       &models.Trigger{AppID: "forms", TriggerKey: "form_submitted"},
		RootActionIDs: []string{"a1"},
		Actions: map[string]*models.ActionNode{
			"a1": models.NewAppDefinedNode("a1", "", &models.AppDefinedAction{AppID: "crm", ActionKey: "send_email"}),
		},
	}

	require.NoError(t, p.AutomationRepository().SaveAutomation(ctx, automation))

	fetched, err := p.AutomationRepository().AutomationByID(ctx, "auto-1")
	require.NoError(t, err)
	assert.Equal(t, "vip onboarding", fetched.Name)
	assert.NotNil(t, fetched.Actions["a1"].AppDefined)

	_, err = p.AutomationRepository().AutomationByID(ctx, "missing")
	assert.True(t, persistence.IsAutomationNotFound(err))
}

func TestAutomationRepository_ActiveByTrigger(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	active := &models.Automation{
		ID: "auto-active", Status: models.AutomationStatusActive,
		Trigger: &models.Trigger{AppID: "forms", TriggerKey: "form_submitted"},
	}
	draft := &models.Automation{
		ID: "auto-draft", Status: models.AutomationStatusDraft,
		Trigger: &models.Trigger{AppID: "forms", TriggerKey: "form_submitted"},
	}
	other := &models.Automation{
		ID: "auto-other", Status: models.AutomationStatusActive,
		Trigger: &models.Trigger{AppID: "forms", TriggerKey: "contact_created"},
	}

	for _, automation := range []*models.Automation{active, draft, other} {
		require.NoError(t, p.AutomationRepository().SaveAutomation(ctx, automation))
	}

	matched, err := p.AutomationRepository().ActiveByTrigger(ctx, "forms", "form_submitted")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "auto-active", matched[0].ID)
}

func TestActivationRepository_ClaimActionIsExactlyOnce(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	status := &models.ActionStatus{
		ActivationID: "act-1",
		ActionID:     "email",
		Status:       models.ActionStatusStarted,
		StartedAt:    time.Now().UTC(),
	}

	claimed, err := p.ActivationRepository().ClaimAction(ctx, status)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = p.ActivationRepository().ClaimAction(ctx, status)
	require.NoError(t, err)
	assert.False(t, claimed, "second claim for the same action must fail")
}

func TestActivationRepository_ActionStatusByExecutionID(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	status := &models.ActionStatus{
		ActivationID: "act-1",
		ActionID:     "async-step",
		Status:       models.ActionStatusStarted,
		ExecutionID:  "exec-42",
		StartedAt:    time.Now().UTC(),
	}
	require.NoError(t, p.ActivationRepository().SaveActionStatus(ctx, status))

	found, err := p.ActivationRepository().ActionStatusByExecutionID(ctx, "exec-42")
	require.NoError(t, err)
	assert.Equal(t, "async-step", found.ActionID)

	_, err = p.ActivationRepository().ActionStatusByExecutionID(ctx, "exec-unknown")
	assert.ErrorIs(t, err, persistence.ErrActionStatusNotFound)
}

func TestScheduleRepository_ClaimFavorsAlreadyFired(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	now := time.Now().UTC()

	schedule, err := models.NewSchedule("s1", "form_submitted:entity-1", now.Add(time.Minute), now)
	require.NoError(t, err)
	require.NoError(t, p.ScheduleRepository().SaveSchedule(ctx, schedule))

	claimed, err := p.ScheduleRepository().ClaimSchedule(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, claimed)

	// Cancelling after the claim is a no-op: fired wins the race.
	cancelled, err := p.ScheduleRepository().CancelSchedules(ctx, persistence.ScheduleMatch{ID: "s1"})
	require.NoError(t, err)
	assert.Empty(t, cancelled)

	claimed, err = p.ScheduleRepository().ClaimSchedule(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, claimed, "a DONE schedule must never fire again")
}

func TestScheduleRepository_CancelByPattern(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, id := range []string{"s1", "s2"} {
		schedule, err := models.NewSchedule(id, "act-9:"+id, now.Add(time.Hour), now)
		require.NoError(t, err)
		require.NoError(t, p.ScheduleRepository().SaveSchedule(ctx, schedule))
	}

	unrelated, err := models.NewSchedule("s3", "act-8:s3", now.Add(time.Hour), now)
	require.NoError(t, err)
	require.NoError(t, p.ScheduleRepository().SaveSchedule(ctx, unrelated))

	cancelled, err := p.ScheduleRepository().CancelSchedules(ctx, persistence.ScheduleMatch{IdentifierPattern: "act-9:*"})
	require.NoError(t, err)
	assert.Len(t, cancelled, 2)

	// Idempotent: a second cancel matches nothing.
	cancelled, err = p.ScheduleRepository().CancelSchedules(ctx, persistence.ScheduleMatch{IdentifierPattern: "act-9:*"})
	require.NoError(t, err)
	assert.Empty(t, cancelled)
}

func TestScheduleRepository_DueSchedules(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	now := time.Now().UTC()

	early, err := models.NewSchedule("early", "id-early", now.Add(time.Minute), now)
	require.NoError(t, err)
	late, err := models.NewSchedule("late", "id-late", now.Add(time.Hour), now)
	require.NoError(t, err)

	require.NoError(t, p.ScheduleRepository().SaveSchedule(ctx, early))
	require.NoError(t, p.ScheduleRepository().SaveSchedule(ctx, late))

	due, err := p.ScheduleRepository().DueSchedules(ctx, now.Add(30*time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "early", due[0].ID)
}

func TestIdempotencyRepository_RoundTrip(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	now := time.Now().UTC()

	record := &models.IdempotencyRecord{
		Key:           "client-key",
		AppID:         "forms",
		TriggerKey:    "form_submitted",
		ActivationIDs: []string{"act-1"},
		CreatedAt:     now,
		ExpiresAt:     now.Add(models.DefaultIdempotencyTTL),
	}
	require.NoError(t, p.IdempotencyRepository().SaveIdempotencyRecord(ctx, record))

	fetched, err := p.IdempotencyRepository().IdempotencyRecord(ctx, "client-key", "forms", "form_submitted")
	require.NoError(t, err)
	assert.Equal(t, []string{"act-1"}, fetched.ActivationIDs)

	_, err = p.IdempotencyRepository().IdempotencyRecord(ctx, "other-key", "forms", "form_submitted")
	assert.True(t, persistence.IsIdempotencyRecordNotFound(err))
}
