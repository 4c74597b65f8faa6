package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trigonhq/trigon/pkg/activation"
	"github.com/trigonhq/trigon/pkg/eventbus"
	"github.com/trigonhq/trigon/pkg/expr"
	"github.com/trigonhq/trigon/pkg/models"
	"github.com/trigonhq/trigon/pkg/persistence/file"
	"github.com/trigonhq/trigon/pkg/protocol"
	"github.com/trigonhq/trigon/pkg/ratelimit"
	"github.com/trigonhq/trigon/pkg/registry"
	"github.com/trigonhq/trigon/pkg/scheduler"
	"github.com/trigonhq/trigon/pkg/service"
	"github.com/trigonhq/trigon/pkg/web"
)

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, eventbus.Event) error { return nil }

type stubFactory struct{ id string }

func (f *stubFactory) ID() string             { return f.id }
func (f *stubFactory) Schema() map[string]any { return nil }

func (f *stubFactory) Create(map[string]any) (protocol.ActionExecutor, error) {
	return &stubExecutor{}, nil
}

type stubExecutor struct{}

func (e *stubExecutor) Execute(context.Context, protocol.ExecutionRequest, *slog.Logger) (*protocol.Result, error) {
	return &protocol.Result{Output: map[string]any{"sent": true}}, nil
}

func setupTestApp(t *testing.T) (*fiber.App, *file.Persistence) {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.DiscardHandler)
	evaluator := expr.NewGojaEvaluator()

	reg := registry.NewRegistry(logger)
	reg.RegisterExecutor(&stubFactory{id: "crm/send_email"})

	var svc *service.Service

	sched := scheduler.NewScheduler(persistence.ScheduleRepository(), nopPublisher{}, logger,
		func(ctx context.Context, schedule *models.Schedule) error {
			return svc.Resume(ctx, schedule)
		})

	engine := activation.NewEngine(
		persistence,
		sched,
		reg,
		ratelimit.NewMemoryLimiter(),
		evaluator,
		nopPublisher{},
		logger,
	)

	svc = service.NewService(persistence, engine, sched, evaluator, logger)

	handlers := web.NewAPIHandlers(svc, persistence, validator.New(validator.WithRequiredStructEnabled()))

	return web.NewApp(handlers), persistence
}

func saveTestAutomation(t *testing.T, p *file.Persistence) {
	t.Helper()

	automation := &models.Automation{
		ID:     "auto-1",
		Name:   "welcome mail",
		Status: models.AutomationStatusActive,
		Trigger: &models.Trigger{
			AppID:      "forms",
			TriggerKey: "form_submitted",
		},
		RootActionIDs: []string{"send"},
		Actions: map[string]*models.ActionNode{
			"send": models.NewAppDefinedNode("send", "", &models.AppDefinedAction{
				AppID: "crm", ActionKey: "send_email",
			}),
		},
	}

	require.NoError(t, p.AutomationRepository().SaveAutomation(context.Background(), automation))
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) *http.Response {
	t.Helper()

	var body []byte

	if str, ok := payload.(string); ok {
		body = []byte(str)
	} else {
		var err error

		body, err = json.Marshal(payload)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()

	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

func TestReportEventEndpoint(t *testing.T) {
	t.Parallel()

	app, persistence := setupTestApp(t)
	saveTestAutomation(t, persistence)

	resp := postJSON(t, app, "/events/report", service.ReportEventRequest{
		AppID:      "forms",
		TriggerKey: "form_submitted",
		Payload:    map[string]any{"contact_id": "c-1"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result service.ReportEventResult

	decodeBody(t, resp, &result)
	require.Len(t, result.ActivationIDs, 1)
	assert.False(t, result.Deduplicated)
}

func TestReportEventEndpoint_Validation(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp := postJSON(t, app, "/events/report", service.ReportEventRequest{
		TriggerKey: "form_submitted",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, app, "/events/report", "not-json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetActivationEndpoint(t *testing.T) {
	t.Parallel()

	app, persistence := setupTestApp(t)
	saveTestAutomation(t, persistence)

	resp := postJSON(t, app, "/events/report", service.ReportEventRequest{
		AppID:      "forms",
		TriggerKey: "form_submitted",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result service.ReportEventResult

	decodeBody(t, resp, &result)
	require.Len(t, result.ActivationIDs, 1)

	req := httptest.NewRequest(http.MethodGet, "/activations/"+result.ActivationIDs[0], nil)

	getResp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, getResp.StatusCode)

	var detail web.ActivationResponse

	decodeBody(t, getResp, &detail)
	assert.Equal(t, models.ActivationStatusEnded, detail.Activation.Status)
	require.Len(t, detail.Actions, 1)
	assert.Equal(t, "send", detail.Actions[0].ActionID)

	req = httptest.NewRequest(http.MethodGet, "/activations/nope", nil)

	getResp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestActionCompletedEndpoint_UnknownExecution(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp := postJSON(t, app, "/actions/completed", web.ActionCompletedRequest{
		ExecutionID: "exec-unknown",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestScheduleEndpoints(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	req := service.ScheduleEventRequest{
		Identifier:   "digest:site-1",
		ScheduleDate: time.Now().UTC().Add(time.Hour),
		AppID:        "forms",
		TriggerKey:   "form_submitted",
	}

	resp := postJSON(t, app, "/schedules/", req)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Same identifier, still pending and not overrideable: no new schedule.
	resp = postJSON(t, app, "/schedules/", req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Applied bool `json:"applied"`
	}

	decodeBody(t, resp, &body)
	assert.False(t, body.Applied)

	del := httptest.NewRequest(http.MethodDelete, "/schedules/digest:site-1", nil)

	delResp, err := app.Test(del)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, delResp.StatusCode)

	var cancelResult web.CancelScheduleResponse

	decodeBody(t, delResp, &cancelResult)
	assert.Len(t, cancelResult.Cancelled, 1)
}

func TestRunAutomationEndpoint(t *testing.T) {
	t.Parallel()

	app, persistence := setupTestApp(t)
	saveTestAutomation(t, persistence)

	resp := postJSON(t, app, "/automations/auto-1/run", web.RunAutomationRequest{
		Payload: map[string]any{"contact_id": "c-2"},
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, app, "/automations/missing/run", web.RunAutomationRequest{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
