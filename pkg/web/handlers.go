// Package web provides HTTP handlers and REST API endpoints for reporting
// trigger events and inspecting activations.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/trigonhq/trigon/pkg/persistence"
	"github.com/trigonhq/trigon/pkg/service"
)

type APIHandlers struct {
	service     *service.Service
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewAPIHandlers(
	svc *service.Service,
	p persistence.Persistence,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		service:     svc,
		persistence: p,
		validator:   validator,
	}
}

func (h *APIHandlers) ReportEvent(c fiber.Ctx) error {
	var req service.ReportEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.service.ReportEvent(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) ReportEventBulk(c fiber.Ctx) error {
	var reqs []service.ReportEventRequest
	if err := c.Bind().JSON(&reqs); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if len(reqs) == 0 {
		return badRequest(c, "At least one event is required")
	}

	for _, req := range reqs {
		if err := h.validator.Struct(req); err != nil {
			return badRequest(c, err.Error())
		}
	}

	results := h.service.BulkReportEvent(c.Context(), reqs)

	return c.JSON(fiber.Map{"results": results})
}

func (h *APIHandlers) CancelEvent(c fiber.Ctx) error {
	var req service.CancelEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	cancelled, err := h.service.CancelEvent(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"cancelled_activation_ids": cancelled})
}

func (h *APIHandlers) CancelEventBulk(c fiber.Ctx) error {
	var reqs []service.CancelEventRequest
	if err := c.Bind().JSON(&reqs); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if len(reqs) == 0 {
		return badRequest(c, "At least one cancellation is required")
	}

	for _, req := range reqs {
		if err := h.validator.Struct(req); err != nil {
			return badRequest(c, err.Error())
		}
	}

	results := h.service.BulkCancelEvent(c.Context(), reqs)

	return c.JSON(fiber.Map{"results": results})
}

func (h *APIHandlers) CreateSchedule(c fiber.Ctx) error {
	var req service.ScheduleEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	schedule, applied, err := h.service.ScheduleEvent(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	// A pending non-overrideable schedule with the same identifier wins;
	// the caller gets it back instead of a new one.
	status := fiber.StatusCreated
	if !applied {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(fiber.Map{
		"schedule": schedule,
		"applied":  applied,
	})
}

func (h *APIHandlers) DeleteSchedule(c fiber.Ctx) error {
	identifier := c.Params("identifier")
	if identifier == "" {
		return badRequest(c, "Schedule identifier is required")
	}

	cancelled, err := h.service.CancelPendingSchedule(c.Context(), service.CancelScheduleRequest{Identifier: identifier})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(CancelScheduleResponse{Cancelled: cancelled})
}

func (h *APIHandlers) ActionCompleted(c fiber.Ctx) error {
	var req ActionCompletedRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.service.ActionCompleted(c.Context(), req.ExecutionID, req.Output, req.ErrorReason)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) RunAutomation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Automation ID is required")
	}

	var req RunAutomationRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	act, err := h.service.RunAutomation(c.Context(), id, req.Payload)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(act)
}

func (h *APIHandlers) GetActivation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Activation ID is required")
	}

	act, err := h.persistence.ActivationRepository().ActivationByID(c.Context(), id)
	if err != nil {
		if persistence.IsActivationNotFound(err) {
			return notFound(c, "Activation not found")
		}

		return internalError(c, err)
	}

	actions, err := h.persistence.ActivationRepository().ActionStatuses(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(ActivationResponse{Activation: act, Actions: actions})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Trigon API is healthy"
	httpStatus := http.StatusOK

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		message = "Trigon API is unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}
