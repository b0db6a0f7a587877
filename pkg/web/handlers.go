// Package web provides the REST surface for running workflows, inspecting
// execution history and answering approval requests.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/dealflow/dealflow/pkg/engine"
	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/persistence"
	"github.com/dealflow/dealflow/pkg/registry"
)

type APIHandlers struct {
	engine      *engine.Engine
	persistence persistence.Persistence
	registry    *registry.Registry
	validator   *validator.Validate
}

func NewAPIHandlers(
	eng *engine.Engine,
	persist persistence.Persistence,
	reg *registry.Registry,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		engine:      eng,
		persistence: persist,
		registry:    reg,
		validator:   validate,
	}
}

// RunExecutionRequest triggers one run of a workflow.
type RunExecutionRequest struct {
	TriggerData map[string]any `json:"trigger_data"`
	TriggeredBy string         `json:"triggered_by"`
	TestMode    bool           `json:"test_mode"`
}

func (h *APIHandlers) RunExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req RunExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	workflow, err := h.persistence.WorkflowRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	execution, err := h.engine.Run(c.Context(), workflow, req.TriggerData, engine.RunOptions{
		TriggeredBy: req.TriggeredBy,
		TestMode:    req.TestMode,
	})
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(execution)
}

func (h *APIHandlers) ListExecutions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	testMode := false

	if raw := c.Query("test_mode"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "Invalid test_mode value")
		}

		testMode = parsed
	}

	executions, err := h.persistence.ExecutionRepository().ListByWorkflow(c.Context(), id, testMode)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions":  executions,
		"total_count": len(executions),
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.persistence.ExecutionRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(execution)
}

// ResumeExecutionRequest answers the pending approval for an execution.
type ResumeExecutionRequest struct {
	Response        any            `json:"response"`
	ResponseContext map[string]any `json:"response_context"`
}

func (h *APIHandlers) ResumeExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	var req ResumeExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	execution, err := h.engine.Resume(c.Context(), id, req.Response, req.ResponseContext)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	if _, err := h.persistence.ExecutionRepository().GetByID(c.Context(), id); err != nil {
		return handleEngineError(c, err)
	}

	h.engine.Cancel(id)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"cancelling": id})
}

func (h *APIHandlers) GetPendingHITL(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	request, err := h.persistence.HITLRepository().PendingByExecution(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(request)
}

// RespondHITL answers an approval request addressed by its own ID rather
// than through the execution.
func (h *APIHandlers) RespondHITL(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Request ID is required")
	}

	var req ResumeExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	request, err := h.persistence.HITLRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	execution, err := h.engine.Resume(c.Context(), request.ExecutionID, req.Response, req.ResponseContext)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.persistence.WorkflowRepository().GetAll(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.persistence.WorkflowRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) SaveWorkflow(c fiber.Ctx) error {
	var workflow models.Workflow
	if err := c.Bind().JSON(&workflow); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(&workflow); err != nil {
		return badRequest(c, err.Error())
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if err := h.persistence.WorkflowRepository().Save(c.Context(), &workflow); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(workflow)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.persistence.WorkflowRepository().Delete(c.Context(), id); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetNodeKinds(c fiber.Ctx) error {
	kinds := h.registry.AvailableKinds()

	descriptions := make([]fiber.Map, 0, len(kinds))

	for _, kind := range kinds {
		factory, ok := h.registry.Factory(kind)
		if !ok {
			continue
		}

		descriptions = append(descriptions, fiber.Map{
			"kind":        factory.Kind(),
			"name":        factory.Name(),
			"description": factory.Description(),
			"schema":      factory.Schema(),
		})
	}

	return c.JSON(fiber.Map{"node_kinds": descriptions})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Dealflow engine is healthy"
	httpStatus := http.StatusOK

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		message = err.Error()
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}
