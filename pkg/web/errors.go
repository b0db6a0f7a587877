package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/dealflow/dealflow/pkg/engine"
	"github.com/dealflow/dealflow/pkg/persistence"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, errType, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType(errType).
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleEngineError maps engine and storage errors onto problem responses.
func handleEngineError(c fiber.Ctx, err error) error {
	var configErr *engine.ConfigurationError

	switch {
	case errors.Is(err, persistence.ErrWorkflowNotFound):
		return notFound(c, "workflow not found")
	case errors.Is(err, persistence.ErrExecutionNotFound):
		return notFound(c, "execution not found")
	case errors.Is(err, persistence.ErrHITLRequestNotFound):
		return notFound(c, "approval request not found")
	case errors.Is(err, persistence.ErrHITLAlreadyAnswered):
		return conflict(c, "already_answered", "approval request was already answered")
	case errors.Is(err, persistence.ErrHITLExpired):
		return conflict(c, "expired", "approval request has expired")
	case errors.Is(err, engine.ErrExecutionNotWaiting):
		return conflict(c, "not_waiting", err.Error())
	case errors.As(err, &configErr),
		errors.Is(err, engine.ErrNoTriggerFound),
		errors.Is(err, engine.ErrAmbiguousTrigger):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}
