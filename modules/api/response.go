package api

import (
	"errors"

	"github.com/example/taskflow/domain/apperr"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
)

// MsgRouteNotFound is rendered for unknown routes.
const MsgRouteNotFound = "Route not found"

// statusOf maps an error kind to its HTTP status.
func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return fiber.StatusBadRequest
	case apperr.KindUnauthorized:
		return fiber.StatusUnauthorized
	case apperr.KindForbidden:
		return fiber.StatusForbidden
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	case apperr.KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// errorRenderer writes failures as the response envelope. Internal detail
// is logged and only rendered in development mode.
type errorRenderer struct {
	logger  types.Logger
	devMode bool
}

func (r *errorRenderer) render(c *fiber.Ctx, err error) error {
	e := apperr.Wire(err)
	resp := Response{Success: false, Message: e.Message}

	if e.Kind == apperr.KindInternal {
		r.logger.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", e.Detail)
		if r.devMode {
			resp.Error = e.Detail
		}
	}

	return c.Status(statusOf(e.Kind)).JSON(resp)
}

// handleFiberError is the app's ErrorHandler.
func (r *errorRenderer) handleFiberError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		message := fe.Message
		if fe.Code == fiber.StatusNotFound {
			message = MsgRouteNotFound
		}
		return c.Status(fe.Code).JSON(Response{Success: false, Message: message})
	}
	return r.render(c, err)
}

func notFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(Response{
		Success: false,
		Message: MsgRouteNotFound,
	})
}
