package api

import (
	"context"
	"time"

	"github.com/example/taskflow/domain/apperr"
	domain "github.com/example/taskflow/domain/task"
	"github.com/example/taskflow/modules/activity"
	"github.com/example/taskflow/modules/auth"
	"github.com/example/taskflow/modules/task"
	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
)

// Success messages.
const (
	MsgRegistered    = "User registered successfully"
	MsgLoggedIn      = "Login successful"
	MsgLoggedOut     = "Logged out successfully"
	MsgTaskCreated   = "Task created successfully"
	MsgTaskUpdated   = "Task updated successfully"
	MsgTaskToggled   = "Task status updated successfully"
	MsgTaskDeleted   = "Task deleted successfully"
	MsgServerHealthy = "Server is healthy"
	MsgServerUnwell  = "Server is unhealthy"
)

// HealthSource is anything that reports a named health status.
type HealthSource interface {
	Name() string
	Health(ctx context.Context) mono.HealthStatus
}

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	auth     auth.AuthPort
	tasks    task.TaskPort
	activity activity.ActivityPort
	health   []HealthSource
	errs     *errorRenderer
	version  string
}

// Root describes the API.
func (h *Handlers) Root(c *fiber.Ctx) error {
	return c.JSON(Response{
		Success: true,
		Message: "Task Manager API",
		Data: fiber.Map{
			"version": h.version,
			"endpoints": fiber.Map{
				"auth":     "/api/auth",
				"tasks":    "/api/tasks",
				"activity": "/api/activity",
			},
		},
	})
}

// Health reports the aggregated module health. Any unhealthy module turns
// the response into a 503.
func (h *Handlers) Health(c *fiber.Ctx) error {
	healthy := true
	modules := make(map[string]mono.HealthStatus, len(h.health))
	for _, source := range h.health {
		status := source.Health(c.UserContext())
		modules[source.Name()] = status
		if !status.Healthy {
			healthy = false
		}
	}

	code, message, state := fiber.StatusOK, MsgServerHealthy, "healthy"
	if !healthy {
		code, message, state = fiber.StatusServiceUnavailable, MsgServerUnwell, "unhealthy"
	}

	return c.Status(code).JSON(Response{
		Success: healthy,
		Message: message,
		Data: fiber.Map{
			"status":    state,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"modules":   modules,
		},
	})
}

// Signup registers a new account.
func (h *Handlers) Signup(c *fiber.Ctx) error {
	var body SignupBody
	if err := decodeBody(c, signupSchema, &body); err != nil {
		return h.errs.render(c, err)
	}

	session, err := h.auth.Signup(c.UserContext(), body.Name, body.Email, body.Password)
	if err != nil {
		return h.errs.render(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(Response{
		Success: true,
		Message: MsgRegistered,
		Data:    SessionPayload{User: session.User, Token: session.Token},
	})
}

// Login authenticates with email and password.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var body LoginBody
	if err := decodeBody(c, loginSchema, &body); err != nil {
		return h.errs.render(c, err)
	}

	session, err := h.auth.Login(c.UserContext(), body.Email, body.Password)
	if err != nil {
		return h.errs.render(c, err)
	}

	return c.JSON(Response{
		Success: true,
		Message: MsgLoggedIn,
		Data:    SessionPayload{User: session.User, Token: session.Token},
	})
}

// Me returns the authenticated user's profile.
func (h *Handlers) Me(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return h.errs.render(c, err)
	}

	user, err := h.auth.GetUser(c.UserContext(), userID)
	if err != nil {
		return h.errs.render(c, err)
	}

	return c.JSON(Response{Success: true, Data: user})
}

// Logout acknowledges a logout. Tokens are stateless; the client discards it.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	return c.JSON(Response{Success: true, Message: MsgLoggedOut})
}

// ListTasks lists the caller's tasks, filtered by the status, priority and
// search query parameters.
func (h *Handlers) ListTasks(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return h.errs.render(c, err)
	}

	tasks, err := h.tasks.List(c.UserContext(), userID, c.Query("status"), c.Query("priority"), c.Query("search"))
	if err != nil {
		return h.errs.render(c, err)
	}

	return c.JSON(Response{Success: true, Count: countOf(len(tasks)), Data: tasks})
}

// GetTask returns one of the caller's tasks.
func (h *Handlers) GetTask(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return h.errs.render(c, err)
	}

	t, err := h.tasks.Get(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return h.errs.render(c, err)
	}

	return c.JSON(Response{Success: true, Data: t})
}

// CreateTask creates a task owned by the caller.
func (h *Handlers) CreateTask(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return h.errs.render(c, err)
	}

	var body CreateTaskBody
	if err := decodeBody(c, createTaskSchema, &body); err != nil {
		return h.errs.render(c, err)
	}

	draft := domain.Draft{
		Title:       body.Title,
		Description: body.Description,
		Deadline:    body.Deadline,
	}
	if body.Priority != nil {
		draft.Priority = *body.Priority
	}

	t, err := h.tasks.Create(c.UserContext(), userID, draft)
	if err != nil {
		return h.errs.render(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(Response{Success: true, Message: MsgTaskCreated, Data: t})
}

// UpdateTask applies a partial update to one of the caller's tasks.
func (h *Handlers) UpdateTask(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return h.errs.render(c, err)
	}

	var body UpdateTaskBody
	if err := decodeBody(c, updateTaskSchema, &body); err != nil {
		return h.errs.render(c, err)
	}

	t, err := h.tasks.Update(c.UserContext(), userID, c.Params("id"), domain.Patch{
		Title:       body.Title,
		Description: body.Description,
		Deadline:    body.Deadline,
		Priority:    body.Priority,
		Status:      body.Status,
	})
	if err != nil {
		return h.errs.render(c, err)
	}

	return c.JSON(Response{Success: true, Message: MsgTaskUpdated, Data: t})
}

// ToggleTask flips the status of one of the caller's tasks.
func (h *Handlers) ToggleTask(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return h.errs.render(c, err)
	}

	t, err := h.tasks.Toggle(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return h.errs.render(c, err)
	}

	return c.JSON(Response{Success: true, Message: MsgTaskToggled, Data: t})
}

// DeleteTask deletes one of the caller's tasks.
func (h *Handlers) DeleteTask(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return h.errs.render(c, err)
	}

	if err := h.tasks.Delete(c.UserContext(), userID, c.Params("id")); err != nil {
		return h.errs.render(c, err)
	}

	return c.JSON(Response{Success: true, Message: MsgTaskDeleted, Data: fiber.Map{}})
}

// TaskStats summarizes the caller's tasks.
func (h *Handlers) TaskStats(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return h.errs.render(c, err)
	}

	stats, err := h.tasks.Stats(c.UserContext(), userID)
	if err != nil {
		return h.errs.render(c, err)
	}

	return c.JSON(Response{Success: true, Data: stats})
}

// ListActivity returns the caller's recent activity, newest first.
func (h *Handlers) ListActivity(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return h.errs.render(c, err)
	}

	items, err := h.activity.List(c.UserContext(), userID, c.QueryInt("limit", 0))
	if err != nil {
		return h.errs.render(c, err)
	}

	return c.JSON(Response{Success: true, Count: countOf(len(items)), Data: items})
}

func callerID(c *fiber.Ctx) (string, error) {
	claims := claimsFrom(c)
	if claims == nil || claims.UserID == "" {
		return "", apperr.Unauthorized(MsgNoToken)
	}
	return claims.UserID, nil
}
