// Package api exposes the task manager as a JSON HTTP API on Fiber.
package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/taskflow/modules/activity"
	"github.com/example/taskflow/modules/auth"
	"github.com/example/taskflow/modules/ratelimit"
	"github.com/example/taskflow/modules/task"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// Version is reported by the root route.
const Version = "1.0.0"

// Config configures the HTTP server.
type Config struct {
	Addr           string
	BodyLimit      int
	AllowedOrigins []string
	DevMode        bool
}

// APIModule is the HTTP API module.
type APIModule struct {
	config          Config
	app             *fiber.App
	authAdapter     auth.AuthPort
	taskAdapter     task.TaskPort
	activityAdapter activity.ActivityPort
	rateLimit       *ratelimit.Module
	health          []HealthSource
	logger          types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*APIModule)(nil)
	_ mono.DependentModule       = (*APIModule)(nil)
	_ mono.HealthCheckableModule = (*APIModule)(nil)
)

// NewModule creates a new APIModule.
func NewModule(config Config, logger types.Logger) *APIModule {
	return &APIModule{
		config: config,
		logger: logger.WithModule("api"),
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"auth", "task", "activity"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.authAdapter = auth.NewAuthAdapter(container)
	case "task":
		m.taskAdapter = task.NewTaskAdapter(container)
	case "activity":
		m.activityAdapter = activity.NewActivityAdapter(container)
	}
}

// SetRateLimitModule sets the rate limiting module dependency.
func (m *APIModule) SetRateLimitModule(rlm *ratelimit.Module) {
	m.rateLimit = rlm
}

// MonitorHealth adds modules whose status GET /health reports.
func (m *APIModule) MonitorHealth(sources ...HealthSource) {
	m.health = append(m.health, sources...)
}

// Start builds the Fiber app and starts listening.
func (m *APIModule) Start(ctx context.Context) error {
	if m.authAdapter == nil {
		return fmt.Errorf("auth dependency not set")
	}
	if m.taskAdapter == nil {
		return fmt.Errorf("task dependency not set")
	}
	if m.activityAdapter == nil {
		return fmt.Errorf("activity dependency not set")
	}

	m.app = m.newApp()

	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(m.config.Addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start HTTP server: %w", err)
	case <-time.After(100 * time.Millisecond):
		m.logger.Info("HTTP server started", "addr", m.config.Addr, "rate_limited", m.rateLimit != nil)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts down the HTTP server, waiting for in-flight requests.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}

	m.logger.Info("Shutting down HTTP server")
	if err := m.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	m.logger.Info("HTTP server stopped")
	return nil
}

// Health returns the health status of the module.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	if m.app == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "HTTP server not initialized",
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"addr": m.config.Addr,
		},
	}
}

// newApp builds the Fiber app with its middleware chain and routes.
func (m *APIModule) newApp() *fiber.App {
	errs := &errorRenderer{logger: m.logger, devMode: m.config.DevMode}

	app := fiber.New(fiber.Config{
		AppName:               "Task Manager API",
		DisableStartupMessage: true,
		BodyLimit:             m.config.BodyLimit,
		ErrorHandler:          errs.handleFiberError,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(m.config.AllowedOrigins, ","),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: len(m.config.AllowedOrigins) > 0,
	}))

	handlers := &Handlers{
		auth:     m.authAdapter,
		tasks:    m.taskAdapter,
		activity: m.activityAdapter,
		health:   m.health,
		errs:     errs,
		version:  Version,
	}

	// Registered ahead of the limiter, so never rate limited.
	app.Get("/", handlers.Root)
	app.Get("/health", handlers.Health)

	if m.rateLimit != nil {
		app.Use(m.rateLimit.Handler())
	}

	protect := AuthMiddleware(m.authAdapter, errs)
	m.setupRoutes(app, handlers, protect)
	m.setupRoutes(app.Group("/api"), handlers, protect)

	app.Use(notFound)
	return app
}

// setupRoutes configures the resource routes on r.
func (m *APIModule) setupRoutes(r fiber.Router, h *Handlers, protect fiber.Handler) {
	authRoutes := r.Group("/auth")
	authRoutes.Post("/signup", h.Signup)
	authRoutes.Post("/login", h.Login)
	authRoutes.Get("/me", protect, h.Me)
	authRoutes.Post("/logout", protect, h.Logout)

	tasks := r.Group("/tasks", protect)
	tasks.Get("/", h.ListTasks)
	tasks.Post("/", h.CreateTask)
	tasks.Get("/stats", h.TaskStats)
	tasks.Get("/:id", h.GetTask)
	tasks.Put("/:id", h.UpdateTask)
	tasks.Delete("/:id", h.DeleteTask)
	tasks.Patch("/:id/toggle", h.ToggleTask)

	r.Get("/activity", protect, h.ListActivity)
}
