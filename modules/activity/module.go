// Package activity keeps a per-user feed of recent task activity, built
// from task and reminder events.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/taskflow/domain/apperr"
	"github.com/example/taskflow/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// Module consumes task events and serves the activity feed.
type Module struct {
	feed   *Feed
	logger types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new activity module.
func NewModule(logger types.Logger) *Module {
	return &Module{
		feed:   NewFeed(DefaultCapacity),
		logger: logger.WithModule("activity"),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "activity"
}

// RegisterEventConsumers subscribes to task and reminder events.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskCreatedV1, m.handleTaskCreated, m); err != nil {
		return fmt.Errorf("failed to register TaskCreated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskUpdatedV1, m.handleTaskUpdated, m); err != nil {
		return fmt.Errorf("failed to register TaskUpdated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskStatusToggledV1, m.handleTaskToggled, m); err != nil {
		return fmt.Errorf("failed to register TaskStatusToggled consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskDeletedV1, m.handleTaskDeleted, m); err != nil {
		return fmt.Errorf("failed to register TaskDeleted consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskDueSoonV1, m.handleTaskDueSoon, m); err != nil {
		return fmt.Errorf("failed to register TaskDueSoon consumer: %w", err)
	}

	m.logger.Info("Registered event consumers", "events", []string{
		"TaskCreated", "TaskUpdated", "TaskStatusToggled", "TaskDeleted", "TaskDueSoon",
	})
	return nil
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListActivity, json.Unmarshal, json.Marshal, m.listActivity,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListActivity, err)
	}

	m.logger.Info("Registered services", "services", []string{ServiceListActivity})
	return nil
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Module started", "capacity", DefaultCapacity)
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"users": m.feed.Users()},
	}
}

func (m *Module) handleTaskCreated(_ context.Context, event events.TaskCreatedEvent, _ *mono.Msg) error {
	m.record(event.UserID, TypeTaskCreated, event.TaskID,
		fmt.Sprintf("Created task '%s' (%s priority)", event.Title, event.Priority), event.CreatedAt)
	return nil
}

func (m *Module) handleTaskUpdated(_ context.Context, event events.TaskUpdatedEvent, _ *mono.Msg) error {
	message := fmt.Sprintf("Updated task '%s'", event.Title)
	if len(event.Fields) > 0 {
		message += " (" + strings.Join(event.Fields, ", ") + ")"
	}
	m.record(event.UserID, TypeTaskUpdated, event.TaskID, message, event.UpdatedAt)
	return nil
}

func (m *Module) handleTaskToggled(_ context.Context, event events.TaskStatusToggledEvent, _ *mono.Msg) error {
	m.record(event.UserID, TypeTaskToggled, event.TaskID,
		fmt.Sprintf("Marked task '%s' as %s", event.Title, event.Status), event.ToggledAt)
	return nil
}

func (m *Module) handleTaskDeleted(_ context.Context, event events.TaskDeletedEvent, _ *mono.Msg) error {
	m.record(event.UserID, TypeTaskDeleted, event.TaskID,
		fmt.Sprintf("Deleted task '%s'", event.Title), event.DeletedAt)
	return nil
}

func (m *Module) handleTaskDueSoon(_ context.Context, event events.TaskDueSoonEvent, _ *mono.Msg) error {
	m.record(event.UserID, TypeTaskDueSoon, event.TaskID,
		fmt.Sprintf("Task '%s' is due %s", event.Title, event.Deadline.Format("Jan 2 15:04 MST")), event.NotedAt)
	return nil
}

func (m *Module) listActivity(_ context.Context, req ListActivityRequest, _ *mono.Msg) (ListActivityResponse, error) {
	if req.UserID == "" {
		return ListActivityResponse{Error: apperr.Validation("user_id is required")}, nil
	}

	items := m.feed.Recent(req.UserID, req.Limit)
	return ListActivityResponse{Items: items, Count: len(items)}, nil
}

func (m *Module) record(userID, entryType, taskID, message string, at time.Time) {
	m.feed.Add(userID, Entry{
		ID:         uuid.NewString(),
		Type:       entryType,
		TaskID:     taskID,
		Message:    message,
		OccurredAt: at,
	})
	m.logger.Debug("Activity recorded", "user_id", userID, "type", entryType, "task_id", taskID)
}
