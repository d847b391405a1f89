package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/taskflow/domain/apperr"
	"github.com/example/taskflow/events"
	"github.com/example/taskflow/modules/cache"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TaskModule provides task management services (core domain).
type TaskModule struct {
	db       *gorm.DB
	service  *TaskService
	cache    cache.ListCache
	plugin   *cache.PluginModule
	eventBus mono.EventBus
	dbPath   string
	logger   types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*TaskModule)(nil)
	_ mono.ServiceProviderModule = (*TaskModule)(nil)
	_ mono.EventEmitterModule    = (*TaskModule)(nil)
	_ mono.UsePluginModule       = (*TaskModule)(nil)
	_ mono.HealthCheckableModule = (*TaskModule)(nil)
)

// NewModule creates a new TaskModule backed by the SQLite database at dbPath.
func NewModule(dbPath string, logger types.Logger) *TaskModule {
	return &TaskModule{
		dbPath: dbPath,
		logger: logger.WithModule("task"),
	}
}

// Name returns the module name.
func (m *TaskModule) Name() string {
	return "task"
}

// SetPlugin receives plugin instances from the mono framework before Start.
func (m *TaskModule) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias != "cache" {
		return
	}
	// The port is resolved in Start, after plugins have started.
	if cachePlugin, ok := plugin.(*cache.PluginModule); ok {
		m.plugin = cachePlugin
		m.logger.Info("Cache plugin injected")
	}
}

// SetEventBus sets the bus task events are published on.
func (m *TaskModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module publishes.
func (m *TaskModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.TaskCreatedV1.ToBase(),
		events.TaskUpdatedV1.ToBase(),
		events.TaskStatusToggledV1.ToBase(),
		events.TaskDeletedV1.ToBase(),
	}
}

// Start opens the database and builds the service.
func (m *TaskModule) Start(_ context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	repo := NewTaskRepository(db)
	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if m.plugin != nil {
		m.cache = m.plugin.Port()
	}
	if m.eventBus == nil {
		m.logger.Warn("eventBus not set, events will not be published")
	}

	m.service = NewTaskService(repo, m.cache, m.eventBus, m.logger)
	m.logger.Info("Module started", "database", m.dbPath, "list_cache", m.cache != nil)
	return nil
}

// Stop closes the database connection.
func (m *TaskModule) Stop(_ context.Context) error {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	m.logger.Info("Module stopped")
	return nil
}

// Health pings the database.
func (m *TaskModule) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{Healthy: false, Message: "database not initialized"}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get database connection: %v", err),
		}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"database":   m.dbPath,
			"list_cache": m.cache != nil,
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *TaskModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCreateTask, json.Unmarshal, json.Marshal, m.createTask,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCreateTask, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetTask, json.Unmarshal, json.Marshal, m.getTask,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetTask, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListTasks, json.Unmarshal, json.Marshal, m.listTasks,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListTasks, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceUpdateTask, json.Unmarshal, json.Marshal, m.updateTask,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceUpdateTask, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceToggleTask, json.Unmarshal, json.Marshal, m.toggleTask,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceToggleTask, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceDeleteTask, json.Unmarshal, json.Marshal, m.deleteTask,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceDeleteTask, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceTaskStats, json.Unmarshal, json.Marshal, m.taskStats,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceTaskStats, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListDueTasks, json.Unmarshal, json.Marshal, m.listDueTasks,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListDueTasks, err)
	}

	m.logger.Info("Registered services", "services", []string{
		ServiceCreateTask, ServiceGetTask, ServiceListTasks, ServiceUpdateTask,
		ServiceToggleTask, ServiceDeleteTask, ServiceTaskStats, ServiceListDueTasks,
	})
	return nil
}

func (m *TaskModule) createTask(ctx context.Context, req CreateTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	task, err := m.service.Create(ctx, req.UserID, draftOf(req))
	if err != nil {
		return TaskResponse{Error: m.wireError(ServiceCreateTask, err)}, nil
	}
	m.logger.Info("Task created", "task_id", task.ID, "user_id", task.OwnerID)
	return TaskResponse{Task: task}, nil
}

func (m *TaskModule) getTask(ctx context.Context, req GetTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	task, err := m.service.Get(ctx, req.UserID, req.TaskID)
	if err != nil {
		return TaskResponse{Error: m.wireError(ServiceGetTask, err)}, nil
	}
	return TaskResponse{Task: task}, nil
}

func (m *TaskModule) listTasks(ctx context.Context, req ListTasksRequest, _ *mono.Msg) (ListTasksResponse, error) {
	tasks, err := m.service.List(ctx, req.UserID, req.Status, req.Priority, req.Search)
	if err != nil {
		return ListTasksResponse{Error: m.wireError(ServiceListTasks, err)}, nil
	}
	return ListTasksResponse{Tasks: tasks, Count: len(tasks)}, nil
}

func (m *TaskModule) updateTask(ctx context.Context, req UpdateTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	task, err := m.service.Update(ctx, req.UserID, req.TaskID, req.patch())
	if err != nil {
		return TaskResponse{Error: m.wireError(ServiceUpdateTask, err)}, nil
	}
	m.logger.Info("Task updated", "task_id", task.ID)
	return TaskResponse{Task: task}, nil
}

func (m *TaskModule) toggleTask(ctx context.Context, req ToggleTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	task, err := m.service.Toggle(ctx, req.UserID, req.TaskID)
	if err != nil {
		return TaskResponse{Error: m.wireError(ServiceToggleTask, err)}, nil
	}
	m.logger.Info("Task toggled", "task_id", task.ID, "status", task.Status)
	return TaskResponse{Task: task}, nil
}

func (m *TaskModule) deleteTask(ctx context.Context, req DeleteTaskRequest, _ *mono.Msg) (DeleteTaskResponse, error) {
	if err := m.service.Delete(ctx, req.UserID, req.TaskID); err != nil {
		return DeleteTaskResponse{Error: m.wireError(ServiceDeleteTask, err)}, nil
	}
	m.logger.Info("Task deleted", "task_id", req.TaskID)
	return DeleteTaskResponse{Deleted: true}, nil
}

func (m *TaskModule) taskStats(ctx context.Context, req TaskStatsRequest, _ *mono.Msg) (TaskStatsResponse, error) {
	stats, err := m.service.Stats(ctx, req.UserID)
	if err != nil {
		return TaskStatsResponse{Error: m.wireError(ServiceTaskStats, err)}, nil
	}
	return TaskStatsResponse{Stats: stats}, nil
}

func (m *TaskModule) listDueTasks(ctx context.Context, req ListDueTasksRequest, _ *mono.Msg) (ListTasksResponse, error) {
	tasks, err := m.service.ListDue(ctx, req.From, req.To, req.Limit)
	if err != nil {
		return ListTasksResponse{Error: m.wireError(ServiceListDueTasks, err)}, nil
	}
	return ListTasksResponse{Tasks: tasks, Count: len(tasks)}, nil
}

func (m *TaskModule) wireError(service string, err error) *apperr.Error {
	wired := apperr.Wire(err)
	if wired.Kind == apperr.KindInternal {
		m.logger.Error("Service failed", "service", service, "error", err)
	}
	return wired
}
