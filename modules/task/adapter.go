package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/taskflow/domain/apperr"
	domain "github.com/example/taskflow/domain/task"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// TaskPort is the port other modules use to reach task functionality.
type TaskPort interface {
	Create(ctx context.Context, userID string, draft domain.Draft) (*domain.Task, error)
	Get(ctx context.Context, userID, taskID string) (*domain.Task, error)
	List(ctx context.Context, userID, status, priority, search string) ([]domain.Task, error)
	Update(ctx context.Context, userID, taskID string, patch domain.Patch) (*domain.Task, error)
	Toggle(ctx context.Context, userID, taskID string) (*domain.Task, error)
	Delete(ctx context.Context, userID, taskID string) error
	Stats(ctx context.Context, userID string) (domain.Stats, error)
	ListDue(ctx context.Context, from, to time.Time, limit int) ([]domain.Task, error)
}

// TaskAdapter implements TaskPort using the service container.
type TaskAdapter struct {
	container mono.ServiceContainer
}

var _ TaskPort = (*TaskAdapter)(nil)

// NewTaskAdapter creates a new TaskAdapter.
func NewTaskAdapter(container mono.ServiceContainer) *TaskAdapter {
	return &TaskAdapter{
		container: container,
	}
}

// Create creates a new task.
func (a *TaskAdapter) Create(ctx context.Context, userID string, draft domain.Draft) (*domain.Task, error) {
	req := CreateTaskRequest{
		UserID:      userID,
		Title:       draft.Title,
		Description: draft.Description,
		Deadline:    draft.Deadline,
		Priority:    draft.Priority,
	}
	var resp TaskResponse
	if err := callService(ctx, a.container, ServiceCreateTask, &req, &resp); err != nil {
		return nil, err
	}
	return resp.task()
}

// Get retrieves a task by ID.
func (a *TaskAdapter) Get(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	req := GetTaskRequest{UserID: userID, TaskID: taskID}
	var resp TaskResponse
	if err := callService(ctx, a.container, ServiceGetTask, &req, &resp); err != nil {
		return nil, err
	}
	return resp.task()
}

// List lists the user's tasks.
func (a *TaskAdapter) List(ctx context.Context, userID, status, priority, search string) ([]domain.Task, error) {
	req := ListTasksRequest{UserID: userID, Status: status, Priority: priority, Search: search}
	var resp ListTasksResponse
	if err := callService(ctx, a.container, ServiceListTasks, &req, &resp); err != nil {
		return nil, err
	}
	return resp.tasks()
}

// Update partially updates a task.
func (a *TaskAdapter) Update(ctx context.Context, userID, taskID string, patch domain.Patch) (*domain.Task, error) {
	req := UpdateTaskRequest{
		UserID:      userID,
		TaskID:      taskID,
		Title:       patch.Title,
		Description: patch.Description,
		Deadline:    patch.Deadline,
		Priority:    patch.Priority,
		Status:      patch.Status,
	}
	var resp TaskResponse
	if err := callService(ctx, a.container, ServiceUpdateTask, &req, &resp); err != nil {
		return nil, err
	}
	return resp.task()
}

// Toggle flips a task's status.
func (a *TaskAdapter) Toggle(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	req := ToggleTaskRequest{UserID: userID, TaskID: taskID}
	var resp TaskResponse
	if err := callService(ctx, a.container, ServiceToggleTask, &req, &resp); err != nil {
		return nil, err
	}
	return resp.task()
}

// Delete deletes a task.
func (a *TaskAdapter) Delete(ctx context.Context, userID, taskID string) error {
	req := DeleteTaskRequest{UserID: userID, TaskID: taskID}
	var resp DeleteTaskResponse
	if err := callService(ctx, a.container, ServiceDeleteTask, &req, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	return nil
}

// Stats returns the user's task statistics.
func (a *TaskAdapter) Stats(ctx context.Context, userID string) (domain.Stats, error) {
	req := TaskStatsRequest{UserID: userID}
	var resp TaskStatsResponse
	if err := callService(ctx, a.container, ServiceTaskStats, &req, &resp); err != nil {
		return domain.Stats{}, err
	}
	if resp.Error != nil {
		return domain.Stats{}, resp.Error
	}
	return resp.Stats, nil
}

// ListDue lists Incomplete tasks due in [from, to).
func (a *TaskAdapter) ListDue(ctx context.Context, from, to time.Time, limit int) ([]domain.Task, error) {
	req := ListDueTasksRequest{From: from, To: to, Limit: limit}
	var resp ListTasksResponse
	if err := callService(ctx, a.container, ServiceListDueTasks, &req, &resp); err != nil {
		return nil, err
	}
	return resp.tasks()
}

func (r TaskResponse) task() (*domain.Task, error) {
	if r.Error != nil {
		return nil, r.Error
	}
	if r.Task == nil {
		return nil, apperr.Internal(fmt.Errorf("empty task response"))
	}
	return r.Task, nil
}

func (r ListTasksResponse) tasks() ([]domain.Task, error) {
	if r.Error != nil {
		return nil, r.Error
	}
	if r.Tasks == nil {
		return []domain.Task{}, nil
	}
	return r.Tasks, nil
}

func callService[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return apperr.Internal(fmt.Errorf("%s request failed: %w", service, err))
	}
	return nil
}
