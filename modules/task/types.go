package task

import (
	"time"

	"github.com/example/taskflow/domain/apperr"
	domain "github.com/example/taskflow/domain/task"
)

// Service names exposed by the task module.
const (
	ServiceCreateTask   = "create-task"
	ServiceGetTask      = "get-task"
	ServiceListTasks    = "list-tasks"
	ServiceUpdateTask   = "update-task"
	ServiceToggleTask   = "toggle-task"
	ServiceDeleteTask   = "delete-task"
	ServiceTaskStats    = "task-stats"
	ServiceListDueTasks = "list-due-tasks"
)

// CreateTaskRequest represents a create task request.
type CreateTaskRequest struct {
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
	Priority    string `json:"priority,omitempty"`
}

// GetTaskRequest represents a get task request.
type GetTaskRequest struct {
	UserID string `json:"user_id"`
	TaskID string `json:"task_id"`
}

// ListTasksRequest carries raw filter values; empty or "All" means no
// constraint.
type ListTasksRequest struct {
	UserID   string `json:"user_id"`
	Status   string `json:"status,omitempty"`
	Priority string `json:"priority,omitempty"`
	Search   string `json:"search,omitempty"`
}

// UpdateTaskRequest represents a partial update. Nil fields are untouched.
type UpdateTaskRequest struct {
	UserID      string  `json:"user_id"`
	TaskID      string  `json:"task_id"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Deadline    *string `json:"deadline,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// ToggleTaskRequest represents a status toggle request.
type ToggleTaskRequest struct {
	UserID string `json:"user_id"`
	TaskID string `json:"task_id"`
}

// DeleteTaskRequest represents a delete task request.
type DeleteTaskRequest struct {
	UserID string `json:"user_id"`
	TaskID string `json:"task_id"`
}

// TaskStatsRequest represents a stats request.
type TaskStatsRequest struct {
	UserID string `json:"user_id"`
}

// ListDueTasksRequest asks for Incomplete tasks with a deadline in [From, To).
type ListDueTasksRequest struct {
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
	Limit int       `json:"limit,omitempty"`
}

// TaskResponse carries a single task.
type TaskResponse struct {
	Task  *domain.Task  `json:"task,omitempty"`
	Error *apperr.Error `json:"error,omitempty"`
}

// ListTasksResponse carries a task listing.
type ListTasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
	Count int           `json:"count"`
	Error *apperr.Error `json:"error,omitempty"`
}

// DeleteTaskResponse represents a delete task response.
type DeleteTaskResponse struct {
	Deleted bool          `json:"deleted"`
	Error   *apperr.Error `json:"error,omitempty"`
}

// TaskStatsResponse carries the owner's task statistics.
type TaskStatsResponse struct {
	Stats domain.Stats  `json:"stats"`
	Error *apperr.Error `json:"error,omitempty"`
}

func (r UpdateTaskRequest) patch() domain.Patch {
	return domain.Patch{
		Title:       r.Title,
		Description: r.Description,
		Deadline:    r.Deadline,
		Priority:    r.Priority,
		Status:      r.Status,
	}
}

func draftOf(r CreateTaskRequest) domain.Draft {
	return domain.Draft{
		Title:       r.Title,
		Description: r.Description,
		Deadline:    r.Deadline,
		Priority:    r.Priority,
	}
}
