package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/taskflow/domain/apperr"
	domain "github.com/example/taskflow/domain/task"
	"github.com/example/taskflow/events"
	"github.com/example/taskflow/modules/cache"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Client-facing messages.
const (
	MsgTaskNotFound       = "Task not found"
	MsgNotAuthorizedRead  = "Not authorized to access this task"
	MsgNotAuthorizedWrite = "Not authorized to update this task"
	MsgNotAuthorizedDel   = "Not authorized to delete this task"
)

// DefaultDueLimit caps a due-task sweep when the caller gives no limit.
const DefaultDueLimit = 500

// TaskService implements the task store operations on top of the
// repository, keeping the optional list cache coherent and publishing
// task events after successful writes.
type TaskService struct {
	repo     *TaskRepository
	cache    cache.ListCache
	eventBus mono.EventBus
	logger   types.Logger
	now      func() time.Time
	newID    func() string
	sfGroup  singleflight.Group // collapses concurrent list cache misses
}

// NewTaskService creates a new TaskService. listCache and eventBus may be nil.
func NewTaskService(repo *TaskRepository, listCache cache.ListCache, eventBus mono.EventBus, logger types.Logger) *TaskService {
	return &TaskService{
		repo:     repo,
		cache:    listCache,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Create validates the draft and stores a new Incomplete task.
func (s *TaskService) Create(ctx context.Context, ownerID string, draft domain.Draft) (*domain.Task, error) {
	task, err := domain.New(s.newID(), ownerID, draft, s.now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	s.invalidate(ctx, ownerID)

	s.emit("TaskCreated", task.ID, func(bus mono.EventBus) error {
		return events.TaskCreatedV1.Publish(bus, events.TaskCreatedEvent{
			TaskID:    task.ID,
			UserID:    task.OwnerID,
			Title:     task.Title,
			Priority:  string(task.Priority),
			Deadline:  task.Deadline,
			CreatedAt: task.CreatedAt,
		}, nil)
	})

	return task, nil
}

// Get returns the task if ownerID owns it.
func (s *TaskService) Get(ctx context.Context, ownerID, taskID string) (*domain.Task, error) {
	return s.load(ctx, ownerID, taskID, MsgNotAuthorizedRead)
}

// List returns the owner's tasks matching the raw filter values, newest first.
func (s *TaskService) List(ctx context.Context, ownerID, status, priority, search string) ([]domain.Task, error) {
	filter, err := domain.NewFilter(status, priority, search)
	if err != nil {
		return nil, err
	}

	if s.cache == nil {
		return s.repo.List(ctx, ownerID, filter)
	}

	key := listCacheKey(filter)

	gen, err := s.cache.Generation(ctx, ownerID)
	if err != nil {
		s.logger.Warn("List cache generation read failed", "user_id", ownerID, "error", err)
		return s.repo.List(ctx, ownerID, filter)
	}

	var cached []domain.Task
	found, err := s.cache.Get(ctx, ownerID, gen, key, &cached)
	if err != nil {
		s.logger.Warn("List cache read failed", "user_id", ownerID, "error", err)
	}
	if found {
		return matching(cached, filter), nil
	}

	val, err, _ := s.sfGroup.Do(ownerID+"|"+gen+"|"+key, func() (any, error) {
		tasks, err := s.repo.List(ctx, ownerID, filter)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, ownerID, gen, key, tasks); err != nil {
			s.logger.Warn("List cache write failed", "user_id", ownerID, "error", err)
		}
		return tasks, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	return val.([]domain.Task), nil
}

// Update applies a partial update after the ownership check. Either every
// supplied field is valid and written, or nothing changes.
func (s *TaskService) Update(ctx context.Context, ownerID, taskID string, patch domain.Patch) (*domain.Task, error) {
	task, err := s.load(ctx, ownerID, taskID, MsgNotAuthorizedWrite)
	if err != nil {
		return nil, err
	}

	if err := task.Apply(patch, s.now().UTC()); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, task); err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return nil, apperr.NotFound(MsgTaskNotFound)
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	s.invalidate(ctx, ownerID)

	s.emit("TaskUpdated", task.ID, func(bus mono.EventBus) error {
		return events.TaskUpdatedV1.Publish(bus, events.TaskUpdatedEvent{
			TaskID:    task.ID,
			UserID:    task.OwnerID,
			Title:     task.Title,
			Fields:    patchedFields(patch),
			UpdatedAt: task.UpdatedAt,
		}, nil)
	})

	return task, nil
}

// Toggle flips the task between Incomplete and Completed.
func (s *TaskService) Toggle(ctx context.Context, ownerID, taskID string) (*domain.Task, error) {
	task, err := s.load(ctx, ownerID, taskID, MsgNotAuthorizedWrite)
	if err != nil {
		return nil, err
	}

	task.Toggle(s.now().UTC())

	if err := s.repo.Save(ctx, task); err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return nil, apperr.NotFound(MsgTaskNotFound)
		}
		return nil, fmt.Errorf("failed to toggle task: %w", err)
	}
	s.invalidate(ctx, ownerID)

	s.emit("TaskStatusToggled", task.ID, func(bus mono.EventBus) error {
		return events.TaskStatusToggledV1.Publish(bus, events.TaskStatusToggledEvent{
			TaskID:    task.ID,
			UserID:    task.OwnerID,
			Title:     task.Title,
			Status:    string(task.Status),
			ToggledAt: task.UpdatedAt,
		}, nil)
	})

	return task, nil
}

// Delete hard-deletes the task after the ownership check.
func (s *TaskService) Delete(ctx context.Context, ownerID, taskID string) error {
	task, err := s.load(ctx, ownerID, taskID, MsgNotAuthorizedDel)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, task.ID); err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return apperr.NotFound(MsgTaskNotFound)
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}
	s.invalidate(ctx, ownerID)

	s.emit("TaskDeleted", task.ID, func(bus mono.EventBus) error {
		return events.TaskDeletedV1.Publish(bus, events.TaskDeletedEvent{
			TaskID:    task.ID,
			UserID:    task.OwnerID,
			Title:     task.Title,
			DeletedAt: s.now().UTC(),
		}, nil)
	})

	return nil
}

// Stats summarizes the owner's tasks.
func (s *TaskService) Stats(ctx context.Context, ownerID string) (domain.Stats, error) {
	stats, err := s.repo.Stats(ctx, ownerID)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("failed to compute stats: %w", err)
	}
	return stats, nil
}

// ListDue returns Incomplete tasks whose deadline falls in [from, to).
func (s *TaskService) ListDue(ctx context.Context, from, to time.Time, limit int) ([]domain.Task, error) {
	if !from.Before(to) {
		return []domain.Task{}, nil
	}
	if limit <= 0 {
		limit = DefaultDueLimit
	}

	tasks, err := s.repo.ListDueBetween(ctx, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due tasks: %w", err)
	}
	return tasks, nil
}

// load fetches a task and verifies ownership before any mutation.
func (s *TaskService) load(ctx context.Context, ownerID, taskID, deniedMsg string) (*domain.Task, error) {
	task, err := s.repo.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return nil, apperr.NotFound(MsgTaskNotFound)
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	if !task.OwnedBy(ownerID) {
		return nil, apperr.Forbidden(deniedMsg)
	}
	return task, nil
}

func (s *TaskService) invalidate(ctx context.Context, ownerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateOwner(ctx, ownerID); err != nil {
		s.logger.Warn("List cache invalidation failed", "user_id", ownerID, "error", err)
	}
}

// emit publishes an event when a bus is wired. Publishing is best-effort:
// failures are logged and never fail the write.
func (s *TaskService) emit(event, taskID string, publish func(mono.EventBus) error) {
	if s.eventBus == nil {
		return
	}
	if err := publish(s.eventBus); err != nil {
		s.logger.Warn("Failed to publish event", "event", event, "task_id", taskID, "error", err)
	}
}

// matching drops cached tasks the filter rejects.
func matching(tasks []domain.Task, filter domain.Filter) []domain.Task {
	out := tasks[:0]
	for i := range tasks {
		if filter.Matches(&tasks[i]) {
			out = append(out, tasks[i])
		}
	}
	return out
}

func listCacheKey(f domain.Filter) string {
	status, priority, search := domain.FilterAll, domain.FilterAll, ""
	if f.Status != nil {
		status = string(*f.Status)
	}
	if f.Priority != nil {
		priority = string(*f.Priority)
	}
	if f.Search != nil {
		search = strings.ToLower(*f.Search)
	}
	return "list:" + status + ":" + priority + ":" + search
}

func patchedFields(p domain.Patch) []string {
	fields := make([]string, 0, 5)
	if p.Title != nil {
		fields = append(fields, "title")
	}
	if p.Description != nil {
		fields = append(fields, "description")
	}
	if p.Deadline != nil {
		fields = append(fields, "deadline")
	}
	if p.Priority != nil {
		fields = append(fields, "priority")
	}
	if p.Status != nil {
		fields = append(fields, "status")
	}
	return fields
}
