package task

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/example/taskflow/domain/task"
	"gorm.io/gorm"
)

// ErrTaskNotFound is returned when a task is not found.
var ErrTaskNotFound = errors.New("task not found")

// likeEscaper escapes LIKE wildcards so search matches titles literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// TaskRepository handles task persistence using GORM.
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{
		db: db,
	}
}

// Migrate creates or updates the tasks table and fills title_search for
// rows written before the column existed.
func (r *TaskRepository) Migrate() error {
	if err := r.db.AutoMigrate(&domain.Task{}); err != nil {
		return err
	}

	var rows []domain.Task
	return r.db.Where("title_search = '' AND title <> ''").
		FindInBatches(&rows, 200, func(_ *gorm.DB, _ int) error {
			for i := range rows {
				err := r.db.Model(&domain.Task{}).Where("id = ?", rows[i].ID).
					UpdateColumn("title_search", domain.SearchKey(rows[i].Title)).Error
				if err != nil {
					return err
				}
			}
			return nil
		}).Error
}

// Create inserts a new task.
func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) error {
	task.TitleSearch = domain.SearchKey(task.Title)
	return r.db.WithContext(ctx).Create(task).Error
}

// FindByID finds a task by ID regardless of owner.
func (r *TaskRepository) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	result := r.db.WithContext(ctx).First(&task, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, result.Error
	}
	return &task, nil
}

// List returns the owner's tasks matching filter, newest first.
func (r *TaskRepository) List(ctx context.Context, ownerID string, filter domain.Filter) ([]domain.Task, error) {
	query := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Priority != nil {
		query = query.Where("priority = ?", *filter.Priority)
	}
	if filter.Search != nil {
		pattern := "%" + likeEscaper.Replace(domain.SearchKey(*filter.Search)) + "%"
		query = query.Where(`title_search LIKE ? ESCAPE '\'`, pattern)
	}

	tasks := make([]domain.Task, 0)
	if err := query.Order("created_at DESC").Order("id DESC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Save writes every column of an existing task. It never inserts: a task
// deleted since it was loaded yields ErrTaskNotFound.
func (r *TaskRepository) Save(ctx context.Context, task *domain.Task) error {
	task.TitleSearch = domain.SearchKey(task.Title)
	result := r.db.WithContext(ctx).Model(task).Select("*").Updates(task)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Delete hard-deletes a task by ID.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&domain.Task{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Stats counts the owner's tasks by completion and overdue flag.
func (r *TaskRepository) Stats(ctx context.Context, ownerID string) (domain.Stats, error) {
	var row struct {
		Total     int64
		Completed int64
		Overdue   int64
	}

	err := r.db.WithContext(ctx).Model(&domain.Task{}).
		Select(
			"COUNT(*) AS total, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS completed, "+
				"COALESCE(SUM(CASE WHEN overdue THEN 1 ELSE 0 END), 0) AS overdue",
			domain.StatusCompleted,
		).
		Where("owner_id = ?", ownerID).
		Scan(&row).Error
	if err != nil {
		return domain.Stats{}, err
	}

	return domain.NewStats(row.Total, row.Completed, row.Overdue), nil
}

// ListDueBetween returns Incomplete tasks of every owner whose deadline
// falls in [from, to), earliest deadline first.
func (r *TaskRepository) ListDueBetween(ctx context.Context, from, to time.Time, limit int) ([]domain.Task, error) {
	tasks := make([]domain.Task, 0)
	err := r.db.WithContext(ctx).
		Where("status = ? AND deadline >= ? AND deadline < ?", domain.StatusIncomplete, from, to).
		Order("deadline ASC").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}
