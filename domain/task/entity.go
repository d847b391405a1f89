package task

import "time"

// Status represents the completion state of a task.
type Status string

const (
	StatusIncomplete Status = "Incomplete"
	StatusCompleted  Status = "Completed"
)

// Priority represents how urgent a task is.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// FilterAll is the filter value meaning "no constraint".
const FilterAll = "All"

// Field bounds.
const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
)

// Task is the core domain entity, owned by exactly one user.
type Task struct {
	ID          string    `gorm:"primaryKey;type:text" json:"id"`
	OwnerID     string    `gorm:"index:idx_tasks_owner_status;index:idx_tasks_owner_deadline;not null;type:text" json:"user"`
	Title       string    `gorm:"not null;type:text" json:"title"`
	TitleSearch string    `gorm:"not null;type:text;default:''" json:"-"`
	Description string    `gorm:"not null;type:text" json:"description"`
	Deadline    time.Time `gorm:"index:idx_tasks_owner_deadline;not null" json:"deadline"`
	Priority    Priority  `gorm:"not null;type:text;default:Medium" json:"priority"`
	Status      Status    `gorm:"index:idx_tasks_owner_status;not null;type:text;default:Incomplete" json:"status"`
	Overdue     bool      `gorm:"not null;default:false" json:"isOverdue"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false" json:"updatedAt"`
}

// TableName returns the table name for the Task entity.
func (Task) TableName() string {
	return "tasks"
}

// Filter narrows a task listing. A nil field means no constraint on that
// dimension.
type Filter struct {
	Status   *Status
	Priority *Priority
	Search   *string
}

// Stats summarizes one owner's tasks.
type Stats struct {
	Total          int64 `json:"total"`
	Completed      int64 `json:"completed"`
	Incomplete     int64 `json:"incomplete"`
	Overdue        int64 `json:"overdue"`
	CompletionRate int   `json:"completionRate"`
}

// Draft holds the client-supplied fields of a new task.
type Draft struct {
	Title       string
	Description string
	Deadline    string
	Priority    string
}

// Patch holds the client-supplied fields of a partial update. Nil fields
// are left untouched.
type Patch struct {
	Title       *string
	Description *string
	Deadline    *string
	Priority    *string
	Status      *string
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Deadline == nil &&
		p.Priority == nil && p.Status == nil
}
