package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// TaskDueSoonEvent is emitted once per task when an incomplete task's
// deadline enters the reminder window.
type TaskDueSoonEvent struct {
	TaskID   string    `json:"task_id"`
	UserID   string    `json:"user_id"`
	Title    string    `json:"title"`
	Deadline time.Time `json:"deadline"`
	NotedAt  time.Time `json:"noted_at"`
}

// TaskDueSoonV1 is the typed event definition for due-soon reminders.
// Subject: events.reminder.v1.task-due-soon
var TaskDueSoonV1 = helper.EventDefinition[TaskDueSoonEvent](
	"reminder", "TaskDueSoon", "v1",
)
