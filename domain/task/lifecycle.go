package task

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/taskflow/domain/apperr"
)

// Validation messages.
const (
	MsgMissingFields       = "Please provide title, description, and deadline"
	MsgTitleRequired       = "Please add a task title"
	MsgDescriptionRequired = "Please add a task description"
	MsgDeadlineRequired    = "Please add a deadline"
	MsgTitleTooLong        = "Title cannot be more than 100 characters"
	MsgDescriptionTooLong  = "Description cannot be more than 500 characters"
	MsgInvalidDeadline     = "Deadline must be a valid date"
	MsgInvalidPriority     = "Priority must be one of Low, Medium, High"
	MsgInvalidStatus       = "Status must be one of Incomplete, Completed"
	MsgInvalidPriorityFlt  = "Priority filter must be one of Low, Medium, High, All"
	MsgInvalidStatusFlt    = "Status filter must be one of Incomplete, Completed, All"
)

var deadlineLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ComputeOverdue reports whether a task with the given deadline and status
// is overdue at now.
func ComputeOverdue(deadline time.Time, status Status, now time.Time) bool {
	return status == StatusIncomplete && deadline.Before(now)
}

// ToggleStatus returns the status a toggle moves to.
func ToggleStatus(current Status) Status {
	if current == StatusCompleted {
		return StatusIncomplete
	}
	return StatusCompleted
}

// ValidateTitle trims and checks a title.
func ValidateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperr.Validation(MsgTitleRequired)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", apperr.Validation(MsgTitleTooLong)
	}
	return title, nil
}

// ValidateDescription trims and checks a description.
func ValidateDescription(description string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", apperr.Validation(MsgDescriptionRequired)
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return "", apperr.Validation(MsgDescriptionTooLong)
	}
	return description, nil
}

// ParseDeadline parses a deadline. Values without a zone are taken as UTC.
func ParseDeadline(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, apperr.Validation(MsgDeadlineRequired)
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperr.Validation(MsgInvalidDeadline)
}

// ParsePriority parses a priority. An empty value yields Medium.
func ParsePriority(value string) (Priority, error) {
	switch Priority(strings.TrimSpace(value)) {
	case "":
		return PriorityMedium, nil
	case PriorityLow:
		return PriorityLow, nil
	case PriorityMedium:
		return PriorityMedium, nil
	case PriorityHigh:
		return PriorityHigh, nil
	}
	return "", apperr.Validation(MsgInvalidPriority)
}

// ParseStatus parses a status value.
func ParseStatus(value string) (Status, error) {
	switch Status(strings.TrimSpace(value)) {
	case StatusIncomplete:
		return StatusIncomplete, nil
	case StatusCompleted:
		return StatusCompleted, nil
	}
	return "", apperr.Validation(MsgInvalidStatus)
}

// Validate checks a draft without building a task.
func Validate(d Draft) error {
	_, err := normalize(d)
	return err
}

type normalized struct {
	title       string
	description string
	deadline    time.Time
	priority    Priority
}

func normalize(d Draft) (normalized, error) {
	var n normalized
	if strings.TrimSpace(d.Title) == "" || strings.TrimSpace(d.Description) == "" ||
		strings.TrimSpace(d.Deadline) == "" {
		return n, apperr.Validation(MsgMissingFields)
	}

	var err error
	if n.title, err = ValidateTitle(d.Title); err != nil {
		return n, err
	}
	if n.description, err = ValidateDescription(d.Description); err != nil {
		return n, err
	}
	if n.deadline, err = ParseDeadline(d.Deadline); err != nil {
		return n, err
	}
	if n.priority, err = ParsePriority(d.Priority); err != nil {
		return n, err
	}
	return n, nil
}

// New builds a validated Incomplete task owned by ownerID, stamped at now.
func New(id, ownerID string, d Draft, now time.Time) (*Task, error) {
	n, err := normalize(d)
	if err != nil {
		return nil, err
	}

	t := &Task{
		ID:          id,
		OwnerID:     ownerID,
		Title:       n.title,
		TitleSearch: SearchKey(n.title),
		Description: n.description,
		Deadline:    n.deadline,
		Priority:    n.priority,
		Status:      StatusIncomplete,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	t.Overdue = ComputeOverdue(t.Deadline, t.Status, now)
	return t, nil
}

// Apply validates every supplied field of p and, only if all are valid,
// writes them to t and recomputes the overdue flag at now.
func (t *Task) Apply(p Patch, now time.Time) error {
	next := *t

	var err error
	if p.Title != nil {
		if next.Title, err = ValidateTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.Description != nil {
		if next.Description, err = ValidateDescription(*p.Description); err != nil {
			return err
		}
	}
	if p.Deadline != nil {
		if next.Deadline, err = ParseDeadline(*p.Deadline); err != nil {
			return err
		}
	}
	if p.Priority != nil {
		if strings.TrimSpace(*p.Priority) == "" {
			return apperr.Validation(MsgInvalidPriority)
		}
		if next.Priority, err = ParsePriority(*p.Priority); err != nil {
			return err
		}
	}
	if p.Status != nil {
		if next.Status, err = ParseStatus(*p.Status); err != nil {
			return err
		}
	}

	next.TitleSearch = SearchKey(next.Title)
	next.UpdatedAt = now
	next.Overdue = ComputeOverdue(next.Deadline, next.Status, now)
	*t = next
	return nil
}

// Toggle flips the status and recomputes the overdue flag at now.
func (t *Task) Toggle(now time.Time) {
	t.Status = ToggleStatus(t.Status)
	t.UpdatedAt = now
	t.Overdue = ComputeOverdue(t.Deadline, t.Status, now)
}

// OwnedBy reports whether userID owns the task.
func (t *Task) OwnedBy(userID string) bool {
	return t.OwnerID == userID
}

// NewFilter builds a Filter from raw query values. Empty values and "All"
// mean no constraint.
func NewFilter(status, priority, search string) (Filter, error) {
	var f Filter

	if s := strings.TrimSpace(status); s != "" && s != FilterAll {
		st, err := ParseStatus(s)
		if err != nil {
			return Filter{}, apperr.Validation(MsgInvalidStatusFlt)
		}
		f.Status = &st
	}

	if p := strings.TrimSpace(priority); p != "" && p != FilterAll {
		pr, err := ParsePriority(p)
		if err != nil {
			return Filter{}, apperr.Validation(MsgInvalidPriorityFlt)
		}
		f.Priority = &pr
	}

	if q := strings.TrimSpace(search); q != "" {
		f.Search = &q
	}

	return f, nil
}

// Matches reports whether t satisfies the filter.
func (f Filter) Matches(t *Task) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.Search != nil && !strings.Contains(SearchKey(t.Title), SearchKey(*f.Search)) {
		return false
	}
	return true
}

// SearchKey folds s for case-insensitive title search. The repository
// matches the stored title_search column against the folded query.
func SearchKey(s string) string {
	return strings.ToLower(s)
}

// NewStats derives the completion rate from raw counts.
func NewStats(total, completed, overdue int64) Stats {
	s := Stats{
		Total:      total,
		Completed:  completed,
		Incomplete: total - completed,
		Overdue:    overdue,
	}
	if total > 0 {
		s.CompletionRate = int(math.Round(float64(completed) / float64(total) * 100))
	}
	return s
}
