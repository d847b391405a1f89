package activity

import (
	"sync"
	"time"
)

// DefaultCapacity is how many entries the feed keeps per user.
const DefaultCapacity = 50

// Entry types.
const (
	TypeTaskCreated = "task_created"
	TypeTaskUpdated = "task_updated"
	TypeTaskToggled = "task_status_toggled"
	TypeTaskDeleted = "task_deleted"
	TypeTaskDueSoon = "task_due_soon"
)

// Entry is one item of a user's activity feed.
type Entry struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	TaskID     string    `json:"taskId"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Feed keeps the most recent entries per user in bounded rings.
type Feed struct {
	mu       sync.RWMutex
	capacity int
	rings    map[string]*ring
}

type ring struct {
	entries []Entry
	next    int
	full    bool
}

// NewFeed creates a Feed holding up to capacity entries per user.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{
		capacity: capacity,
		rings:    make(map[string]*ring),
	}
}

// Add appends an entry to the user's feed, evicting the oldest when full.
func (f *Feed) Add(userID string, e Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.rings[userID]
	if !ok {
		r = &ring{entries: make([]Entry, f.capacity)}
		f.rings[userID] = r
	}

	r.entries[r.next] = e
	r.next = (r.next + 1) % f.capacity
	if r.next == 0 {
		r.full = true
	}
}

// Recent returns up to limit of the user's entries, newest first.
// A non-positive limit returns all of them.
func (f *Feed) Recent(userID string, limit int) []Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()

	r, ok := f.rings[userID]
	if !ok {
		return []Entry{}
	}

	size := r.next
	if r.full {
		size = f.capacity
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]Entry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + f.capacity) % f.capacity
		out = append(out, r.entries[idx])
	}
	return out
}

// Users returns how many users have a feed.
func (f *Feed) Users() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.rings)
}
