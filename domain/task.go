package domain

import (
	"strings"
	"time"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"

	CategoryToday = "Today"
	CategoryOther = "Other"

	TagWork     = "Work"
	TagPersonal = "Personal"
)

// Task represents a user-owned to-do item.
type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	Category    string     `json:"category"`
	Priority    string     `json:"priority"`
	Tags        []string   `json:"tags"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Normalize fills the values a stored document may be missing.
func (t *Task) Normalize() {
	if t == nil {
		return
	}
	if t.Category == "" {
		t.Category = CategoryOther
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
}

// ApplyDefaults prepares a new task before it is first written.
func (t *Task) ApplyDefaults() {
	if t == nil {
		return
	}
	t.Title = strings.TrimSpace(t.Title)
	t.Description = strings.TrimSpace(t.Description)
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Category == "" {
		t.Category = CategoryToday
	}
	if len(t.Tags) == 0 {
		t.Tags = DefaultTags(t.Priority)
	}
}

// DefaultTags derives the tag set used when a task is saved without tags.
func DefaultTags(priority string) []string {
	if priority == PriorityHigh {
		return []string{TagWork}
	}
	return []string{TagPersonal}
}

// TaskPatch carries a partial update. Nil fields are left untouched,
// except DueDate which always replaces the stored value. A priority
// change without explicit tags re-derives the tags from the priority.
type TaskPatch struct {
	Title       *string
	Description *string
	Completed   *bool
	Category    *string
	Priority    *string
	Tags        []string
	DueDate     *time.Time
}

// Apply merges the patch into t.
func (p TaskPatch) Apply(t *Task) {
	if t == nil {
		return
	}
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	switch {
	case p.Tags != nil:
		t.Tags = append([]string(nil), p.Tags...)
	case p.Priority != nil:
		t.Tags = DefaultTags(t.Priority)
	}
	t.DueDate = p.DueDate
}
