package transport

import (
	"strings"
	"time"

	"github.com/fastygo/tasksync/domain"
)

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	TTL int `json:"ttl_seconds"`
}

type ProfileUpdateRequest struct {
	Email string `json:"email"`
}

// TaskRequest is the body of task create and update calls. Absent fields
// are nil; due_date is RFC 3339 and an absent or empty value clears it.
type TaskRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Completed   *bool    `json:"completed"`
	Category    *string  `json:"category"`
	Priority    *string  `json:"priority"`
	Tags        []string `json:"tags"`
	DueDate     *string  `json:"due_date"`
}

func (r TaskRequest) dueDate() (*time.Time, error) {
	if r.DueDate == nil || strings.TrimSpace(*r.DueDate) == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*r.DueDate))
	if err != nil {
		return nil, domain.NewError(domain.ErrCodeInvalid, "due_date must be RFC 3339")
	}
	utc := parsed.UTC()
	return &utc, nil
}

// Task builds a new task from the request.
func (r TaskRequest) Task() (*domain.Task, error) {
	due, err := r.dueDate()
	if err != nil {
		return nil, err
	}
	task := &domain.Task{
		Title:       deref(r.Title),
		Description: deref(r.Description),
		Category:    deref(r.Category),
		Priority:    deref(r.Priority),
		Tags:        r.Tags,
		DueDate:     due,
	}
	if r.Completed != nil {
		task.Completed = *r.Completed
	}
	return task, nil
}

// Patch builds a partial update from the request.
func (r TaskRequest) Patch() (domain.TaskPatch, error) {
	due, err := r.dueDate()
	if err != nil {
		return domain.TaskPatch{}, err
	}
	return domain.TaskPatch{
		Title:       r.Title,
		Description: r.Description,
		Completed:   r.Completed,
		Category:    r.Category,
		Priority:    r.Priority,
		Tags:        r.Tags,
		DueDate:     due,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
