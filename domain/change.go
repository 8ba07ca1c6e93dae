package domain

import "time"

// ChangeType names the kind of mutation a TaskChange reports.
type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// TaskChange is published after a task mutation is persisted.
type TaskChange struct {
	Type   ChangeType `json:"type"`
	UserID string     `json:"user_id"`
	TaskID string     `json:"task_id"`
	At     time.Time  `json:"at"`
}

// NewTaskChange builds a change stamped with the current time.
func NewTaskChange(kind ChangeType, task *Task) TaskChange {
	change := TaskChange{Type: kind, At: time.Now().UTC()}
	if task != nil {
		change.UserID = task.UserID
		change.TaskID = task.ID
	}
	return change
}

// TaskSnapshot is the full task list of one user at a point in time.
// Subscribers replace their local list with it wholesale.
type TaskSnapshot struct {
	UserID string      `json:"user_id"`
	Tasks  []Task      `json:"tasks"`
	Cause  *TaskChange `json:"cause,omitempty"`
	At     time.Time   `json:"at"`
}
