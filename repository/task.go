package repository

import (
	"context"

	"github.com/fastygo/tasksync/domain"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

type TaskFilter struct {
	UserID    string
	Completed *bool
	Category  string
	Limit     int
	Offset    int
}

// ClampLimit bounds a requested page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// TaskRepository stores tasks. Every lookup is scoped to the owning user.
type TaskRepository interface {
	GetByID(ctx context.Context, userID, id string) (*domain.Task, error)
	// List returns tasks ordered by creation time, newest first.
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, userID, id string) error
}
