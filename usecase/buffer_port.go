package usecase

import (
	"context"
	"errors"

	"github.com/fastygo/tasksync/domain"
)

const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// OperationBuffer abstracts the buffer processor so use cases stay storage-agnostic.
type OperationBuffer interface {
	BufferProfile(ctx context.Context, operation string, user *domain.User) error
	BufferTask(ctx context.Context, operation string, task *domain.Task) error
}

// Bufferable reports whether a failed write should be parked for replay.
// Domain errors are final answers from the store and are returned as is.
func Bufferable(err error) bool {
	if err == nil {
		return false
	}
	var dErr *domain.Error
	if errors.As(err, &dErr) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}
