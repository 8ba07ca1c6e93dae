package services

import (
	"context"
	"encoding/json"

	"github.com/fastygo/tasksync/domain"
	"github.com/fastygo/tasksync/internal/infrastructure/buffer"
	"github.com/fastygo/tasksync/usecase"
)

// BufferBridge adapts the processor to the use case buffering port.
type BufferBridge struct {
	processor *BufferProcessor
}

func NewBufferBridge(processor *BufferProcessor) *BufferBridge {
	return &BufferBridge{processor: processor}
}

func (b *BufferBridge) BufferProfile(ctx context.Context, operation string, user *domain.User) error {
	if b.processor == nil || user == nil {
		return domain.ErrInvalidPayload
	}
	return b.enqueue(ctx, buffer.EntityUser, operation, user.ID, buffer.PriorityUser, user)
}

func (b *BufferBridge) BufferTask(ctx context.Context, operation string, task *domain.Task) error {
	if b.processor == nil || task == nil {
		return domain.ErrInvalidPayload
	}
	return b.enqueue(ctx, buffer.EntityTask, operation, task.UserID, buffer.PriorityTask, task)
}

func (b *BufferBridge) enqueue(ctx context.Context, entity, operation, userID string, priority int, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.processor.Enqueue(ctx, buffer.Item{
		UserID:    userID,
		Entity:    entity,
		Operation: operation,
		Data:      payload,
		Priority:  priority,
	})
}

var _ usecase.OperationBuffer = (*BufferBridge)(nil)
