package task

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fastygo/tasksync/domain"
	"github.com/fastygo/tasksync/repository"
	"github.com/fastygo/tasksync/usecase"
)

type UseCase struct {
	tasks  repository.TaskRepository
	feed   repository.ChangeFeed
	buffer usecase.OperationBuffer
	logger *zap.Logger

	reloads singleflight.Group
}

func New(tasks repository.TaskRepository, feed repository.ChangeFeed, buffer usecase.OperationBuffer, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:  tasks,
		feed:   feed,
		buffer: buffer,
		logger: logger,
	}
}

func (uc *UseCase) ListTasks(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	if filter.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	filter.Limit = repository.ClampLimit(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return uc.tasks.List(ctx, filter)
}

func (uc *UseCase) GetTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if id == "" {
		return nil, domain.ErrTaskNotFound
	}
	return uc.tasks.GetByID(ctx, userID, id)
}

// CreateTask stores a new task owned by userID. The identifier is always
// assigned here so buffered replays stay idempotent. When the store is
// down and the write was queued, the error has code QUEUED.
func (uc *UseCase) CreateTask(ctx context.Context, userID string, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	task.ID = uuid.NewString()
	task.UserID = userID
	task.ApplyDefaults()
	if err := domain.ValidateTask(task); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	created, err := uc.tasks.Create(ctx, task)
	if err != nil {
		if usecase.Bufferable(err) && uc.shouldBuffer(ctx, usecase.OperationCreate, task) {
			return nil, domain.Queued(err)
		}
		return nil, err
	}
	uc.notify(ctx, domain.ChangeCreated, created)
	return created, nil
}

// UpdateTask merges patch into the stored task.
func (uc *UseCase) UpdateTask(ctx context.Context, userID, id string, patch domain.TaskPatch) (*domain.Task, error) {
	current, err := uc.GetTask(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(current)
	return uc.save(ctx, current)
}

// ToggleTask flips the completion flag.
func (uc *UseCase) ToggleTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	current, err := uc.GetTask(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	current.Completed = !current.Completed
	return uc.save(ctx, current)
}

func (uc *UseCase) DeleteTask(ctx context.Context, userID, id string) error {
	if userID == "" {
		return domain.ErrUnauthorized
	}
	if id == "" {
		return domain.ErrTaskNotFound
	}
	task := &domain.Task{ID: id, UserID: userID}
	if err := uc.tasks.Delete(ctx, userID, id); err != nil {
		if usecase.Bufferable(err) && uc.shouldBuffer(ctx, usecase.OperationDelete, task) {
			return domain.Queued(err)
		}
		return err
	}
	uc.notify(ctx, domain.ChangeDeleted, task)
	return nil
}

func (uc *UseCase) save(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if err := domain.ValidateTask(task); err != nil {
		return nil, err
	}
	task.Normalize()
	task.UpdatedAt = time.Now().UTC()

	if err := uc.tasks.Update(ctx, task); err != nil {
		if usecase.Bufferable(err) && uc.shouldBuffer(ctx, usecase.OperationUpdate, task) {
			return nil, domain.Queued(err)
		}
		return nil, err
	}
	uc.notify(ctx, domain.ChangeUpdated, task)
	return task, nil
}

func (uc *UseCase) notify(ctx context.Context, kind domain.ChangeType, task *domain.Task) {
	if uc.feed == nil || task == nil {
		return
	}
	if err := uc.feed.Publish(ctx, domain.NewTaskChange(kind, task)); err != nil {
		uc.logger.Warn("failed to publish task change",
			zap.String("type", string(kind)),
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
	}
}

func (uc *UseCase) shouldBuffer(ctx context.Context, operation string, task *domain.Task) bool {
	if uc.buffer == nil {
		return false
	}
	if err := uc.buffer.BufferTask(ctx, operation, task); err != nil {
		uc.logger.Error("failed to buffer task operation", zap.String("operation", operation), zap.Error(err))
		return false
	}
	uc.logger.Warn("task operation buffered", zap.String("operation", operation), zap.String("task_id", task.ID))
	return true
}
