package datastore

import (
	"context"
	"errors"
	"time"

	gcds "cloud.google.com/go/datastore"
	"github.com/google/uuid"

	"github.com/fastygo/tasksync/domain"
	"github.com/fastygo/tasksync/repository"
)

type taskRepository struct {
	client *gcds.Client
}

// NewTaskRepository returns a Datastore-backed TaskRepository.
func NewTaskRepository(client *gcds.Client) repository.TaskRepository {
	return &taskRepository{client: client}
}

func (r *taskRepository) GetByID(ctx context.Context, userID, id string) (*domain.Task, error) {
	key := taskKey(userID, id)
	var entity taskEntity
	if err := r.client.Get(ctx, key, &entity); err != nil {
		return nil, translate(err, domain.ErrTaskNotFound)
	}
	task := entity.toDomain(key)
	return &task, nil
}

// List loads the owner's tasks with an ancestor query. The completed and
// category filters are applied in process so no composite index is needed.
func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	query := gcds.NewQuery(KindTask).
		Ancestor(userKey(filter.UserID)).
		Order("-created_at")

	var entities []taskEntity
	keys, err := r.client.GetAll(ctx, query, &entities)
	if err != nil {
		return nil, err
	}

	tasks := make([]domain.Task, 0, len(keys))
	for i, key := range keys {
		tasks = append(tasks, entities[i].toDomain(key))
	}
	return page(tasks, filter), nil
}

// page applies the filters Datastore cannot combine with the ancestor
// ordering without composite indexes, then offset and limit.
func page(tasks []domain.Task, filter repository.TaskFilter) []domain.Task {
	kept := tasks[:0]
	for _, task := range tasks {
		if filter.Completed != nil && task.Completed != *filter.Completed {
			continue
		}
		if filter.Category != "" && task.Category != filter.Category {
			continue
		}
		kept = append(kept, task)
	}

	offset := max(filter.Offset, 0)
	if offset >= len(kept) {
		return []domain.Task{}
	}
	kept = kept[offset:]
	if limit := repository.ClampLimit(filter.Limit); len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil || task.UserID == "" {
		return nil, domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	if _, err := r.client.Put(ctx, taskKey(task.UserID, task.ID), toTaskEntity(task)); err != nil {
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	if task == nil || task.UserID == "" || task.ID == "" {
		return domain.ErrInvalidPayload
	}
	key := taskKey(task.UserID, task.ID)

	_, err := r.client.RunInTransaction(ctx, func(tx *gcds.Transaction) error {
		var existing taskEntity
		if err := tx.Get(key, &existing); err != nil {
			return translate(err, domain.ErrTaskNotFound)
		}
		task.CreatedAt = existing.CreatedAt
		task.UpdatedAt = time.Now().UTC()
		_, err := tx.Put(key, toTaskEntity(task))
		return err
	})
	return err
}

func (r *taskRepository) Delete(ctx context.Context, userID, id string) error {
	key := taskKey(userID, id)
	_, err := r.client.RunInTransaction(ctx, func(tx *gcds.Transaction) error {
		var existing taskEntity
		if err := tx.Get(key, &existing); err != nil {
			return translate(err, domain.ErrTaskNotFound)
		}
		return tx.Delete(key)
	})
	return err
}

func translate(err error, notFound error) error {
	if errors.Is(err, gcds.ErrNoSuchEntity) {
		return notFound
	}
	return err
}
