package task

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/tasksync/domain"
	"github.com/fastygo/tasksync/repository"
)

var errFeedUnavailable = domain.NewError(domain.ErrCodeInternal, "live updates are unavailable")

// Event carries either a snapshot or the error that prevented loading one.
type Event struct {
	Snapshot *domain.TaskSnapshot
	Err      error
}

// Subscribe streams the user's full task list: once immediately, then
// again after every change. The channel closes when ctx is done or the
// feed ends.
func (uc *UseCase) Subscribe(ctx context.Context, userID string) (<-chan Event, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if uc.feed == nil {
		return nil, errFeedUnavailable
	}

	changes, err := uc.feed.Subscribe(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make(chan Event, 1)
	go func() {
		defer close(out)
		if !uc.emit(ctx, out, userID, nil) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case change, ok := <-changes:
				if !ok {
					return
				}
				if !uc.emit(ctx, out, userID, &change) {
					return
				}
			}
		}
	}()
	return out, nil
}

func (uc *UseCase) emit(ctx context.Context, out chan<- Event, userID string, cause *domain.TaskChange) bool {
	tasks, err := uc.snapshot(ctx, userID, cause)
	event := Event{Err: err}
	if err == nil {
		event.Snapshot = &domain.TaskSnapshot{
			UserID: userID,
			Tasks:  tasks,
			Cause:  cause,
			At:     time.Now().UTC(),
		}
	} else {
		uc.logger.Warn("failed to load task snapshot", zap.String("user_id", userID), zap.Error(err))
	}

	select {
	case out <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

// snapshot collapses concurrent reloads for the same user and change into
// one query. Reloads for different changes never share a result, so a
// load started before a write cannot answer for it. The shared slice is
// read-only for every caller.
func (uc *UseCase) snapshot(ctx context.Context, userID string, cause *domain.TaskChange) ([]domain.Task, error) {
	key := userID
	if cause != nil {
		key += "@" + strconv.FormatInt(cause.At.UnixNano(), 10) + "/" + cause.TaskID
	}
	ch := uc.reloads.DoChan(key, func() (interface{}, error) {
		return uc.tasks.List(context.WithoutCancel(ctx), repository.TaskFilter{
			UserID: userID,
			Limit:  repository.MaxListLimit,
		})
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.Task), nil
	}
}
