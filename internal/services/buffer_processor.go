package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/tasksync/domain"
	"github.com/fastygo/tasksync/internal/infrastructure/buffer"
	"github.com/fastygo/tasksync/repository"
)

var errNotConfigured = errors.New("buffer processor not configured")

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ProcessorConfig controls how frequently the buffer is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// BufferProcessor replays buffered writes against the primary store and
// announces replayed task mutations on the change feed.
type BufferProcessor struct {
	store    *buffer.Store
	monitor  ConnectionHealth
	userRepo repository.UserRepository
	taskRepo repository.TaskRepository
	feed     repository.ChangeFeed
	logger   *zap.Logger
	cron     *cron.Cron
	cfg      ProcessorConfig
}

func NewBufferProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	userRepo repository.UserRepository,
	taskRepo repository.TaskRepository,
	feed repository.ChangeFeed,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *BufferProcessor {
	if cfg.Interval < time.Second {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bp := &BufferProcessor{
		store:    store,
		monitor:  monitor,
		userRepo: userRepo,
		taskRepo: taskRepo,
		feed:     feed,
		logger:   logger,
		cfg:      cfg,
		cron:     cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = bp.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := bp.Drain(ctx); err != nil {
			bp.logger.Error("buffer drain failed", zap.Error(err))
		}
	})
	_, _ = bp.cron.AddFunc("@hourly", func() {
		if _, err := bp.Cleanup(); err != nil {
			bp.logger.Error("buffer cleanup failed", zap.Error(err))
		}
	})

	return bp
}

// Start launches the cron scheduler.
func (bp *BufferProcessor) Start() {
	if bp == nil || bp.cron == nil {
		return
	}
	bp.cron.Start()
	bp.logger.Info("buffer processor started", zap.Duration("interval", bp.cfg.Interval))
}

// Stop waits for a running drain to finish or ctx to expire.
func (bp *BufferProcessor) Stop(ctx context.Context) error {
	if bp == nil || bp.cron == nil {
		return nil
	}
	stopCtx := bp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	bp.logger.Info("buffer processor stopped")
	return nil
}

// Enqueue parks a write until the primary store is reachable again.
func (bp *BufferProcessor) Enqueue(_ context.Context, item buffer.Item) error {
	if bp == nil || bp.store == nil {
		return errNotConfigured
	}
	return bp.store.Enqueue(item)
}

// Drain replays one batch in order. A transient failure stops the pass so
// later writes to the same task are not applied ahead of earlier ones.
func (bp *BufferProcessor) Drain(ctx context.Context) error {
	if bp == nil || bp.store == nil {
		return nil
	}
	if bp.monitor != nil && !bp.monitor.IsOnline() {
		bp.logger.Debug("skipping buffer drain (offline)")
		return nil
	}

	items, err := bp.store.GetBatch(bp.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := bp.replay(ctx, item)
		switch {
		case err == nil:
			if err := bp.store.Remove(item); err != nil {
				bp.logger.Warn("failed to purge processed buffer item", zap.Error(err))
			}

		case isFinal(err):
			bp.logger.Warn("dropping buffer item rejected by store",
				zap.String("item_id", item.ID),
				zap.String("entity", item.Entity),
				zap.String("operation", item.Operation),
				zap.Error(err))
			_ = bp.store.Remove(item)

		case item.Retries+1 >= bp.cfg.MaxRetries:
			bp.logger.Warn("dropping buffer item (max retries reached)",
				zap.String("item_id", item.ID),
				zap.Error(err))
			_ = bp.store.Remove(item)

		default:
			bp.logger.Error("failed to process buffer item",
				zap.String("item_id", item.ID),
				zap.String("entity", item.Entity),
				zap.Error(err))
			if err := bp.store.Retry(item); err != nil {
				bp.logger.Error("failed to record buffer retry", zap.Error(err))
			}
			return nil
		}
	}
	return nil
}

// Cleanup drops items older than the retention window.
func (bp *BufferProcessor) Cleanup() (int, error) {
	if bp == nil || bp.store == nil {
		return 0, nil
	}
	removed, err := bp.store.Cleanup(time.Now().Add(-bp.cfg.Retention))
	if removed > 0 {
		bp.logger.Warn("expired buffer items removed", zap.Int("count", removed))
	}
	return removed, err
}

// Size returns the number of buffered items.
func (bp *BufferProcessor) Size() int {
	if bp == nil || bp.store == nil {
		return 0
	}
	size, err := bp.store.Size()
	if err != nil {
		return 0
	}
	return size
}

func (bp *BufferProcessor) replay(ctx context.Context, item buffer.Item) error {
	switch item.Entity {
	case buffer.EntityUser:
		var user domain.User
		if err := json.Unmarshal(item.Data, &user); err != nil {
			return domain.WrapError(domain.ErrCodeInvalid, "corrupt buffer item", err)
		}
		return bp.userRepo.Upsert(ctx, &user)

	case buffer.EntityTask:
		var task domain.Task
		if err := json.Unmarshal(item.Data, &task); err != nil {
			return domain.WrapError(domain.ErrCodeInvalid, "corrupt buffer item", err)
		}
		var kind domain.ChangeType
		switch item.Operation {
		case buffer.OperationCreate:
			if _, err := bp.taskRepo.Create(ctx, &task); err != nil {
				return err
			}
			kind = domain.ChangeCreated
		case buffer.OperationUpdate:
			if err := bp.taskRepo.Update(ctx, &task); err != nil {
				return err
			}
			kind = domain.ChangeUpdated
		case buffer.OperationDelete:
			if err := bp.taskRepo.Delete(ctx, task.UserID, task.ID); err != nil {
				return err
			}
			kind = domain.ChangeDeleted
		default:
			return domain.NewError(domain.ErrCodeInvalid, "unsupported operation "+item.Operation)
		}
		bp.announce(ctx, kind, &task)
		return nil

	default:
		return domain.NewError(domain.ErrCodeInvalid, "unsupported entity "+item.Entity)
	}
}

func (bp *BufferProcessor) announce(ctx context.Context, kind domain.ChangeType, task *domain.Task) {
	if bp.feed == nil {
		return
	}
	if err := bp.feed.Publish(ctx, domain.NewTaskChange(kind, task)); err != nil {
		bp.logger.Warn("failed to publish replayed change", zap.String("task_id", task.ID), zap.Error(err))
	}
}

func isFinal(err error) bool {
	var dErr *domain.Error
	return errors.As(err, &dErr)
}
