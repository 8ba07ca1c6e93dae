package redis

import (
	"context"
	"encoding/json"
	"fmt"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/tasksync/domain"
	"github.com/fastygo/tasksync/repository"
)

type changeFeed struct {
	client *redislib.Client
	prefix string
	logger *zap.Logger
}

// NewChangeFeed publishes task changes on the Pub/Sub channel "<prefix><user id>".
func NewChangeFeed(client *redislib.Client, prefix string, logger *zap.Logger) repository.ChangeFeed {
	if prefix == "" {
		prefix = "tasks:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &changeFeed{client: client, prefix: prefix, logger: logger}
}

func (f *changeFeed) Publish(ctx context.Context, change domain.TaskChange) error {
	if change.UserID == "" {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, f.channel(change.UserID), payload).Err()
}

func (f *changeFeed) Subscribe(ctx context.Context, userID string) (<-chan domain.TaskChange, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	sub := f.client.Subscribe(ctx, f.channel(userID))
	// Wait for the subscription confirmation so no publish is missed after we return.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", f.channel(userID), err)
	}

	out := make(chan domain.TaskChange, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var change domain.TaskChange
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					f.logger.Warn("dropping malformed task change", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (f *changeFeed) channel(userID string) string {
	return f.prefix + userID
}
