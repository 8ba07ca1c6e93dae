package repository

import (
	"context"

	"github.com/fastygo/tasksync/domain"
)

// ChangeFeed fans task mutations out to live subscribers.
type ChangeFeed interface {
	Publish(ctx context.Context, change domain.TaskChange) error
	// Subscribe delivers changes for one user until ctx is done, then closes the channel.
	Subscribe(ctx context.Context, userID string) (<-chan domain.TaskChange, error)
}
