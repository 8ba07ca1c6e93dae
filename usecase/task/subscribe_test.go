package task_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/tasksync/domain"
	"github.com/fastygo/tasksync/internal/testutil"
	"github.com/fastygo/tasksync/usecase/task"
)

func nextEvent(t *testing.T, events <-chan task.Event) task.Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "event stream closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return task.Event{}
}

func TestSubscribeStreamsSnapshots(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := f.uc.CreateTask(ctx, "u1", &domain.Task{Title: "existing"})
	require.NoError(t, err)

	events, err := f.uc.Subscribe(ctx, "u1")
	require.NoError(t, err)

	initial := nextEvent(t, events)
	require.NoError(t, initial.Err)
	assert.Nil(t, initial.Snapshot.Cause)
	assert.Len(t, initial.Snapshot.Tasks, 1)

	created, err := f.uc.CreateTask(ctx, "u1", &domain.Task{Title: "new"})
	require.NoError(t, err)

	next := nextEvent(t, events)
	require.NoError(t, next.Err)
	require.NotNil(t, next.Snapshot.Cause)
	assert.Equal(t, created.ID, next.Snapshot.Cause.TaskID)
	require.Len(t, next.Snapshot.Tasks, 2)
	assert.Equal(t, created.ID, next.Snapshot.Tasks[0].ID)

	// another user's change does not reach this subscriber
	_, err = f.uc.CreateTask(ctx, "u2", &domain.Task{Title: "foreign"})
	require.NoError(t, err)
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case _, ok := <-events:
		for ok {
			_, ok = <-events
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after cancel")
	}
}

func TestSubscribersShareOneReloadPerChange(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	phone, err := f.uc.Subscribe(ctx, "u1")
	require.NoError(t, err)
	laptop, err := f.uc.Subscribe(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, nextEvent(t, phone).Err)
	require.NoError(t, nextEvent(t, laptop).Err)

	base := f.tasks.ListCalls()
	release := f.tasks.HoldLists()
	defer release()

	created, err := f.uc.CreateTask(ctx, "u1", &domain.Task{Title: "shared"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return f.tasks.ListCalls() == base+1 }, 2*time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return f.tasks.ListCalls() > base+1 }, 100*time.Millisecond, 5*time.Millisecond)
	release()

	for _, events := range []<-chan task.Event{phone, laptop} {
		ev := nextEvent(t, events)
		require.NoError(t, ev.Err)
		require.Len(t, ev.Snapshot.Tasks, 1)
		assert.Equal(t, created.ID, ev.Snapshot.Cause.TaskID)
	}
	assert.Equal(t, base+1, f.tasks.ListCalls())
}

func TestSubscribeRequiresUserAndFeed(t *testing.T) {
	f := newFixture()
	_, err := f.uc.Subscribe(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	noFeed := task.New(testutil.NewTasks(), nil, nil, nil)
	_, err = noFeed.Subscribe(context.Background(), "u1")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInternal))
}
