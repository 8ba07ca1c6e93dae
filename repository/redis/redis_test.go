package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/tasksync/domain"
	redisRepo "github.com/fastygo/tasksync/repository/redis"
)

func newClient(t *testing.T) (*redislib.Client, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestSessionRepositoryLifecycle(t *testing.T) {
	client, srv := newClient(t)
	repo := redisRepo.NewSessionRepository(client, time.Hour)
	ctx := context.Background()

	session := &domain.Session{ID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(30 * time.Minute)}
	require.NoError(t, repo.Save(ctx, session))

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.True(t, srv.TTL("session:s1") > 0)

	members, err := srv.Members("user_sessions:u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, members)

	require.NoError(t, repo.Extend(ctx, "s1", 7200))
	assert.InDelta(t, (2 * time.Hour).Seconds(), srv.TTL("session:s1").Seconds(), 1)

	require.NoError(t, repo.Delete(ctx, "s1"))
	_, err = repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.NoError(t, repo.Delete(ctx, "s1"), "deleting twice is a no-op")
}

func TestSessionRepositoryDeleteAllForUser(t *testing.T) {
	client, _ := newClient(t)
	repo := redisRepo.NewSessionRepository(client, time.Hour)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		require.NoError(t, repo.Save(ctx, &domain.Session{ID: id, UserID: "u1"}))
	}
	require.NoError(t, repo.Save(ctx, &domain.Session{ID: "c", UserID: "u2"}))

	require.NoError(t, repo.DeleteAllForUser(ctx, "u1"))

	for _, id := range []string{"a", "b"} {
		_, err := repo.Get(ctx, id)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	}
	_, err := repo.Get(ctx, "c")
	assert.NoError(t, err)
}

func TestSessionIndexExpiresWithLongestSession(t *testing.T) {
	client, srv := newClient(t)
	repo := redisRepo.NewSessionRepository(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &domain.Session{ID: "long", UserID: "u1", ExpiresAt: time.Now().Add(3 * time.Hour)}))
	assert.InDelta(t, (3 * time.Hour).Seconds(), srv.TTL("user_sessions:u1").Seconds(), 2)

	// a shorter session does not shorten the index
	require.NoError(t, repo.Save(ctx, &domain.Session{ID: "short", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}))
	assert.InDelta(t, (3 * time.Hour).Seconds(), srv.TTL("user_sessions:u1").Seconds(), 2)

	require.NoError(t, repo.Extend(ctx, "short", 5*3600))
	assert.InDelta(t, (5 * time.Hour).Seconds(), srv.TTL("user_sessions:u1").Seconds(), 2)

	srv.FastForward(6 * time.Hour)
	assert.False(t, srv.Exists("user_sessions:u1"))
}

// logoutBeforeSet deletes key right before any SET reaches the server,
// as a logout racing between a read and a write would.
type logoutBeforeSet struct {
	srv *miniredis.Miniredis
	key string
}

func (h logoutBeforeSet) DialHook(next redislib.DialHook) redislib.DialHook { return next }

func (h logoutBeforeSet) ProcessHook(next redislib.ProcessHook) redislib.ProcessHook {
	return func(ctx context.Context, cmd redislib.Cmder) error {
		if cmd.Name() == "set" {
			h.srv.Del(h.key)
		}
		return next(ctx, cmd)
	}
}

func (h logoutBeforeSet) ProcessPipelineHook(next redislib.ProcessPipelineHook) redislib.ProcessPipelineHook {
	return next
}

func TestExtendDoesNotResurrectDeletedSession(t *testing.T) {
	client, srv := newClient(t)
	repo := redisRepo.NewSessionRepository(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &domain.Session{ID: "s1", UserID: "u1"}))
	client.AddHook(logoutBeforeSet{srv: srv, key: "session:s1"})

	assert.ErrorIs(t, repo.Extend(ctx, "s1", 3600), domain.ErrSessionNotFound)
	assert.False(t, srv.Exists("session:s1"))
}

func TestSessionRepositoryRejectsEmptyID(t *testing.T) {
	client, _ := newClient(t)
	repo := redisRepo.NewSessionRepository(client, time.Hour)
	assert.ErrorIs(t, repo.Save(context.Background(), &domain.Session{}), domain.ErrInvalidPayload)
}

func TestChangeFeedDeliversOnlyOwnersChanges(t *testing.T) {
	client, _ := newClient(t)
	feed := redisRepo.NewChangeFeed(client, "tasks:", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := feed.Subscribe(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, feed.Publish(ctx, domain.TaskChange{Type: domain.ChangeCreated, UserID: "u2", TaskID: "other"}))
	require.NoError(t, feed.Publish(ctx, domain.TaskChange{Type: domain.ChangeCreated, UserID: "u1", TaskID: "t1"}))

	select {
	case change := <-changes:
		assert.Equal(t, "t1", change.TaskID)
		assert.Equal(t, domain.ChangeCreated, change.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no change delivered")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-changes
		return !open
	}, 2*time.Second, 10*time.Millisecond)
}

func TestChangeFeedValidation(t *testing.T) {
	client, _ := newClient(t)
	feed := redisRepo.NewChangeFeed(client, "", nil)

	assert.ErrorIs(t, feed.Publish(context.Background(), domain.TaskChange{}), domain.ErrInvalidPayload)
	_, err := feed.Subscribe(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
