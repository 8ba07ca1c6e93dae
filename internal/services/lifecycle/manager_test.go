package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownRunsHooksInReverse(t *testing.T) {
	m := New(time.Second, nil)
	var order []string
	m.Register("store", func(context.Context) error { order = append(order, "store"); return nil })
	m.Register("http", func(context.Context) error { order = append(order, "http"); return nil })
	m.Register("ignored", nil)

	assert.Equal(t, []string{"http", "store"}, m.Names())
	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, []string{"http", "store"}, order)
}

func TestShutdownJoinsErrors(t *testing.T) {
	m := New(time.Second, nil)
	boom := errors.New("boom")
	called := false
	m.Register("redis", func(context.Context) error { called = true; return nil })
	m.Register("buffer", func(context.Context) error { return boom })

	err := m.Shutdown(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "buffer")
	assert.True(t, called)
}

func TestShutdownStopsAfterTimeout(t *testing.T) {
	m := New(10*time.Millisecond, nil)
	skipped := true
	m.Register("late", func(context.Context) error { skipped = false; return nil })
	m.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})

	err := m.Shutdown(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, skipped)
}

func TestContextFollowsParent(t *testing.T) {
	m := New(time.Second, nil)
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := m.Context(parent)
	defer stop()

	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled")
	}
}
