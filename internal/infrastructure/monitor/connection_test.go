package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubSizer struct {
	size int
	err  error
}

func (s stubSizer) Size() (int, error) { return s.size, s.err }

func ok(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("down") }

func TestRefreshHealthy(t *testing.T) {
	m := New(Options{
		Driver: "postgres",
		Store:  PingFunc(ok),
		Redis:  PingFunc(ok),
		Buffer: stubSizer{size: 3},
	}, nil)

	status := m.Refresh(context.Background())
	assert.True(t, status.Healthy())
	assert.Equal(t, 3, status.BufferSize)
	assert.Equal(t, "postgres", status.Driver)
	assert.True(t, m.IsOnline())
	assert.Equal(t, status, m.GetStatus())
}

func TestRefreshDegraded(t *testing.T) {
	m := New(Options{
		Driver: "datastore",
		Store:  PingFunc(down),
		Redis:  PingFunc(ok),
		Buffer: stubSizer{err: errors.New("closed")},
	}, nil)

	status := m.Refresh(context.Background())
	assert.False(t, status.Healthy())
	assert.False(t, status.Store)
	assert.False(t, status.Buffer)
	assert.False(t, m.IsOnline())
}

func TestMissingDependenciesReportOffline(t *testing.T) {
	m := New(Options{}, nil)
	status := m.Refresh(context.Background())
	assert.False(t, status.Store)
	assert.False(t, status.Redis)
	assert.False(t, status.Buffer)
}

func TestStartStop(t *testing.T) {
	m := New(Options{Store: PingFunc(ok)}, nil)
	m.Start()
	assert.True(t, m.IsOnline())
	m.Stop()
	m.Stop()
}
