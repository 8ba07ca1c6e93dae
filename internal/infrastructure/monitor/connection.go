package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pinger is satisfied by *pgxpool.Pool and the Datastore pinger.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Sizer reports the number of buffered writes.
type Sizer interface {
	Size() (int, error)
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Options struct {
	Driver   string
	Store    Pinger
	Redis    Pinger
	Buffer   Sizer
	Interval time.Duration
}

// Monitor polls the primary store, Redis and the offline buffer in the background.
type Monitor struct {
	opts Options

	status Status
	mu     sync.RWMutex
	stopCh chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func New(opts Options, logger *zap.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		opts:   opts,
		status: Status{Driver: opts.Driver},
		stopCh: make(chan struct{}),
		logger: logger,
	}
}

// Start runs an initial check synchronously and then polls until Stop.
func (m *Monitor) Start() {
	m.Refresh(context.Background())
	go m.loop()
}

func (m *Monitor) Stop() {
	m.once.Do(func() { close(m.stopCh) })
}

// IsOnline reports whether buffered writes can be replayed.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Store
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Refresh runs every check once and stores the result.
func (m *Monitor) Refresh(ctx context.Context) Status {
	bufferOK, bufferSize := m.checkBuffer()
	status := Status{
		Driver:     m.opts.Driver,
		Store:      ping(ctx, m.opts.Store, 3*time.Second),
		Redis:      ping(ctx, m.opts.Redis, 2*time.Second),
		Buffer:     bufferOK,
		BufferSize: bufferSize,
		LastCheck:  time.Now(),
	}

	m.mu.Lock()
	previous := m.status
	m.status = status
	m.mu.Unlock()

	if !previous.LastCheck.IsZero() && previous.Store != status.Store {
		m.logger.Warn("primary store availability changed",
			zap.String("driver", status.Driver),
			zap.Bool("online", status.Store))
	}
	return status
}

func ping(ctx context.Context, p Pinger, timeout time.Duration) bool {
	if p == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Ping(ctx) == nil
}

func (m *Monitor) checkBuffer() (bool, int) {
	if m.opts.Buffer == nil {
		return false, 0
	}
	size, err := m.opts.Buffer.Size()
	if err != nil {
		m.logger.Warn("buffer size check failed", zap.Error(err))
		return false, size
	}
	return true, size
}
