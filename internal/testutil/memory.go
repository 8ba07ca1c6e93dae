// Package testutil provides in-memory implementations of the repository
// ports for tests that do not need a real store.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/tasksync/domain"
	"github.com/fastygo/tasksync/repository"
)

// Users is an in-memory UserRepository.
type Users struct {
	mu   sync.Mutex
	byID map[string]domain.User
	// Fail makes every write return the given error.
	Fail error
}

func NewUsers() *Users {
	return &Users{byID: make(map[string]domain.User)}
}

func (r *Users) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &user, nil
}

func (r *Users) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.byID {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *Users) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}
	for _, existing := range r.byID {
		if existing.Email == user.Email {
			return domain.ErrEmailTaken
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	r.byID[user.ID] = *user
	return nil
}

func (r *Users) Upsert(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}
	for id, existing := range r.byID {
		if id != user.ID && existing.Email == user.Email {
			return domain.ErrEmailTaken
		}
	}
	if existing, ok := r.byID[user.ID]; ok && user.PasswordHash == "" {
		user.PasswordHash = existing.PasswordHash
	}
	r.byID[user.ID] = *user
	return nil
}

func (r *Users) Touch(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}
	user, ok := r.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.UpdatedAt = time.Now().UTC()
	r.byID[id] = user
	return nil
}

// Put stores a user directly, bypassing uniqueness checks.
func (r *Users) Put(user domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[user.ID] = user
}

// Tasks is an in-memory TaskRepository. Setting Fail makes writes fail
// while reads keep working, which is how an unreachable primary behaves
// for the buffer tests.
type Tasks struct {
	mu    sync.Mutex
	items map[string]domain.Task
	Fail  error
	lists int
	gate  chan struct{}
}

func NewTasks() *Tasks {
	return &Tasks{items: make(map[string]domain.Task)}
}

func (r *Tasks) GetByID(_ context.Context, userID, id string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.items[id]
	if !ok || task.UserID != userID {
		return nil, domain.ErrTaskNotFound
	}
	task.Tags = append([]string(nil), task.Tags...)
	task.Normalize()
	return &task, nil
}

// ListCalls returns how many times List ran.
func (r *Tasks) ListCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lists
}

// HoldLists makes List block until the returned release is called.
func (r *Tasks) HoldLists() (release func()) {
	gate := make(chan struct{})
	r.mu.Lock()
	r.gate = gate
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.gate = nil
			r.mu.Unlock()
			close(gate)
		})
	}
}

// SetFail switches write failures on or off while requests are in flight.
func (r *Tasks) SetFail(err error) {
	r.mu.Lock()
	r.Fail = err
	r.mu.Unlock()
}

func (r *Tasks) List(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	r.mu.Lock()
	r.lists++
	gate := r.gate
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tasks := make([]domain.Task, 0)
	for _, task := range r.items {
		if task.UserID != filter.UserID {
			continue
		}
		if filter.Completed != nil && task.Completed != *filter.Completed {
			continue
		}
		if filter.Category != "" && task.Category != filter.Category {
			continue
		}
		task.Normalize()
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})

	if filter.Offset >= len(tasks) {
		return []domain.Task{}, nil
	}
	tasks = tasks[filter.Offset:]
	if limit := repository.ClampLimit(filter.Limit); len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

func (r *Tasks) Create(_ context.Context, task *domain.Task) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return nil, r.Fail
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	if _, exists := r.items[task.ID]; !exists {
		r.items[task.ID] = *task
	}
	return task, nil
}

func (r *Tasks) Update(_ context.Context, task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}
	existing, ok := r.items[task.ID]
	if !ok || existing.UserID != task.UserID {
		return domain.ErrTaskNotFound
	}
	task.CreatedAt = existing.CreatedAt
	r.items[task.ID] = *task
	return nil
}

func (r *Tasks) Delete(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}
	existing, ok := r.items[id]
	if !ok || existing.UserID != userID {
		return domain.ErrTaskNotFound
	}
	delete(r.items, id)
	return nil
}

// Len returns the number of stored tasks.
func (r *Tasks) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Sessions is an in-memory SessionRepository.
type Sessions struct {
	mu    sync.Mutex
	items map[string]domain.Session
}

func NewSessions() *Sessions {
	return &Sessions{items: make(map[string]domain.Session)}
}

func (r *Sessions) Get(_ context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.items[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (r *Sessions) Save(_ context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" {
		return domain.ErrInvalidPayload
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[session.ID] = *session
	return nil
}

func (r *Sessions) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *Sessions) Extend(_ context.Context, id string, ttlSeconds int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.items[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.ExpiresAt = time.Now().Add(time.Duration(ttlSeconds) * time.Second)
	r.items[id] = session
	return nil
}

func (r *Sessions) DeleteAllForUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, session := range r.items {
		if session.UserID == userID {
			delete(r.items, id)
		}
	}
	return nil
}

// Len returns the number of live sessions.
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Feed is an in-process ChangeFeed.
type Feed struct {
	mu        sync.Mutex
	subs      map[string][]chan domain.TaskChange
	Published []domain.TaskChange
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[string][]chan domain.TaskChange)}
}

func (f *Feed) Publish(_ context.Context, change domain.TaskChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Published = append(f.Published, change)
	for _, ch := range f.subs[change.UserID] {
		select {
		case ch <- change:
		default:
		}
	}
	return nil
}

func (f *Feed) Subscribe(ctx context.Context, userID string) (<-chan domain.TaskChange, error) {
	ch := make(chan domain.TaskChange, 16)
	f.mu.Lock()
	f.subs[userID] = append(f.subs[userID], ch)
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		subs := f.subs[userID]
		for i, c := range subs {
			if c == ch {
				f.subs[userID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

// Changes returns a copy of every published change.
func (f *Feed) Changes() []domain.TaskChange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TaskChange(nil), f.Published...)
}

// Buffer records buffered operations.
type Buffer struct {
	mu       sync.Mutex
	Tasks    []BufferedTask
	Profiles []domain.User
	Fail     error
}

type BufferedTask struct {
	Operation string
	Task      domain.Task
}

func (b *Buffer) BufferTask(_ context.Context, operation string, task *domain.Task) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Fail != nil {
		return b.Fail
	}
	b.Tasks = append(b.Tasks, BufferedTask{Operation: operation, Task: *task})
	return nil
}

func (b *Buffer) BufferProfile(_ context.Context, _ string, user *domain.User) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Fail != nil {
		return b.Fail
	}
	b.Profiles = append(b.Profiles, *user)
	return nil
}
