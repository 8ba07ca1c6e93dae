package client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/fastygo/tasksync/domain"
)

// Action names a unit of work the App can dispatch.
type Action string

const (
	ActionLogin      Action = "auth/login"
	ActionRegister   Action = "auth/register"
	ActionLogout     Action = "auth/logout"
	ActionFetchTasks Action = "tasks/fetchAll"
	ActionAddTask    Action = "tasks/add"
	ActionUpdateTask Action = "tasks/update"
	ActionToggleTask Action = "tasks/toggle"
	ActionDeleteTask Action = "tasks/delete"
)

// Handler performs an action and returns its result.
type Handler func(ctx context.Context, payload interface{}) (interface{}, error)

// Reducer applies a successful result to the store.
type Reducer func(store *Store, result interface{})

type registration struct {
	run    Handler
	reduce Reducer
}

// Dispatcher runs registered actions through a pending, fulfilled or
// rejected cycle on the store: Loading is set and Error cleared while the
// action runs, the reducer is applied on success, and the error message
// is recorded on failure.
type Dispatcher struct {
	store *Store

	mu       sync.RWMutex
	handlers map[Action]registration
}

func NewDispatcher(store *Store) *Dispatcher {
	return &Dispatcher{
		store:    store,
		handlers: make(map[Action]registration),
	}
}

// Handle registers the handler and reducer for action.
func (d *Dispatcher) Handle(action Action, run Handler, reduce Reducer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[action] = registration{run: run, reduce: reduce}
}

func (d *Dispatcher) Dispatch(ctx context.Context, action Action, payload interface{}) (interface{}, error) {
	d.mu.RLock()
	reg, ok := d.handlers[action]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("action %s not registered", action)
	}

	d.store.setPending()
	result, err := reg.run(ctx, payload)
	if err != nil {
		d.store.settle(err)
		return nil, err
	}
	if reg.reduce != nil {
		reg.reduce(d.store, result)
	}
	d.store.settle(nil)
	return result, nil
}

// Credentials is the payload of login and register.
type Credentials struct {
	Email    string
	Password string
}

// TaskUpdate is the payload of tasks/update.
type TaskUpdate struct {
	ID    string
	Input TaskInput
}

// App ties a Client, a Store and optional Prefs together.
type App struct {
	*Dispatcher
	client *Client
	prefs  *Prefs
}

func NewApp(client *Client, store *Store, prefs *Prefs) *App {
	app := &App{
		Dispatcher: NewDispatcher(store),
		client:     client,
		prefs:      prefs,
	}
	app.registerAuth()
	app.registerTasks()
	return app
}

func (a *App) Store() *Store { return a.store }

func (a *App) registerAuth() {
	signIn := func(call func(ctx context.Context, email, password string) (*Session, error)) Handler {
		return func(ctx context.Context, payload interface{}) (interface{}, error) {
			creds, ok := payload.(Credentials)
			if !ok {
				return nil, errPayload(payload)
			}
			if err := domain.ValidateCredentials(creds.Email, creds.Password); err != nil {
				return nil, err
			}
			session, err := call(ctx, creds.Email, creds.Password)
			if err != nil {
				return nil, err
			}
			if a.prefs != nil {
				if err := a.prefs.RememberUser(session.User.Email, session.User.ID); err != nil {
					return nil, err
				}
			}
			return session, nil
		}
	}
	setUser := func(store *Store, result interface{}) {
		session := result.(*Session)
		user := session.User
		store.SetUser(&user)
	}

	a.Handle(ActionLogin, signIn(a.client.Login), setUser)
	a.Handle(ActionRegister, signIn(a.client.Register), setUser)
	a.Handle(ActionLogout, func(ctx context.Context, payload interface{}) (interface{}, error) {
		all, _ := payload.(bool)
		err := a.client.Logout(ctx, all)
		if a.prefs != nil {
			if fErr := a.prefs.Forget(); fErr != nil && err == nil {
				err = fErr
			}
		}
		// the local session is gone even if the server call failed
		a.store.Clear()
		return nil, err
	}, nil)
}

func (a *App) registerTasks() {
	a.Handle(ActionFetchTasks, func(ctx context.Context, payload interface{}) (interface{}, error) {
		opts, _ := payload.(ListOptions)
		return a.client.ListTasks(ctx, opts)
	}, func(store *Store, result interface{}) {
		store.SetTasks(result.([]domain.Task))
	})

	a.Handle(ActionAddTask, func(ctx context.Context, payload interface{}) (interface{}, error) {
		in, ok := payload.(TaskInput)
		if !ok {
			return nil, errPayload(payload)
		}
		if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
			return nil, domain.NewError(domain.ErrCodeInvalid, "task title is required")
		}
		return a.client.CreateTask(ctx, in)
	}, func(store *Store, result interface{}) {
		store.AddTask(*result.(*domain.Task))
	})

	a.Handle(ActionUpdateTask, func(ctx context.Context, payload interface{}) (interface{}, error) {
		upd, ok := payload.(TaskUpdate)
		if !ok {
			return nil, errPayload(payload)
		}
		return a.client.UpdateTask(ctx, upd.ID, upd.Input)
	}, replaceTask)

	a.Handle(ActionToggleTask, func(ctx context.Context, payload interface{}) (interface{}, error) {
		id, ok := payload.(string)
		if !ok {
			return nil, errPayload(payload)
		}
		return a.client.ToggleTask(ctx, id)
	}, replaceTask)

	a.Handle(ActionDeleteTask, func(ctx context.Context, payload interface{}) (interface{}, error) {
		id, ok := payload.(string)
		if !ok {
			return nil, errPayload(payload)
		}
		if err := a.client.DeleteTask(ctx, id); err != nil {
			return nil, err
		}
		return id, nil
	}, func(store *Store, result interface{}) {
		store.RemoveTask(result.(string))
	})
}

func (a *App) Login(ctx context.Context, email, password string) (*Session, error) {
	res, err := a.Dispatch(ctx, ActionLogin, Credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return res.(*Session), nil
}

func (a *App) Register(ctx context.Context, email, password string) (*Session, error) {
	res, err := a.Dispatch(ctx, ActionRegister, Credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return res.(*Session), nil
}

func (a *App) Logout(ctx context.Context) error {
	_, err := a.Dispatch(ctx, ActionLogout, false)
	return err
}

func (a *App) FetchTasks(ctx context.Context) error {
	_, err := a.Dispatch(ctx, ActionFetchTasks, ListOptions{})
	return err
}

func (a *App) AddTask(ctx context.Context, in TaskInput) (*domain.Task, error) {
	res, err := a.Dispatch(ctx, ActionAddTask, in)
	if err != nil {
		return nil, err
	}
	return res.(*domain.Task), nil
}

func (a *App) UpdateTask(ctx context.Context, id string, in TaskInput) (*domain.Task, error) {
	res, err := a.Dispatch(ctx, ActionUpdateTask, TaskUpdate{ID: id, Input: in})
	if err != nil {
		return nil, err
	}
	return res.(*domain.Task), nil
}

func (a *App) ToggleTask(ctx context.Context, id string) (*domain.Task, error) {
	res, err := a.Dispatch(ctx, ActionToggleTask, id)
	if err != nil {
		return nil, err
	}
	return res.(*domain.Task), nil
}

func (a *App) DeleteTask(ctx context.Context, id string) error {
	_, err := a.Dispatch(ctx, ActionDeleteTask, id)
	return err
}

// Watch keeps the store's task list equal to the server's until ctx is
// done or the stream ends. Every snapshot replaces the list wholesale;
// error events are recorded on the store and the stream stays open.
func (a *App) Watch(ctx context.Context) error {
	events, err := a.client.Stream(ctx)
	if err != nil {
		a.store.settle(err)
		return err
	}
	for ev := range events {
		if ev.Err != nil {
			a.store.settle(ev.Err)
			continue
		}
		a.store.SetTasks(ev.Snapshot.Tasks)
	}
	return ctx.Err()
}

func replaceTask(store *Store, result interface{}) {
	store.ReplaceTask(*result.(*domain.Task))
}

func errPayload(payload interface{}) error {
	return domain.NewError(domain.ErrCodeInvalid, fmt.Sprintf("unexpected payload %T", payload))
}
