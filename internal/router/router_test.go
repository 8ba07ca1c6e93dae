package router_test

import (
	"bufio"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/tasksync/domain"
	"github.com/fastygo/tasksync/internal/testutil/apitest"
	authUC "github.com/fastygo/tasksync/usecase/auth"
)

type envelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

type api struct {
	t      *testing.T
	client *fasthttp.Client
	token  string
}

func (a *api) call(method, path string, body interface{}) (int, envelope) {
	a.t.Helper()
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI("http://tasksync.test" + path)
	req.Header.SetMethod(method)
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		req.Header.SetContentType("application/json")
		req.SetBody(raw)
	}
	require.NoError(a.t, a.client.DoTimeout(req, resp, 2*time.Second))

	var env envelope
	if len(resp.Body()) > 0 {
		require.NoError(a.t, json.Unmarshal(resp.Body(), &env), string(resp.Body()))
	}
	return resp.StatusCode(), env
}

func (a *api) register(email string) authUC.Result {
	a.t.Helper()
	status, env := a.call(fasthttp.MethodPost, "/api/v1/auth/register", map[string]string{
		"email": email, "password": "secret1",
	})
	require.Equal(a.t, fasthttp.StatusCreated, status, env.Error)
	var res authUC.Result
	require.NoError(a.t, json.Unmarshal(env.Data, &res))
	a.token = res.Token
	return res
}

func TestHealth(t *testing.T) {
	srv := apitest.New(t)
	a := &api{t: t, client: srv.Client()}

	status, env := a.call(fasthttp.MethodGet, "/health", nil)
	assert.Equal(t, fasthttp.StatusOK, status)
	assert.Equal(t, "success", env.Status)
}

func TestAuthFlow(t *testing.T) {
	srv := apitest.New(t)
	a := &api{t: t, client: srv.Client()}

	res := a.register("Ann@Example.com")
	assert.Equal(t, "ann@example.com", res.User.Email)

	status, env := a.call(fasthttp.MethodPost, "/api/v1/auth/register", map[string]string{"email": "ann@example.com", "password": "secret1"})
	assert.Equal(t, fasthttp.StatusConflict, status)
	assert.Equal(t, string(domain.ErrCodeConflict), env.Code)

	status, env = a.call(fasthttp.MethodPost, "/api/v1/auth/login", map[string]string{"email": "ann@example.com", "password": "nope-nope"})
	assert.Equal(t, fasthttp.StatusUnauthorized, status)
	assert.Equal(t, "invalid credentials", env.Error)

	status, _ = a.call(fasthttp.MethodPost, "/api/v1/auth/login", map[string]string{"email": "bad", "password": "secret1"})
	assert.Equal(t, fasthttp.StatusBadRequest, status)

	status, env = a.call(fasthttp.MethodPost, "/api/v1/auth/refresh", map[string]int{"ttl_seconds": 7200})
	require.Equal(t, fasthttp.StatusOK, status, env.Error)

	status, env = a.call(fasthttp.MethodGet, "/api/v1/profile", nil)
	require.Equal(t, fasthttp.StatusOK, status)
	var user domain.User
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, res.User.ID, user.ID)

	status, _ = a.call(fasthttp.MethodPost, "/api/v1/auth/logout", nil)
	assert.Equal(t, fasthttp.StatusNoContent, status)

	// the token outlives the session but is no longer accepted
	status, _ = a.call(fasthttp.MethodGet, "/api/v1/profile", nil)
	assert.Equal(t, fasthttp.StatusUnauthorized, status)
}

func TestLogoutAll(t *testing.T) {
	srv := apitest.New(t)
	a := &api{t: t, client: srv.Client()}
	a.register("bea@example.com")
	first := a.token

	status, env := a.call(fasthttp.MethodPost, "/api/v1/auth/login", map[string]string{"email": "bea@example.com", "password": "secret1"})
	require.Equal(t, fasthttp.StatusOK, status)
	var res authUC.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))

	status, _ = a.call(fasthttp.MethodPost, "/api/v1/auth/logout?all=true", nil)
	assert.Equal(t, fasthttp.StatusNoContent, status)
	assert.Zero(t, srv.Sessions.Len())

	a.token = first
	status, _ = a.call(fasthttp.MethodGet, "/api/v1/tasks", nil)
	assert.Equal(t, fasthttp.StatusUnauthorized, status)
}

func TestTaskCRUD(t *testing.T) {
	srv := apitest.New(t)
	a := &api{t: t, client: srv.Client()}
	a.register("cid@example.com")

	status, env := a.call(fasthttp.MethodPost, "/api/v1/tasks", map[string]interface{}{
		"title":    "Ship release",
		"priority": "high",
		"due_date": "2026-11-01T09:00:00Z",
	})
	require.Equal(t, fasthttp.StatusCreated, status, env.Error)
	var created domain.Task
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, []string{domain.TagWork}, created.Tags)
	assert.Equal(t, domain.CategoryToday, created.Category)

	status, env = a.call(fasthttp.MethodPost, "/api/v1/tasks", map[string]interface{}{"title": "  "})
	assert.Equal(t, fasthttp.StatusBadRequest, status)
	assert.Equal(t, "task title is required", env.Error)

	status, env = a.call(fasthttp.MethodPut, "/api/v1/tasks/"+created.ID, map[string]interface{}{
		"title":    "Ship release 1.2",
		"due_date": "2026-11-02T09:00:00Z",
	})
	require.Equal(t, fasthttp.StatusOK, status, env.Error)
	var updated domain.Task
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "Ship release 1.2", updated.Title)
	require.NotNil(t, updated.DueDate)
	assert.Equal(t, 2, updated.DueDate.Day())

	status, env = a.call(fasthttp.MethodPost, "/api/v1/tasks/"+created.ID+"/toggle", nil)
	require.Equal(t, fasthttp.StatusOK, status)
	var toggled domain.Task
	require.NoError(t, json.Unmarshal(env.Data, &toggled))
	assert.True(t, toggled.Completed)

	status, env = a.call(fasthttp.MethodGet, "/api/v1/tasks?completed=true", nil)
	require.Equal(t, fasthttp.StatusOK, status)
	var tasks []domain.Task
	require.NoError(t, json.Unmarshal(env.Data, &tasks))
	require.Len(t, tasks, 1)

	status, env = a.call(fasthttp.MethodGet, "/api/v1/tasks?completed=false", nil)
	require.Equal(t, fasthttp.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &tasks))
	assert.Empty(t, tasks)

	status, _ = a.call(fasthttp.MethodGet, "/api/v1/tasks?completed=maybe", nil)
	assert.Equal(t, fasthttp.StatusBadRequest, status)

	status, _ = a.call(fasthttp.MethodDelete, "/api/v1/tasks/"+created.ID, nil)
	assert.Equal(t, fasthttp.StatusNoContent, status)

	status, env = a.call(fasthttp.MethodGet, "/api/v1/tasks/"+created.ID, nil)
	assert.Equal(t, fasthttp.StatusNotFound, status)
	assert.Equal(t, string(domain.ErrCodeNotFound), env.Code)
}

func TestTasksAreIsolatedPerUser(t *testing.T) {
	srv := apitest.New(t)
	owner := &api{t: t, client: srv.Client()}
	owner.register("own@example.com")
	other := &api{t: t, client: srv.Client()}
	other.register("other@example.com")

	status, env := owner.call(fasthttp.MethodPost, "/api/v1/tasks", map[string]string{"title": "private"})
	require.Equal(t, fasthttp.StatusCreated, status)
	var created domain.Task
	require.NoError(t, json.Unmarshal(env.Data, &created))

	status, _ = other.call(fasthttp.MethodGet, "/api/v1/tasks/"+created.ID, nil)
	assert.Equal(t, fasthttp.StatusNotFound, status)
	status, _ = other.call(fasthttp.MethodDelete, "/api/v1/tasks/"+created.ID, nil)
	assert.Equal(t, fasthttp.StatusNotFound, status)
}

func TestUnauthenticated(t *testing.T) {
	srv := apitest.New(t)
	a := &api{t: t, client: srv.Client()}

	for _, path := range []string{"/api/v1/tasks", "/api/v1/profile", "/api/v1/tasks/stream"} {
		status, env := a.call(fasthttp.MethodGet, path, nil)
		assert.Equal(t, fasthttp.StatusUnauthorized, status, path)
		assert.Equal(t, string(domain.ErrCodeUnauthorized), env.Code, path)
	}
}

type sseEvent struct {
	name string
	data string
}

// openStream connects to the task stream. The response is left open; the
// server closes it on cleanup.
func openStream(t *testing.T, srv *apitest.Server, token string) <-chan sseEvent {
	t.Helper()
	streamClient := &fasthttp.Client{Dial: srv.Dial, StreamResponseBody: true}
	req := &fasthttp.Request{}
	resp := &fasthttp.Response{}

	req.SetRequestURI("http://tasksync.test/api/v1/tasks/stream")
	req.Header.Set("Authorization", "Bearer "+token)
	require.NoError(t, streamClient.Do(req, resp))
	require.Equal(t, fasthttp.StatusOK, resp.StatusCode())
	assert.Equal(t, "text/event-stream", string(resp.Header.ContentType()))

	events := make(chan sseEvent, 8)
	go func() {
		defer close(events)
		reader := bufio.NewReader(resp.BodyStream())
		var name string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				events <- sseEvent{name: name, data: strings.TrimPrefix(line, "data: ")}
			}
		}
	}()
	return events
}

func TestStream(t *testing.T) {
	srv := apitest.New(t)
	a := &api{t: t, client: srv.Client()}
	a.register("dee@example.com")
	events := openStream(t, srv, a.token)

	next := func() domain.TaskSnapshot {
		t.Helper()
		select {
		case ev, ok := <-events:
			require.True(t, ok)
			require.Equal(t, "snapshot", ev.name)
			var snap domain.TaskSnapshot
			require.NoError(t, json.Unmarshal([]byte(ev.data), &snap))
			return snap
		case <-time.After(2 * time.Second):
			t.Fatal("no snapshot received")
		}
		return domain.TaskSnapshot{}
	}

	initial := next()
	assert.Empty(t, initial.Tasks)

	status, _ := a.call(fasthttp.MethodPost, "/api/v1/tasks", map[string]string{"title": "live"})
	require.Equal(t, fasthttp.StatusCreated, status)

	snap := next()
	require.Len(t, snap.Tasks, 1)
	assert.Equal(t, "live", snap.Tasks[0].Title)
	require.NotNil(t, snap.Cause)
	assert.Equal(t, domain.ChangeCreated, snap.Cause.Type)
}

func TestStreamEndsAfterLogout(t *testing.T) {
	srv := apitest.New(t)
	a := &api{t: t, client: srv.Client()}
	a.register("eli@example.com")
	events := openStream(t, srv, a.token)

	select {
	case ev := <-events:
		require.Equal(t, "snapshot", ev.name)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial snapshot")
	}

	status, _ := a.call(fasthttp.MethodPost, "/api/v1/auth/logout?all=true", nil)
	require.Equal(t, fasthttp.StatusNoContent, status)

	// signing in again and writing must not reach the revoked stream
	a.token = ""
	status, env := a.call(fasthttp.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "eli@example.com", "password": "secret1",
	})
	require.Equal(t, fasthttp.StatusOK, status, env.Error)
	var res authUC.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	a.token = res.Token

	var sawSessionEnd bool
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				assert.True(t, sawSessionEnd, "stream closed without an error event")
				return
			}
			if ev.name == "error" {
				assert.Contains(t, ev.data, string(domain.ErrCodeUnauthorized))
				sawSessionEnd = true
				status, _ := a.call(fasthttp.MethodPost, "/api/v1/tasks", map[string]string{"title": "private"})
				require.Equal(t, fasthttp.StatusCreated, status)
				continue
			}
			if sawSessionEnd {
				t.Fatalf("event after session end: %s %s", ev.name, ev.data)
			}
		case <-deadline:
			t.Fatal("revoked stream stayed open")
		}
	}
}
