// Package client is a Go SDK for the task service: an HTTP client, a
// local task store and an action dispatcher that keeps the two in sync.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/fastygo/tasksync/api/transport"
	"github.com/fastygo/tasksync/domain"
)

// APIError is a non-2xx answer from the service. Its Error method returns
// the server message unchanged.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// Session is what login and registration return.
type Session struct {
	User      domain.User `json:"user"`
	Token     string      `json:"token"`
	SessionID string      `json:"-"`
	ExpiresAt time.Time   `json:"-"`
}

type Options struct {
	BaseURL string
	Timeout time.Duration
	// Dial overrides how connections are made, mainly for tests.
	Dial fasthttp.DialFunc
}

// Client talks to the HTTP API. It is safe for concurrent use.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *fasthttp.Client
	stream  *fasthttp.Client

	mu    sync.RWMutex
	token string
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	dial := opts.Dial
	if dial == nil {
		dial = func(addr string) (net.Conn, error) {
			return fasthttp.DialTimeout(addr, opts.Timeout)
		}
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		timeout: opts.Timeout,
		http:    &fasthttp.Client{Dial: dial},
		stream:  &fasthttp.Client{Dial: dial, StreamResponseBody: true},
	}
}

// Token returns the bearer token held by the client.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the bearer token, e.g. one restored from storage.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

type authResult struct {
	User    domain.User    `json:"user"`
	Session domain.Session `json:"session"`
	Token   string         `json:"token"`
}

func (c *Client) Register(ctx context.Context, email, password string) (*Session, error) {
	return c.authenticate(ctx, "/api/v1/auth/register", email, password)
}

func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	return c.authenticate(ctx, "/api/v1/auth/login", email, password)
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) (*Session, error) {
	var res authResult
	body := transport.CredentialsRequest{Email: strings.TrimSpace(email), Password: password}
	if err := c.do(ctx, fasthttp.MethodPost, path, body, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	return toSession(res), nil
}

// Refresh extends the current session; ttl <= 0 uses the server default.
func (c *Client) Refresh(ctx context.Context, ttl time.Duration) (*Session, error) {
	var res authResult
	if err := c.do(ctx, fasthttp.MethodPost, "/api/v1/auth/refresh", transport.RefreshRequest{TTL: int(ttl.Seconds())}, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	return toSession(res), nil
}

// Logout ends the current session, or every session when all is set.
// The local token is dropped even if the call fails.
func (c *Client) Logout(ctx context.Context, all bool) error {
	path := "/api/v1/auth/logout"
	if all {
		path += "?all=true"
	}
	err := c.do(ctx, fasthttp.MethodPost, path, nil, nil)
	c.SetToken("")
	return err
}

func (c *Client) Profile(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, fasthttp.MethodGet, "/api/v1/profile", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) UpdateProfile(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, fasthttp.MethodPut, "/api/v1/profile", transport.ProfileUpdateRequest{Email: email}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListOptions filters ListTasks. Zero values mean no filter.
type ListOptions struct {
	Completed *bool
	Category  string
	Limit     int
	Offset    int
}

func (o ListOptions) query() string {
	q := url.Values{}
	if o.Completed != nil {
		q.Set("completed", strconv.FormatBool(*o.Completed))
	}
	if o.Category != "" {
		q.Set("category", o.Category)
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		q.Set("offset", strconv.Itoa(o.Offset))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func (c *Client) ListTasks(ctx context.Context, opts ListOptions) ([]domain.Task, error) {
	tasks := make([]domain.Task, 0)
	if err := c.do(ctx, fasthttp.MethodGet, "/api/v1/tasks"+opts.query(), nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	if err := c.do(ctx, fasthttp.MethodGet, "/api/v1/tasks/"+url.PathEscape(id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// TaskInput is the editable part of a task. Nil fields are omitted.
type TaskInput = transport.TaskRequest

func (c *Client) CreateTask(ctx context.Context, in TaskInput) (*domain.Task, error) {
	var task domain.Task
	if err := c.do(ctx, fasthttp.MethodPost, "/api/v1/tasks", in, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask sends a partial update. The due date is replaced with
// in.DueDate, so leaving it nil clears it.
func (c *Client) UpdateTask(ctx context.Context, id string, in TaskInput) (*domain.Task, error) {
	var task domain.Task
	if err := c.do(ctx, fasthttp.MethodPut, "/api/v1/tasks/"+url.PathEscape(id), in, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) ToggleTask(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	if err := c.do(ctx, fasthttp.MethodPost, "/api/v1/tasks/"+url.PathEscape(id)+"/toggle", nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, fasthttp.MethodDelete, "/api/v1/tasks/"+url.PathEscape(id), nil, nil)
}

type envelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Error  json.RawMessage `json:"error"`
}

func (c *Client) newRequest(method, path string, body interface{}) (*fasthttp.Request, error) {
	req := fasthttp.AcquireRequest()
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+token)
	}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			fasthttp.ReleaseRequest(req)
			return nil, err
		}
		req.Header.SetContentType("application/json")
		req.SetBody(raw)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	req, err := c.newRequest(method, path, body)
	if err != nil {
		return err
	}
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return decodeResponse(resp.StatusCode(), resp.Body(), out)
}

func decodeResponse(status int, body []byte, out interface{}) error {
	if status == fasthttp.StatusNoContent || len(body) == 0 {
		if status >= 300 {
			return &APIError{Status: status}
		}
		return nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &APIError{Status: status, Message: strings.TrimSpace(string(body))}
	}
	if status >= 300 || env.Status == "error" {
		apiErr := &APIError{Status: status, Code: env.Code}
		var message string
		if json.Unmarshal(env.Error, &message) == nil {
			apiErr.Message = message
		}
		return apiErr
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// IsUnauthorized reports whether err means the token or session is no longer valid.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == fasthttp.StatusUnauthorized
}

// IsQueued reports whether the server could not reach its store and kept
// the write for a later replay. Repeating the call would apply it twice.
func IsQueued(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == string(domain.ErrCodeQueued)
}

func toSession(res authResult) *Session {
	return &Session{
		User:      res.User,
		Token:     res.Token,
		SessionID: res.Session.ID,
		ExpiresAt: res.Session.ExpiresAt,
	}
}
