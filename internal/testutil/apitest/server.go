// Package apitest runs the full HTTP stack over an in-memory listener,
// backed by the in-memory repositories from testutil.
package apitest

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"golang.org/x/crypto/bcrypt"

	apiHandler "github.com/fastygo/tasksync/api/handler"
	"github.com/fastygo/tasksync/internal/infrastructure/monitor"
	"github.com/fastygo/tasksync/internal/middleware"
	"github.com/fastygo/tasksync/internal/router"
	"github.com/fastygo/tasksync/internal/security"
	"github.com/fastygo/tasksync/internal/testutil"
	"github.com/fastygo/tasksync/pkg/httpcontext"
	authUC "github.com/fastygo/tasksync/usecase/auth"
	profileUC "github.com/fastygo/tasksync/usecase/profile"
	taskUC "github.com/fastygo/tasksync/usecase/task"
)

type Server struct {
	Users    *testutil.Users
	Tasks    *testutil.Tasks
	Sessions *testutil.Sessions
	Feed     *testutil.Feed
	Buffer   *testutil.Buffer
	Tokens   *security.TokenManager

	ln     *fasthttputil.InmemoryListener
	server *fasthttp.Server
	cancel context.CancelFunc
}

type healthy struct{}

func (healthy) GetStatus() monitor.Status {
	return monitor.Status{Driver: "memory", Store: true, Redis: true, Buffer: true, LastCheck: time.Now()}
}

// New starts a server that is shut down when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		Users:    testutil.NewUsers(),
		Tasks:    testutil.NewTasks(),
		Sessions: testutil.NewSessions(),
		Feed:     testutil.NewFeed(),
		Buffer:   &testutil.Buffer{},
		Tokens:   security.NewTokenManager("test-secret", "tasksync-test"),
		ln:       fasthttputil.NewInmemoryListener(),
	}

	appCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	adapter := httpcontext.NewAdapter(2 * time.Second)
	auth := authUC.New(s.Users, s.Sessions, s.Tokens, authUC.Options{
		SessionTTL: time.Hour,
		BcryptCost: bcrypt.MinCost,
	}, nil)

	handlers := router.Handlers{
		Auth:    apiHandler.NewAuthHandler(auth, adapter, nil),
		Profile: apiHandler.NewProfileHandler(profileUC.New(s.Users, s.Buffer, nil), adapter, nil),
		Task: apiHandler.NewTaskHandler(taskUC.New(s.Tasks, s.Feed, s.Buffer, nil), adapter, nil, apiHandler.StreamOptions{
			Parent:    appCtx,
			Heartbeat: 50 * time.Millisecond,
			Sessions:  auth,
		}),
		Health: apiHandler.NewHealthHandler(healthy{}, adapter, nil),
	}

	r := router.New(handlers, middleware.JWTAuth(s.Tokens, auth, nil))
	s.server = &fasthttp.Server{
		Handler: middleware.Chain(r.Handler, middleware.Recover(nil), middleware.AccessLog(nil)),
	}

	go func() { _ = s.server.Serve(s.ln) }()
	t.Cleanup(s.Close)
	return s
}

// Dial connects to the in-memory listener.
func (s *Server) Dial(string) (net.Conn, error) {
	return s.ln.Dial()
}

// Client returns a fasthttp client wired to the server.
func (s *Server) Client() *fasthttp.Client {
	return &fasthttp.Client{Dial: s.Dial}
}

func (s *Server) Close() {
	s.cancel()
	_ = s.server.Shutdown()
	_ = s.ln.Close()
}
