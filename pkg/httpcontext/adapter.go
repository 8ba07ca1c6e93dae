package httpcontext

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	appLogger "github.com/fastygo/tasksync/pkg/logger"
)

// Key represents a context value key exported for reuse.
type Key string

const (
	KeyRemoteAddr Key = "remote_addr"
	KeyUserAgent  Key = "user_agent"

	HeaderRequestID = "X-Request-ID"
	HeaderUserID    = "X-User-ID"
	HeaderSessionID = "X-Session-ID"
)

// Adapter converts fasthttp.RequestCtx into a stdlib context with deadlines and metadata.
type Adapter struct {
	timeout time.Duration
}

// NewAdapter constructs a new Adapter using the provided timeout.
func NewAdapter(timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{
		timeout: timeout,
	}
}

// Attach creates a context with timeout derived from the adapter and enriches it with request metadata.
func (a *Adapter) Attach(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	stdCtx, cancel := context.WithTimeout(context.Background(), a.timeout)
	return enrich(stdCtx, ctx), cancel
}

// AttachStream derives a context without a deadline from parent, for
// long-lived responses that end when parent is cancelled or the client leaves.
func (a *Adapter) AttachStream(parent context.Context, ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	stdCtx, cancel := context.WithCancel(parent)
	return enrich(stdCtx, ctx), cancel
}

// Metadata returns the remote address and user agent captured on ctx.
func Metadata(ctx context.Context) map[string]string {
	meta := make(map[string]string, 2)
	if v, ok := ctx.Value(KeyRemoteAddr).(string); ok && v != "" {
		meta[string(KeyRemoteAddr)] = v
	}
	if v, ok := ctx.Value(KeyUserAgent).(string); ok && v != "" {
		meta[string(KeyUserAgent)] = v
	}
	return meta
}

func enrich(stdCtx context.Context, ctx *fasthttp.RequestCtx) context.Context {
	reqID := getRequestID(ctx)
	stdCtx = appLogger.ContextWithRequestID(stdCtx, reqID)
	if ctx == nil {
		return stdCtx
	}
	ctx.Response.Header.Set(HeaderRequestID, reqID)

	if userID := string(ctx.Request.Header.Peek(HeaderUserID)); userID != "" {
		stdCtx = appLogger.ContextWithUserID(stdCtx, userID)
	}
	if remoteAddr := ctx.RemoteAddr(); remoteAddr != nil {
		stdCtx = context.WithValue(stdCtx, KeyRemoteAddr, remoteAddr.String())
	}
	if ua := string(ctx.Request.Header.UserAgent()); ua != "" {
		stdCtx = context.WithValue(stdCtx, KeyUserAgent, ua)
	}
	return stdCtx
}

func getRequestID(ctx *fasthttp.RequestCtx) string {
	if ctx == nil {
		return uuid.NewString()
	}
	if header := string(ctx.Request.Header.Peek(HeaderRequestID)); strings.TrimSpace(header) != "" {
		return header
	}
	return uuid.NewString()
}
