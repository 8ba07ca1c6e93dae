package httpcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"

	appLogger "github.com/fastygo/tasksync/pkg/logger"
)

func TestAttachPropagatesRequestID(t *testing.T) {
	var reqCtx fasthttp.RequestCtx
	reqCtx.Request.Header.Set(HeaderRequestID, "req-42")
	reqCtx.Request.Header.SetUserAgent("tasksync-test")

	ctx, cancel := NewAdapter(time.Second).Attach(&reqCtx)
	defer cancel()

	assert.Equal(t, "req-42", appLogger.RequestID(ctx))
	assert.Equal(t, "req-42", string(reqCtx.Response.Header.Peek(HeaderRequestID)))
	assert.Equal(t, "tasksync-test", Metadata(ctx)[string(KeyUserAgent)])

	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 100*time.Millisecond)
}

func TestAttachGeneratesRequestID(t *testing.T) {
	var reqCtx fasthttp.RequestCtx
	ctx, cancel := NewAdapter(0).Attach(&reqCtx)
	defer cancel()

	assert.NotEmpty(t, appLogger.RequestID(ctx))
	assert.Equal(t, appLogger.RequestID(ctx), string(reqCtx.Response.Header.Peek(HeaderRequestID)))
}

func TestAttachStreamHasNoDeadline(t *testing.T) {
	var reqCtx fasthttp.RequestCtx
	parent, stop := context.WithCancel(context.Background())

	ctx, cancel := NewAdapter(time.Second).AttachStream(parent, &reqCtx)
	defer cancel()

	_, ok := ctx.Deadline()
	assert.False(t, ok)

	stop()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("stream context not cancelled with parent")
	}
}
