package middleware

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/tasksync/domain"
	"github.com/fastygo/tasksync/pkg/httpcontext"
)

// Chain applies middlewares so the first one listed runs outermost.
func Chain(h fasthttp.RequestHandler, mws ...Middleware) fasthttp.RequestHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// AccessLog writes one line per request.
func AccessLog(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			next(ctx)

			status := ctx.Response.StatusCode()
			fields := []zap.Field{
				zap.String("method", string(ctx.Method())),
				zap.String("path", string(ctx.Path())),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_addr", ctx.RemoteIP().String()),
			}
			if reqID := string(ctx.Response.Header.Peek(httpcontext.HeaderRequestID)); reqID != "" {
				fields = append(fields, zap.String("request_id", reqID))
			}
			if userID := string(ctx.Request.Header.Peek(httpcontext.HeaderUserID)); userID != "" {
				fields = append(fields, zap.String("user_id", userID))
			}

			switch {
			case status >= 500:
				logger.Error("request", fields...)
			case status >= 400:
				logger.Warn("request", fields...)
			default:
				logger.Info("request", fields...)
			}
		}
	}
}

// Recover turns a handler panic into a 500 response.
func Recover(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("panic recovered",
						zap.String("path", string(ctx.Path())),
						zap.String("panic", fmt.Sprint(r)),
						zap.ByteString("stack", debug.Stack()))
					ctx.ResetBody()
					writeError(ctx, fasthttp.StatusInternalServerError, string(domain.ErrCodeInternal), "internal error")
				}
			}()
			next(ctx)
		}
	}
}
