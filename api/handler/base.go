package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/tasksync/api/transport"
	"github.com/fastygo/tasksync/domain"
	"github.com/fastygo/tasksync/pkg/httpcontext"
	appLogger "github.com/fastygo/tasksync/pkg/logger"
)

type baseHandler struct {
	adapter *httpcontext.Adapter
	logger  *zap.Logger
}

func newBaseHandler(adapter *httpcontext.Adapter, logger *zap.Logger) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if adapter == nil {
		adapter = httpcontext.NewAdapter(0)
	}
	return baseHandler{adapter: adapter, logger: logger}
}

func (h baseHandler) requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	return h.adapter.Attach(ctx)
}

func (h baseHandler) respondJSON(ctx *fasthttp.RequestCtx, status int, payload transport.Envelope) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	body, _ := json.Marshal(payload)
	ctx.SetBody(body)
}

func (h baseHandler) respondSuccess(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	h.respondJSON(ctx, status, transport.NewSuccess(data, nil))
}

func (h baseHandler) respondList(ctx *fasthttp.RequestCtx, data interface{}, meta transport.ListMeta) {
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(data, meta))
}

// respondError writes the error envelope. Internal failures are logged
// with the request id; their message still reaches the caller.
func (h baseHandler) respondError(ctx *fasthttp.RequestCtx, stdCtx context.Context, err error) {
	status, code := mapError(err)
	if status >= http.StatusInternalServerError {
		log := h.logger
		if stdCtx != nil {
			log = appLogger.WithContext(stdCtx, h.logger)
		}
		log.Error("request failed", zap.String("path", string(ctx.Path())), zap.Error(err))
	}
	h.respondJSON(ctx, status, transport.NewError(code, err.Error(), nil))
}

func (h baseHandler) badRequest(ctx *fasthttp.RequestCtx, message string) {
	h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), message, nil))
}

func (h baseHandler) decode(ctx *fasthttp.RequestCtx, v interface{}) bool {
	if err := json.Unmarshal(ctx.PostBody(), v); err != nil {
		h.badRequest(ctx, "invalid payload")
		return false
	}
	return true
}

// userID returns the id set by the auth middleware, answering 401 when absent.
func (h baseHandler) userID(ctx *fasthttp.RequestCtx) string {
	userID := string(ctx.Request.Header.Peek(httpcontext.HeaderUserID))
	if userID == "" {
		h.respondJSON(ctx, http.StatusUnauthorized, transport.NewError(string(domain.ErrCodeUnauthorized), "missing user id", nil))
	}
	return userID
}

func sessionID(ctx *fasthttp.RequestCtx) string {
	return string(ctx.Request.Header.Peek(httpcontext.HeaderSessionID))
}

func mapError(err error) (int, string) {
	switch code := domain.CodeOf(err); code {
	case domain.ErrCodeUnauthorized:
		return http.StatusUnauthorized, string(code)
	case domain.ErrCodeForbidden:
		return http.StatusForbidden, string(code)
	case domain.ErrCodeInvalid:
		return http.StatusBadRequest, string(code)
	case domain.ErrCodeNotFound:
		return http.StatusNotFound, string(code)
	case domain.ErrCodeConflict:
		return http.StatusConflict, string(code)
	case domain.ErrCodeQueued:
		return http.StatusAccepted, string(code)
	default:
		return http.StatusInternalServerError, string(domain.ErrCodeInternal)
	}
}
