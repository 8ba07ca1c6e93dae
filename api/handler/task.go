package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/tasksync/api/transport"
	"github.com/fastygo/tasksync/domain"
	"github.com/fastygo/tasksync/pkg/httpcontext"
	"github.com/fastygo/tasksync/repository"
	taskUC "github.com/fastygo/tasksync/usecase/task"
)

// SessionChecker confirms an open stream's session still exists.
type SessionChecker interface {
	ValidateSession(ctx context.Context, userID, sessionID string) (*domain.Session, error)
}

// StreamOptions configures the live task stream.
type StreamOptions struct {
	// Parent ends every open stream when cancelled, normally on shutdown.
	Parent    context.Context
	Heartbeat time.Duration
	// Sessions is consulted on every heartbeat; a revoked session ends
	// the stream. Nil skips the check.
	Sessions  SessionChecker
}

type TaskHandler struct {
	baseHandler
	uc     *taskUC.UseCase
	stream StreamOptions
}

func NewTaskHandler(uc *taskUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger, stream StreamOptions) *TaskHandler {
	if stream.Parent == nil {
		stream.Parent = context.Background()
	}
	if stream.Heartbeat <= 0 {
		stream.Heartbeat = 15 * time.Second
	}
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		stream:      stream,
	}
}

// @Summary List tasks, newest first
// @Tags tasks
// @Param completed query bool false "completion filter"
// @Param category query string false "category filter"
// @Router /api/v1/tasks [get]
func (h *TaskHandler) GetTasks(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	args := ctx.QueryArgs()
	filter := repository.TaskFilter{
		UserID:   userID,
		Category: string(args.Peek("category")),
		Limit:    repository.ClampLimit(parseInt(string(args.Peek("limit")), repository.DefaultListLimit)),
		Offset:   max(parseInt(string(args.Peek("offset")), 0), 0),
	}
	if raw := string(args.Peek("completed")); raw != "" {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			h.badRequest(ctx, "completed must be true or false")
			return
		}
		filter.Completed = &completed
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tasks, err := h.uc.ListTasks(stdCtx, filter)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondList(ctx, tasks, transport.ListMeta{Count: len(tasks), Limit: filter.Limit, Offset: filter.Offset})
}

// @Summary Get task
// @Tags tasks
// @Router /api/v1/tasks/{id} [get]
func (h *TaskHandler) GetTask(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.GetTask(stdCtx, userID, taskID(ctx))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Create task
// @Tags tasks
// @Router /api/v1/tasks [post]
func (h *TaskHandler) CreateTask(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	var req transport.TaskRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := req.Task()
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}

	created, err := h.uc.CreateTask(stdCtx, userID, task)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary Update task
// @Tags tasks
// @Router /api/v1/tasks/{id} [put]
func (h *TaskHandler) UpdateTask(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	var req transport.TaskRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	patch, err := req.Patch()
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}

	updated, err := h.uc.UpdateTask(stdCtx, userID, taskID(ctx), patch)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, updated)
}

// @Summary Flip the completion flag
// @Tags tasks
// @Router /api/v1/tasks/{id}/toggle [post]
func (h *TaskHandler) ToggleTask(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	updated, err := h.uc.ToggleTask(stdCtx, userID, taskID(ctx))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, updated)
}

// @Summary Delete task
// @Tags tasks
// @Router /api/v1/tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	id := taskID(ctx)
	if id == "" {
		h.badRequest(ctx, "missing task id")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.DeleteTask(stdCtx, userID, id); err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	ctx.SetStatusCode(http.StatusNoContent)
}

func taskID(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue("id").(string)
	return id
}

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}
