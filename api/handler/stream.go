package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/tasksync/domain"
	appLogger "github.com/fastygo/tasksync/pkg/logger"
	taskUC "github.com/fastygo/tasksync/usecase/task"
)

const (
	EventSnapshot = "snapshot"
	EventError    = "error"
)

// StreamError is the payload of an error event.
type StreamError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// @Summary Live task list as Server-Sent Events
// @Description Sends a snapshot event with the full list on connect and after every change.
// @Tags tasks
// @Produce text/event-stream
// @Router /api/v1/tasks/stream [get]
func (h *TaskHandler) Stream(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.adapter.AttachStream(h.stream.Parent, ctx)
	events, err := h.uc.Subscribe(stdCtx, userID)
	if err != nil {
		cancel()
		h.respondError(ctx, stdCtx, err)
		return
	}

	log := appLogger.WithContext(stdCtx, h.logger)
	heartbeat := h.stream.Heartbeat
	sid := sessionID(ctx)

	ctx.SetStatusCode(http.StatusOK)
	ctx.Response.Header.SetContentType("text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")
	ctx.Response.Header.Set("X-Accel-Buffering", "no")

	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		log.Info("task stream opened")
		defer log.Info("task stream closed")

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		fmt.Fprintf(w, "retry: %d\n\n", (3 * time.Second).Milliseconds())
		if w.Flush() != nil {
			return
		}

		for {
			select {
			case <-stdCtx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := writeEvent(w, ev); err != nil {
					return
				}
			case <-ticker.C:
				if err := h.checkSession(stdCtx, userID, sid); err != nil {
					log.Info("task stream session ended", zap.Error(err))
					_ = writeEvent(w, taskUC.Event{Err: err})
					return
				}
				fmt.Fprint(w, ": ping\n\n")
				if w.Flush() != nil {
					return
				}
			}
		}
	})
}

// checkSession returns an error only when the session is gone. A session
// store that cannot answer keeps the stream open.
func (h *TaskHandler) checkSession(ctx context.Context, userID, sid string) error {
	if h.stream.Sessions == nil {
		return nil
	}
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := h.stream.Sessions.ValidateSession(checkCtx, userID, sid)
	switch domain.CodeOf(err) {
	case domain.ErrCodeUnauthorized, domain.ErrCodeNotFound, domain.ErrCodeForbidden:
		return domain.WrapError(domain.ErrCodeUnauthorized, "session ended", err)
	}
	if err != nil && ctx.Err() == nil {
		h.logger.Warn("stream session check failed", zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}

func writeEvent(w *bufio.Writer, ev taskUC.Event) error {
	name := EventSnapshot
	var payload interface{} = ev.Snapshot
	if ev.Err != nil {
		name = EventError
		payload = StreamError{Code: string(domain.CodeOf(ev.Err)), Message: ev.Err.Error()}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return w.Flush()
}
