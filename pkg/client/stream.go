package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tmaxmax/go-sse"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/tasksync/domain"
)

const maxEventSize = 4 << 20

// StreamEvent is one message from the live task stream: either a full
// snapshot or the error the server reported while loading one.
type StreamEvent struct {
	Snapshot *domain.TaskSnapshot
	Err      error
}

// Stream opens the Server-Sent Events feed of the signed-in user. The
// channel closes when ctx is done or the server ends the stream.
func (c *Client) Stream(ctx context.Context) (<-chan StreamEvent, error) {
	req, err := c.newRequest(fasthttp.MethodGet, "/api/v1/tasks/stream", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(fasthttp.HeaderAccept, "text/event-stream")
	resp := fasthttp.AcquireResponse()

	if err := c.stream.Do(req, resp); err != nil {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
		return nil, fmt.Errorf("open task stream: %w", err)
	}
	fasthttp.ReleaseRequest(req)

	if resp.StatusCode() != fasthttp.StatusOK {
		body, _ := io.ReadAll(resp.BodyStream())
		status := resp.StatusCode()
		_ = resp.CloseBodyStream()
		fasthttp.ReleaseResponse(resp)
		return nil, decodeResponse(status, body, nil)
	}

	out := make(chan StreamEvent, 1)
	go func() {
		defer close(out)
		defer fasthttp.ReleaseResponse(resp)
		defer resp.CloseBodyStream()

		// A cancelled ctx is noticed on the next bytes the server sends,
		// at the latest with its next heartbeat.
		body := &ctxReader{ctx: ctx, r: resp.BodyStream()}
		for ev, err := range sse.Read(body, &sse.ReadConfig{MaxEventSize: maxEventSize}) {
			if err != nil {
				return
			}
			se, ok := toEvent(ev)
			if !ok {
				continue
			}
			select {
			case out <- se:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// ctxReader fails reads once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

func toEvent(ev sse.Event) (StreamEvent, bool) {
	switch ev.Type {
	case "snapshot":
		var snap domain.TaskSnapshot
		if err := json.Unmarshal([]byte(ev.Data), &snap); err != nil {
			return StreamEvent{Err: err}, true
		}
		return StreamEvent{Snapshot: &snap}, true
	case "error":
		var payload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
			return StreamEvent{Err: err}, true
		}
		return StreamEvent{Err: &APIError{Code: payload.Code, Message: payload.Message}}, true
	}
	return StreamEvent{}, false
}
