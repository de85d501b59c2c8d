package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"ginko-backend/graph"
	"ginko-backend/types"
)

const (
	// HeartbeatInterval keeps intermediaries from timing out idle
	// streams. Must stay under 30s.
	HeartbeatInterval = 15 * time.Second
	// MaxStreamLifetime bounds one SSE connection; clients reconnect
	// with Last-Event-ID.
	MaxStreamLifetime = 5 * time.Minute
	// errorBackoff is the minimum pause after a failed poll before the
	// stream tries again.
	errorBackoff = 5 * time.Second
)

func writeFrame(w io.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func writeEventFrame(w io.Writer, ev types.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: event\nid: %s\ndata: %s\n\n", ev.ID, data)
	return err
}

// ServeSSE pumps the poller onto an open response as server-sent
// events. The caller has already authenticated, authorized, and seeded
// the poller. Frames: connected on open, event per delivery, heartbeat
// every HeartbeatInterval, error on recoverable poll failures (stream
// stays open). Write failures are treated as client disconnects.
func ServeSSE(c *gin.Context, p *Poller) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeaderNow()

	ctx := c.Request.Context()
	lifetime := time.NewTimer(MaxStreamLifetime)
	defer lifetime.Stop()
	heartbeat := time.NewTicker(HeartbeatInterval)
	defer heartbeat.Stop()

	if err := writeFrame(c.Writer, "connected", gin.H{
		"graphId":   p.GraphID(),
		"timestamp": types.FormatTimestamp(time.Now()),
	}); err != nil {
		return
	}
	c.Writer.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case <-lifetime.C:
			return
		case <-heartbeat.C:
			if err := writeFrame(c.Writer, "heartbeat", gin.H{
				"timestamp": types.FormatTimestamp(time.Now()),
			}); err != nil {
				return
			}
			c.Writer.Flush()
			continue
		default:
		}

		events, err := p.Wait(ctx, p.quantum)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			code := types.CodeInternalError
			if graph.IsUnavailable(err) {
				code = types.CodeServiceUnavailable
			}
			if werr := writeFrame(c.Writer, "error", gin.H{
				"code":    code,
				"message": "event poll failed",
			}); werr != nil {
				return
			}
			c.Writer.Flush()
			select {
			case <-ctx.Done():
				return
			case <-lifetime.C:
				return
			case <-time.After(errorBackoff):
			}
			continue
		}

		for _, ev := range events {
			if err := writeEventFrame(c.Writer, ev); err != nil {
				return
			}
		}
		if len(events) > 0 {
			c.Writer.Flush()
		}
	}
}
