package stream

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"ginko-backend/graph"
	"ginko-backend/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients authenticate with bearer tokens, not cookies,
		// so cross-origin upgrades carry no ambient credentials.
		return true
	},
}

const wsWriteTimeout = 10 * time.Second

// Frame is one websocket message, mirroring the SSE frame vocabulary.
type Frame struct {
	Type      string       `json:"type"`
	ID        string       `json:"id,omitempty"`
	Event     *types.Event `json:"event,omitempty"`
	GraphID   string       `json:"graphId,omitempty"`
	Timestamp string       `json:"timestamp,omitempty"`
	Code      string       `json:"code,omitempty"`
	Message   string       `json:"message,omitempty"`
}

func writeWSFrame(conn *websocket.Conn, frame Frame) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(frame)
}

// ServeWS upgrades the request and pumps the poller over a websocket,
// for clients behind proxies that buffer or break SSE. The frame
// sequence matches ServeSSE; the connection shares its 5 minute
// lifetime and Last-Event-ID resume contract.
func ServeWS(c *gin.Context, p *Poller) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Stream: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Read pump: clients send nothing meaningful, but reading is how we
	// observe the close handshake.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("Stream: websocket read error: %v", err)
				}
				cancel()
				return
			}
		}
	}()

	lifetime := time.NewTimer(MaxStreamLifetime)
	defer lifetime.Stop()
	heartbeat := time.NewTicker(HeartbeatInterval)
	defer heartbeat.Stop()

	if err := writeWSFrame(conn, Frame{
		Type:      "connected",
		GraphID:   p.GraphID(),
		Timestamp: types.FormatTimestamp(time.Now()),
	}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-lifetime.C:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream lifetime reached"),
				time.Now().Add(wsWriteTimeout))
			return
		case <-heartbeat.C:
			if err := writeWSFrame(conn, Frame{
				Type:      "heartbeat",
				Timestamp: types.FormatTimestamp(time.Now()),
			}); err != nil {
				return
			}
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
			if werr := writeWSFrame(conn, Frame{Type: "error", Code: code, Message: "event poll failed"}); werr != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-lifetime.C:
				return
			case <-time.After(errorBackoff):
			}
			continue
		}

		for i := range events {
			ev := events[i]
			if err := writeWSFrame(conn, Frame{Type: "event", ID: ev.ID, Event: &ev}); err != nil {
				return
			}
		}
	}
}
