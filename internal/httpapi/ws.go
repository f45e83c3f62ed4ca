package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/realtime"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
)

// wsConn adapts a websocket connection to the hub's Conn interface.
type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Send(ctx context.Context, ev realtime.Event) error {
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, w.c, ev)
}

func (w *wsConn) Close(reason string) {
	_ = w.c.Close(websocket.StatusNormalClosure, reason)
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type threadFrame struct {
	ThreadID string `json:"thread_id"`
	Typing   bool   `json:"typing"`
}

// handleWS upgrades an authenticated request and registers the connection
// with the hub. The credential check happens before the upgrade; an
// unauthenticated request never becomes a socket.
func (a *API) handleWS(w http.ResponseWriter, r *http.Request) {
	principalID, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	ac, err := a.resolver.Resolve(r.Context(), principalID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "authorization unavailable")
		return
	}

	opts := &websocket.AcceptOptions{}
	if origins := wsOriginPatterns(os.Getenv("PEOPLEDESK_WS_ORIGINS")); len(origins) > 0 {
		opts.OriginPatterns = origins
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	wc := &wsConn{c: conn}
	a.hub.Register(principalID, wc, ac)
	defer a.hub.Unregister(wc)

	_ = wc.Send(ctx, realtime.Event{Event: realtime.EventConnected, Data: map[string]string{
		"user_id": principalID,
	}})

	// Liveness probe. A failed ping stops probing; it is the read loop's
	// error, not the probe, that tears the connection down.
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pingCtx, cancelPing := context.WithTimeout(ctx, wsWriteTimeout)
				err := conn.Ping(pingCtx)
				cancelPing()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			wc.Close("closed")
			return
		}
		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil || strings.TrimSpace(frame.Event) == "" {
			_ = wc.Send(ctx, realtime.Event{Event: realtime.EventError, Data: map[string]string{
				"message": "malformed event",
			}})
			continue
		}
		a.dispatchInbound(ctx, wc, ac, principalID, frame)
	}
}

// dispatchInbound handles one client frame. Subscriptions are hints: access
// to thread content is always re-checked on the chat write path, never
// granted by a subscribe frame.
func (a *API) dispatchInbound(ctx context.Context, wc *wsConn, ac auth.Context, principalID string, frame inboundFrame) {
	switch frame.Event {
	case "ping":
		_ = wc.Send(ctx, realtime.Event{Event: realtime.EventPong})
	case "subscribe:notifications":
		_ = wc.Send(ctx, realtime.Event{Event: realtime.EventSubscribed, Data: map[string]string{
			"channel": "notifications",
		}})
	case "subscribe:chat:thread":
		var tf threadFrame
		_ = json.Unmarshal(frame.Data, &tf)
		_ = wc.Send(ctx, realtime.Event{Event: realtime.EventSubscribed, Data: map[string]string{
			"channel":   "chat:thread",
			"thread_id": tf.ThreadID,
		}})
	case "chat:typing":
		var tf threadFrame
		if err := json.Unmarshal(frame.Data, &tf); err != nil || tf.ThreadID == "" {
			_ = wc.Send(ctx, realtime.Event{Event: realtime.EventError, Data: map[string]string{
				"message": "thread_id is required",
			}})
			return
		}
		// Relay goes through the chat service so the access policy applies.
		_ = a.chats.Typing(ctx, ac, principalID, tf.ThreadID, tf.Typing)
		_ = wc.Send(ctx, realtime.Event{Event: realtime.EventTypingAck, Data: map[string]string{
			"thread_id": tf.ThreadID,
		}})
	default:
		_ = wc.Send(ctx, realtime.Event{Event: realtime.EventError, Data: map[string]string{
			"message": "unknown event",
		}})
	}
}

func wsOriginPatterns(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
