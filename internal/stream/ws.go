package stream

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sujalbistaa/guestboard/internal/events"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WsMessage is the JSON text message written for each event.
type WsMessage struct {
	Type events.Kind     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Upgrader builds the websocket upgrader for origin. "*" accepts any origin.
func Upgrader(origin string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if origin == "*" {
				return true
			}
			o := r.Header.Get("Origin")
			return o == "" || o == origin
		},
	}
}

// ServeWS offers the same fan-out as ServeSSE over a websocket. The client
// is not expected to send anything; reads only detect disconnects and pongs.
func (e *Endpoint) ServeWS(upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request, setup SetupFunc) {
	select {
	case <-e.quit:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		e.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	c := e.newConn("ws")
	cleanup, err := setup(c.send)
	if err != nil {
		c.log.Error("stream setup failed", zap.Error(err))
		msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "stream setup failed")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		return
	}
	c.cleanup = cleanup

	e.track(c)
	defer e.untrack(c)
	c.state.Store(int32(Open))
	c.log.Debug("connection open", zap.String("remote", r.RemoteAddr))

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		ws.SetReadLimit(512)
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		if c.overflowed() {
			c.close()
			return
		}
		select {
		case <-c.overflow:
			c.close()
			return
		case <-gone:
			c.close()
			return
		case <-r.Context().Done():
			c.close()
			return
		case <-e.quit:
			c.close()
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case f := <-c.queue:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(WsMessage{Type: f.kind, Data: json.RawMessage(f.data)}); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				c.close()
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
