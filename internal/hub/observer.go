package hub

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Observer is one live websocket connection. The hub owns the observer set;
// each observer runs a read pump (liveness, client pings) and a write pump
// (outbound events, heartbeat pings).
type Observer struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger
}

type clientMessage struct {
	Type string `json:"type"`
}

// enqueue offers an encoded frame to the observer without blocking.
// A full send buffer marks the observer unresponsive.
func (o *Observer) enqueue(frame []byte) bool {
	select {
	case o.send <- frame:
		return true
	default:
		return false
	}
}

// readPump consumes client messages until the connection dies. A read
// deadline extended on every pong enforces the heartbeat contract: an
// observer that stops acknowledging is disconnected by the deadline.
func (o *Observer) readPump() {
	defer o.hub.drop(o)

	o.conn.SetReadLimit(1024)
	o.conn.SetReadDeadline(time.Now().Add(o.hub.cfg.PongTimeout))
	o.conn.SetPongHandler(func(string) error {
		return o.conn.SetReadDeadline(time.Now().Add(o.hub.cfg.PongTimeout))
	})

	for {
		_, data, err := o.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				o.logger.Debug("observer read failed", "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		if msg.Type == "ping" {
			frame, err := json.Marshal(NewEvent(EventPong, nil))
			if err != nil {
				continue
			}
			if !o.enqueue(frame) {
				return
			}
		}
	}
}

// writePump drains the send channel onto the wire and pings the client on
// the heartbeat interval. Closing the send channel terminates the pump with
// a close frame.
func (o *Observer) writePump() {
	ticker := time.NewTicker(o.hub.cfg.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		o.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-o.send:
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				o.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := o.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := o.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
