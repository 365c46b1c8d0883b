package ws

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/liveview/liveview/internal/telemetry"
)

const (
	clientSendBuf = 256
	writeDeadline = 5 * time.Second
)

type client struct {
	id         string
	gateway    *Gateway
	conn       *websocket.Conn
	send       chan []byte
	done       chan struct{}
	remoteAddr string

	// owned by the gateway's lock
	subscriptions map[string]bool
}

func newClient(g *Gateway, conn *websocket.Conn, remoteAddr string) *client {
	return &client{
		id:            strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		gateway:       g,
		conn:          conn,
		send:          make(chan []byte, clientSendBuf),
		done:          make(chan struct{}),
		remoteAddr:    remoteAddr,
		subscriptions: map[string]bool{},
	}
}

// enqueue offers a frame to the client without blocking; slow clients
// drop frames rather than stall the bridge.
func (c *client) enqueue(frame []byte) {
	select {
	case c.send <- frame:
		telemetry.Metrics.WSMessagesOut.Inc()
	default:
		telemetry.Warnf("ws: dropping frame for slow client %s", c.id)
	}
}

// writePump drains the send channel onto the wire and keeps the
// connection alive with ping frames. It owns the connection lifecycle:
// on exit it unregisters the client and closes the socket.
func (c *client) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.gateway.unregister(c)
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				telemetry.Debugf("ws: write to %s: %v", c.id, err)
				return
			}
		case <-c.done:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes client frames and refreshes the liveness deadline
// on every pong. On exit it signals writePump via done.
func (c *client) readPump(pongWait time.Duration) {
	defer close(c.done)

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		telemetry.Metrics.WSMessagesIn.Inc()
		c.gateway.handleMessage(c, raw)
	}
}
