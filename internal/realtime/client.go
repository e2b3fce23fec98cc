package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/angelmondragon/tableserve-backend/pkg/auth"
	"github.com/angelmondragon/tableserve-backend/pkg/config"
)

// Client is one authenticated websocket connection.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	identity auth.Identity
	cfg      config.RealtimeConfig
	commands *commandRouter

	send      chan []byte
	closeOnce sync.Once
	// rooms is guarded by hub.mu.
	rooms map[string]struct{}
}

func newClient(hub *Hub, conn *websocket.Conn, identity auth.Identity, cfg config.RealtimeConfig, commands *commandRouter) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		identity: identity,
		cfg:      cfg,
		commands: commands,
		send:     make(chan []byte, cfg.SendBuffer),
		rooms:    make(map[string]struct{}),
	}
}

// enqueue never blocks; false means the buffer is full.
func (c *Client) enqueue(msg []byte) (ok bool) {
	defer func() {
		// send closed by a concurrent unregister
		if recover() != nil {
			ok = true
		}
	}()
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

func (c *Client) reply(event string, data any) {
	msg, err := json.Marshal(outboundFrame{Event: event, Data: data})
	if err != nil {
		return
	}
	if !c.enqueue(msg) {
		c.hub.metrics.IncDropped()
		c.hub.unregister(c)
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.hub.logg.Warn(c.hub.logg.WithField(ctx, "error", err.Error()), "realtime.client.read_failed")
			}
			return
		}
		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
			c.reply(EventError, errorReply{Message: "malformed frame"})
			continue
		}
		c.commands.dispatch(ctx, c, frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.hub.logg.Warn(c.hub.logg.WithField(context.Background(), "error", err.Error()), "realtime.client.write_failed")
				}
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
