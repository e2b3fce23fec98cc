package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/multierr"

	"github.com/angelmondragon/tableserve-backend/pkg/logger"
	"github.com/angelmondragon/tableserve-backend/pkg/metrics"
)

// Frame is the envelope of every message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Hub tracks connected clients and their rooms. Delivery is at most once:
// nothing is queued for clients that are not connected, and a client whose
// send buffer is full is disconnected instead of blocking the sender.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	logg    *logger.Logger
	metrics *metrics.RealtimeMetrics
}

func NewHub(logg *logger.Logger, m *metrics.RealtimeMetrics) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		logg:    logg,
		metrics: m,
	}
}

// SendNotification implements notify.Notifier.
func (h *Hub) SendNotification(event string, payload any, rooms ...string) {
	if h == nil || h.clients == nil {
		if h != nil && h.logg != nil {
			h.logg.Warn(context.Background(), "realtime.hub.not_initialized")
		}
		return
	}
	msg, err := json.Marshal(outboundFrame{Event: event, Data: payload})
	if err != nil {
		h.logg.Error(context.Background(), "realtime.hub.encode_failed", err)
		return
	}

	var slow []*Client
	h.mu.RLock()
	seen := make(map[*Client]struct{})
	for _, room := range rooms {
		for c := range h.rooms[room] {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			if !c.enqueue(msg) {
				slow = append(slow, c)
				continue
			}
			h.metrics.IncSent(event)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.metrics.IncDropped()
		h.logg.Warn(h.logg.WithField(context.Background(), "subject_id", c.identity.SubjectID.String()), "realtime.hub.slow_client_dropped")
		h.unregister(c)
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.Connected()
}

// unregister removes c from every room and closes its send buffer once.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	c.closeSend()
	h.mu.Unlock()
	h.metrics.Disconnected()
}

func (h *Hub) join(c *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
	return true
}

// RoomSize reports how many clients are in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	var err error
	for _, c := range clients {
		h.unregister(c)
		if c.conn != nil {
			err = multierr.Append(err, c.conn.Close())
		}
	}
	return err
}
