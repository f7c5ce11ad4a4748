package ws

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/termbridge/termbridge/internal/events"
	"github.com/termbridge/termbridge/internal/infrastructure/monitoring"
)

const (
	// sendBufferSize is the per-connection outbound queue. A client
	// that falls this far behind is disconnected rather than allowed
	// to stall the broadcast path.
	sendBufferSize = 256

	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Hub broadcasts session events to every connected WebSocket client.
// It implements events.Sink: Emit marshals the event once and fans the
// bytes out to per-connection queues, so reader loops never block on a
// slow socket. Each connection drains its queue from a single writer
// goroutine, which keeps per-session event order intact on the wire.
type Hub struct {
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger, metrics *monitoring.Metrics) *Hub {
	return &Hub{
		logger:  logger.Named("ws"),
		metrics: metrics,
		clients: make(map[string]*client),
	}
}

// Emit broadcasts one session event to all connected clients.
func (h *Hub) Emit(ev events.Event) {
	payload, err := sonic.Marshal(ev)
	if err != nil {
		h.logger.Error("event marshal failed", zap.Error(err))
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.enqueue(payload) {
			h.logger.Warn("disconnecting slow websocket client",
				zap.String("conn_id", c.id),
			)
			if h.metrics != nil {
				h.metrics.RecordEventDropped("ws")
			}
			h.drop(c)
		}
	}
	if h.metrics != nil {
		h.metrics.RecordWSMessage("out", string(ev.Type))
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll disconnects every client; used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// add registers a connection and starts its writer.
func (h *Hub) add(conn *websocket.Conn) *client {
	c := &client{
		id:   "conn_" + uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
	}
	h.logger.Info("websocket client connected", zap.String("conn_id", c.id))

	go c.writePump()
	return c
}

// drop unregisters a connection and closes it.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, present := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()

	c.close()
	if present {
		if h.metrics != nil {
			h.metrics.DecWSConnections()
		}
		h.logger.Info("websocket client disconnected", zap.String("conn_id", c.id))
	}
}

// client is one WebSocket connection. All writes to conn go through
// the send queue and the single writePump goroutine.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// enqueue queues payload for delivery, reporting false when the client
// is too far behind or already closed.
func (c *client) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// writePump drains the send queue onto the socket and keeps the
// connection alive with periodic pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}
