// Package realtime pushes transaction events to websocket subscribers
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/damon-houk/donation-transaction-service/internal/domain/entity"
	"github.com/damon-houk/donation-transaction-service/internal/infrastructure/logger"
	"github.com/gorilla/websocket"
)

const (
	defaultBufferSize   = 256
	defaultPingInterval = 30 * time.Second
	writeWait           = 5 * time.Second
)

// Hub fans transaction events out to every connected websocket client.
//
// All writes to client connections happen on the Run goroutine. Publish never blocks: when
// the broadcast buffer is full the event is dropped.
type Hub struct {
	upgrader     websocket.Upgrader
	logger       logger.Logger
	pingInterval time.Duration

	clients    map[*websocket.Conn]struct{}
	mutex      sync.RWMutex
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	closeOnce  sync.Once
}

// HubOption customises a Hub
type HubOption func(*Hub)

// WithBufferSize sets how many undelivered events are held before new ones are dropped
func WithBufferSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.broadcast = make(chan []byte, n)
		}
	}
}

// WithPingInterval sets how often idle connections are probed
func WithPingInterval(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// WithAllowedOrigins restricts the Origin header accepted on upgrade. "*" allows any.
func WithAllowedOrigins(origins []string) HubOption {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = originChecker(origins)
	}
}

// NewHub creates a hub. Run must be started before clients can connect.
func NewHub(log logger.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker([]string{"*"}),
		},
		logger:       logger.OrDefault(log).WithField("component", "realtime"),
		pingInterval: defaultPingInterval,
		clients:      make(map[*websocket.Conn]struct{}),
		broadcast:    make(chan []byte, defaultBufferSize),
		register:     make(chan *websocket.Conn),
		unregister:   make(chan *websocket.Conn),
		done:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Publish implements service.EventPublisher
func (h *Hub) Publish(event entity.TransactionEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal transaction event", map[string]interface{}{
			"type":  event.Type,
			"error": err.Error(),
		})
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("Broadcast buffer full, dropping event", map[string]interface{}{
			"type":           event.Type,
			"transaction_id": event.TransactionID,
		})
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.clients)
}

// Run delivers events until ctx is done, then closes every connection
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	defer h.shutdown()

	h.logger.Info("Realtime hub started", nil)

	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.register:
			h.mutex.Lock()
			h.clients[conn] = struct{}{}
			count := len(h.clients)
			h.mutex.Unlock()

			h.logger.Info("Websocket client connected", map[string]interface{}{
				"clients": count,
			})

		case conn := <-h.unregister:
			h.remove(conn)

		case message := <-h.broadcast:
			h.deliver(websocket.TextMessage, message)

		case <-ticker.C:
			h.deliver(websocket.PingMessage, nil)
		}
	}
}

// ServeHTTP upgrades the request and keeps reading until the client goes away.
// Incoming messages are ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Websocket read error", map[string]interface{}{
					"error": err.Error(),
				})
			}
			break
		}
	}

	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// deliver writes to every client, dropping the ones that fail
func (h *Hub) deliver(messageType int, data []byte) {
	h.mutex.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mutex.RUnlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(messageType, data); err != nil {
			h.logger.Debug("Dropping websocket client", map[string]interface{}{
				"error": err.Error(),
			})
			h.remove(conn)
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mutex.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	count := len(h.clients)
	h.mutex.Unlock()

	if ok {
		conn.Close()
		h.logger.Info("Websocket client disconnected", map[string]interface{}{
			"clients": count,
		})
	}
}

func (h *Hub) shutdown() {
	h.closeOnce.Do(func() { close(h.done) })

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for conn := range h.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		delete(h.clients, conn)
	}

	h.logger.Info("Realtime hub stopped", nil)
}

func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
