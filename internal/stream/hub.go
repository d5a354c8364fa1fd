// Package stream pushes bus events to browser websocket clients.
package stream

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"diskmind/internal/events"
)

const (
	sendBuffer   = 32
	pingInterval = 30 * time.Second
	readTimeout  = 90 * time.Second
	writeTimeout = 10 * time.Second
)

// Hub fans events out to every connected client. Slow clients lose
// frames rather than blocking the publisher.
type Hub struct {
	upgrader    websocket.Upgrader
	unsubscribe func()

	mu     sync.Mutex
	nextID uint64
	conns  map[uint64]*client
}

type client struct {
	id   uint64
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// NewHub subscribes a hub to bus. Origins restricts which browser origins
// may connect; an empty list accepts any.
func NewHub(bus *events.Bus, origins []string) *Hub {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}

	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
		conns: make(map[uint64]*client),
	}
	h.unsubscribe = bus.Subscribe(h.broadcast)
	return h
}

// HandleConnection upgrades the request and streams events until the
// client goes away.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.nextID++
	c := &client{
		id:   h.nextID,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	h.conns[c.id] = c
	h.mu.Unlock()

	log.Printf("[WS] Client %d connected from %s", c.id, r.RemoteAddr)

	go h.writeLoop(c)
	h.readLoop(c)

	h.mu.Lock()
	delete(h.conns, c.id)
	h.mu.Unlock()
	c.stop()

	log.Printf("[WS] Client %d disconnected", c.id)
}

// readLoop discards client frames; it exists to process control frames
// and notice disconnects.
func (h *Hub) readLoop(c *client) {
	defer c.conn.Close()

	c.conn.SetReadLimit(4 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Read error client %d: %v", c.id, err)
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.conn.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(
				websocket.PingMessage, nil,
				time.Now().Add(writeTimeout),
			); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}

func (h *Hub) broadcast(e events.Event) {
	msg, err := json.Marshal(e)
	if err != nil {
		log.Printf("[WS] Failed to encode %s event: %v", e.Type, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.conns {
		select {
		case c.send <- msg:
		default:
			log.Printf("[WS] Client %d is not keeping up, dropping %s", c.id, e.Type)
		}
	}
}

// ActiveConnections returns the number of connected clients.
func (h *Hub) ActiveConnections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close unsubscribes from the bus and terminates all connections.
func (h *Hub) Close() {
	h.unsubscribe()

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.conns {
		c.stop()
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(5*time.Second),
		)
		c.conn.Close()
		delete(h.conns, id)
	}
}
