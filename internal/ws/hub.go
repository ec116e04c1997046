// Package ws implements the Realtime Event Hub: a gorilla/websocket
// fan-out of every lifecycle event to connected dashboard clients, per
// SPEC_FULL.md §4.11. One goroutine owns the client set and the
// broadcast channel, the same owning-goroutine discipline the Job
// Store uses for its map.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fluxqueue/jobqueue/internal/logger"
	"github.com/fluxqueue/jobqueue/internal/queue"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// outboundMessage is one JSON-encoded frame queued for broadcast.
type outboundMessage struct {
	Topic     string      `json:"topic"`
	Job       interface{} `json:"job,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// client is one connected dashboard websocket, fed by its own bounded
// outbox so a slow reader can never block the Hub's broadcast loop.
type client struct {
	conn   *websocket.Conn
	outbox chan outboundMessage
}

// Hub owns the client set and fans every Event Bus notification out to
// all connected clients. Construct with New, register as a Bus listener
// via OnEvent, and serve connections with ServeWS.
type Hub struct {
	log *logger.Logger

	register   chan *client
	unregister chan *client
	broadcast  chan outboundMessage
	stop       chan struct{}
	stopped    chan struct{}

	mu          sync.Mutex
	clientCount int
	maxClients  int
	closed      bool
}

// New builds a Hub and starts its owning goroutine. maxClients caps
// concurrent dashboard connections; 0 means unbounded.
func New(maxClients int, log *logger.Logger) *Hub {
	h := &Hub{
		log:        log,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan outboundMessage, 256),
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
		maxClients: maxClients,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	clients := make(map[*client]struct{})
	defer close(h.stopped)
	for {
		select {
		case c := <-h.register:
			clients[c] = struct{}{}
		case c := <-h.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				close(c.outbox)
			}
		case msg := <-h.broadcast:
			for c := range clients {
				select {
				case c.outbox <- msg:
				default:
					// Slow client: drop it rather than block the hub,
					// mirroring the Event Bus's own drop-oldest policy.
					delete(clients, c)
					close(c.outbox)
					if h.log != nil {
						h.log.Warn("websocket client dropped: outbox full")
					}
				}
			}
		case <-h.stop:
			for c := range clients {
				delete(clients, c)
				close(c.outbox)
			}
			return
		}
	}
}

// Stop signals the Hub's owning goroutine to exit and closes every
// connected client's outbox, letting each writePump tear down its
// connection and return. Safe to call once; a second call is a no-op.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	close(h.stop)
	<-h.stopped
	return nil
}

// OnEvent implements queue.Listener, turning every lifecycle event into
// a broadcast frame.
func (h *Hub) OnEvent(ev queue.Event) {
	msg := outboundMessage{
		Topic:     string(ev.Topic),
		Job:       ev.Job,
		Data:      ev.Data,
		Timestamp: ev.Timestamp,
	}
	select {
	case h.broadcast <- msg:
	default:
		if h.log != nil {
			h.log.Warn("websocket broadcast dropped: hub saturated", "topic", ev.Topic)
		}
	}
}

// ServeWS upgrades an HTTP request to a websocket connection and
// registers it with the Hub. Connections are write-only from the
// server's perspective — clients are not expected to send anything but
// pings, and any inbound message is simply discarded.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "hub shutting down", http.StatusServiceUnavailable)
		return nil
	}
	if h.maxClients > 0 && h.clientCount >= h.maxClients {
		h.mu.Unlock()
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return nil
	}
	h.clientCount++
	h.mu.Unlock()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.mu.Lock()
		h.clientCount--
		h.mu.Unlock()
		return err
	}

	c := &client{conn: conn, outbox: make(chan outboundMessage, 32)}
	select {
	case h.register <- c:
	case <-h.stopped:
		close(c.outbox)
		conn.Close()
		h.mu.Lock()
		h.clientCount--
		h.mu.Unlock()
		return nil
	}

	go h.writePump(c)
	go h.readPump(c)
	return nil
}

// writePump drains c.outbox to the socket until it is closed.
func (h *Hub) writePump(c *client) {
	defer func() {
		c.conn.Close()
		h.mu.Lock()
		h.clientCount--
		h.mu.Unlock()
	}()
	for msg := range c.outbox {
		payload, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// readPump discards inbound frames, existing only to detect client
// disconnects (gorilla requires reads to notice a closed connection)
// and unregister the client promptly.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.stopped:
		}
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
