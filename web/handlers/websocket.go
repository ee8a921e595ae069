package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	"github.com/scrypster/kinstory/internal/engine"
)

// EventHub fans engine events out to WebSocket clients. Each client only
// receives events of the owner it subscribed with.
type EventHub struct {
	clients        map[subscriber]bool
	broadcast      chan engine.Event
	register       chan subscriber
	unregister     chan subscriber
	mu             sync.RWMutex
	ctx            context.Context
	cancel         context.CancelFunc
	originPatterns []string
	log            *zap.Logger
}

// subscriber allows for both real clients and test clients.
type subscriber interface {
	owner() string
	sendChannel() chan []byte
	close()
}

// Client represents a WebSocket connection.
type Client struct {
	hub     *EventHub
	conn    *websocket.Conn //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	ownerID string
	send    chan []byte
}

func (c *Client) owner() string            { return c.ownerID }
func (c *Client) sendChannel() chan []byte { return c.send }

func (c *Client) close() {
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	}
}

// NewEventHub creates a hub. originPatterns lists the cross-origin hosts
// allowed to connect; same-origin requests are always accepted.
func NewEventHub(log *zap.Logger, originPatterns ...string) *EventHub {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &EventHub{
		clients:        make(map[subscriber]bool),
		broadcast:      make(chan engine.Event, 256),
		register:       make(chan subscriber),
		unregister:     make(chan subscriber),
		ctx:            ctx,
		cancel:         cancel,
		originPatterns: originPatterns,
		log:            log,
	}
}

// Run starts the hub's message processing loop.
func (h *EventHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("websocket client connected", zap.String("owner", client.owner()), zap.Int("clients", count))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.sendChannel())
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("websocket client disconnected", zap.Int("clients", count))

		case ev := <-h.broadcast:
			data, err := json.Marshal(ev)
			if err != nil {
				h.log.Error("failed to marshal event", zap.Error(err))
				continue
			}

			// Full lock: slow clients are dropped from the map below.
			h.mu.Lock()
			for client := range h.clients {
				if client.owner() != ev.OwnerID {
					continue
				}
				send := client.sendChannel()
				select {
				case send <- data:
				default:
					close(send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// Stop gracefully shuts down the hub.
func (h *EventHub) Stop() {
	h.cancel()

	h.mu.Lock()
	for client := range h.clients {
		close(client.sendChannel())
		client.close()
	}
	h.clients = make(map[subscriber]bool)
	h.mu.Unlock()
}

// Publish implements engine.EventPublisher. Events are dropped when the
// broadcast buffer is full.
func (h *EventHub) Publish(ev engine.Event) {
	select {
	case h.broadcast <- ev:
	default:
		h.log.Warn("event buffer full, dropping event", zap.String("type", string(ev.Type)))
	}
}

// Clients returns the number of connected clients.
func (h *EventHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *EventHub) add(c subscriber) {
	select {
	case h.register <- c:
	case <-h.ctx.Done():
	}
}

func (h *EventHub) remove(c subscriber) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

// ServeHTTP handles WebSocket upgrade requests on /ws. The owner comes from
// the X-Owner-ID header or the owner_id query parameter.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{ //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:     h,
		conn:    conn,
		ownerID: strings.TrimSpace(o),
		send:    make(chan []byte, 256),
	}
	h.add(client)

	go client.writePump()
	go client.readPump()
}

// writePump sends messages to the WebSocket connection.
func (c *Client) writePump() {
	defer func() {
		c.hub.remove(c)
		c.close()
	}()

	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
		cancel()
		if err != nil {
			c.hub.log.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}

// readPump drains the connection to notice disconnects.
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.close()
	}()

	for {
		if _, _, err := c.conn.Read(c.hub.ctx); err != nil { //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
			return
		}
	}
}
