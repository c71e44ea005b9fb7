// Package events pushes display events to connected players over websockets
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
	"github.com/wrale/adsign/internal/adsignd/display"
	"github.com/wrale/adsign/internal/adsignd/metrics"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Per-connection outbound buffer
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Players authenticate with their connection token, not cookies
	CheckOrigin: func(r *http.Request) bool { return true },
}

// conn is a middleman between one websocket and the hub
type conn struct {
	displayID string
	ws        *websocket.Conn
	send      chan []byte
	hub       *Hub
}

// Hub tracks open player connections by display id and fans events out to
// them. It implements display.EventPublisher.
type Hub struct {
	connections map[string]map[*conn]bool
	register    chan *conn
	unregister  chan *conn
	events      chan display.Event
	counts      chan countQuery
	done        chan struct{}
	logger      *slog.Logger
}

var _ display.EventPublisher = (*Hub)(nil)

// NewHub creates a hub; Run must be started before events are delivered
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		connections: make(map[string]map[*conn]bool),
		register:    make(chan *conn),
		unregister:  make(chan *conn),
		events:      make(chan display.Event, 256),
		counts:      make(chan countQuery),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Publish queues event for the display's connections. It never blocks; a
// full queue drops the event since players also poll.
func (h *Hub) Publish(ctx context.Context, event display.Event) error {
	select {
	case h.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("event queue full, dropped %s for %s", event.Type, event.DisplayID)
	}
}

// Run serves registrations and delivers events until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, conns := range h.connections {
				for c := range conns {
					h.drop(c)
				}
			}
			return
		case c := <-h.register:
			if h.connections[c.displayID] == nil {
				h.connections[c.displayID] = make(map[*conn]bool)
			}
			h.connections[c.displayID][c] = true
			metrics.ConnectedDisplays.Inc()
			h.logger.Info("display connected",
				"displayID", c.displayID,
				"connections", len(h.connections[c.displayID]),
			)
		case c := <-h.unregister:
			if h.connections[c.displayID][c] {
				h.drop(c)
				h.logger.Info("display disconnected",
					"displayID", c.displayID,
				)
			}
		case event := <-h.events:
			h.deliver(event)
		case q := <-h.counts:
			q.result <- len(h.connections[q.displayID])
		}
	}
}

type countQuery struct {
	displayID string
	result    chan int
}

// connectionCount reports how many players are attached to displayID
func (h *Hub) connectionCount(displayID string) int {
	q := countQuery{displayID: displayID, result: make(chan int, 1)}
	select {
	case h.counts <- q:
		return <-q.result
	case <-h.done:
		return 0
	}
}

func (h *Hub) deliver(event display.Event) {
	conns := h.connections[event.DisplayID]
	if len(conns) == 0 {
		return
	}

	payload, err := json.Marshal(v1alpha1.DisplayEvent{
		TypeMeta:  v1alpha1.TypeMeta{Kind: "DisplayEvent", APIVersion: v1alpha1.APIVersion},
		Type:      v1alpha1.DisplayEventType(event.Type),
		DisplayID: event.DisplayID,
		Timestamp: event.Timestamp,
		Data:      event.Data,
	})
	if err != nil {
		h.logger.Error("failed to marshal display event",
			"error", err,
			"type", event.Type,
		)
		return
	}

	for c := range conns {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("dropping slow display connection",
				"displayID", c.displayID,
			)
			h.drop(c)
		}
	}
}

// drop must only be called from Run
func (h *Hub) drop(c *conn) {
	conns := h.connections[c.displayID]
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.connections, c.displayID)
	}
	close(c.send)
	metrics.ConnectedDisplays.Dec()
}

// Serve upgrades the request and attaches it to displayID. The caller has
// already authenticated the player.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, displayID string) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed",
			"error", err,
			"displayID", displayID,
		)
		return
	}

	c := &conn{
		displayID: displayID,
		ws:        ws,
		send:      make(chan []byte, sendBuffer),
		hub:       h,
	}

	select {
	case h.register <- c:
	case <-h.done:
		ws.Close()
		return
	case <-r.Context().Done():
		ws.Close()
		return
	}

	go c.writePump()
	c.readPump()
}

// readPump discards inbound messages; it exists to process pongs and
// notice the peer going away
func (c *conn) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error",
					"error", err,
					"displayID", c.displayID,
				)
			}
			return
		}
	}
}

func (c *conn) write(mt int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(mt, payload)
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
