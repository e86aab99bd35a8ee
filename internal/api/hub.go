package api

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/strandlabs/strand/internal/domain"
	"github.com/strandlabs/strand/internal/ports"
	json "github.com/strandlabs/strand/internal/xjson"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsEvent is the envelope every streamed event travels in.
type wsEvent struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// Hub fans run lifecycle events out to websocket subscribers keyed by run id.
// Slow clients are dropped rather than allowed to stall the bus.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	closed  bool
	streams map[string]map[*client]struct{}
}

type client struct {
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// trySend queues data without blocking; a full buffer closes the client.
func (c *client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.closed = true
		close(c.send)
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger.With("component", "ws-hub"),
		streams: make(map[string]map[*client]struct{}),
	}
}

// Attach subscribes the hub to the lifecycle bus.
func (h *Hub) Attach(bus ports.EventBus) {
	bus.OnRunStarted(func(event *domain.RunStartedEvent) {
		h.broadcast(event.RunID, "run_started", event)
	})
	bus.OnLayerCompleted(func(event *domain.LayerCompletedEvent) {
		h.broadcast(event.RunID, "layer_completed", event)
	})
	bus.OnNodeSettled(func(event *domain.NodeSettledEvent) {
		h.broadcast(event.RunID, "node_settled", event)
	})
	bus.OnRunCompleted(func(event *domain.RunCompletedEvent) {
		h.broadcast(event.RunID, "run_completed", event)
		h.closeStream(event.RunID)
	})
	bus.OnRunFailed(func(event *domain.RunFailedEvent) {
		h.broadcast(event.RunID, "run_failed", event)
		h.closeStream(event.RunID)
	})
}

func (h *Hub) subscribe(runID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		c.close()
		return
	}
	if h.streams[runID] == nil {
		h.streams[runID] = make(map[*client]struct{})
	}
	h.streams[runID][c] = struct{}{}
}

func (h *Hub) unsubscribe(runID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.streams[runID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.streams, runID)
		}
	}
	c.close()
}

func (h *Hub) broadcast(runID, eventName string, payload interface{}) {
	data, err := json.Marshal(wsEvent{Event: eventName, Payload: payload})
	if err != nil {
		h.logger.Error("failed to encode ws event", "event", eventName, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.streams[runID] {
		if !c.trySend(data) {
			h.logger.Warn("dropping slow websocket client", "run_id", runID)
		}
	}
}

// closeStream ends every subscription for a finished run.
func (h *Hub) closeStream(runID string) {
	h.mu.Lock()
	clients := h.streams[runID]
	delete(h.streams, runID)
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

func (h *Hub) Close() {
	h.mu.Lock()
	streams := h.streams
	h.streams = make(map[string]map[*client]struct{})
	h.closed = true
	h.mu.Unlock()

	for _, clients := range streams {
		for c := range clients {
			c.close()
		}
	}
}

// streamRun upgrades the connection and pumps events for one run until the
// run finishes or the client disconnects.
func (s *Server) streamRun(c *gin.Context) {
	runID := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "run_id", runID, "error", err)
		return
	}

	cl := &client{conn: conn, send: make(chan []byte, 64)}
	s.hub.subscribe(runID, cl)

	// Reader: only watches for the client going away.
	go func() {
		defer s.hub.unsubscribe(runID, cl)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for data := range cl.send {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			break
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"))
	_ = conn.Close()
}
