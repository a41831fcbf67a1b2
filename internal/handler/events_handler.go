// internal/handler/events_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"terminal-service/internal/model"
	"terminal-service/internal/utils"
)

// EventMessage is one frame of the event stream. Type is a bounded
// identifier so clients can switch on it without string parsing.
type EventMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

const (
	eventConnectivityChanged = "connectivity_changed"
	eventPaymentStatus       = "payment_status"
)

// wsClient is one connected event stream subscriber
type wsClient struct {
	id          string
	conn        *websocket.Conn
	send        chan []byte
	remoteAddr  string
	connectedAt time.Time
}

// EventsHandler streams connectivity and payment events to frontend
// clients over a websocket. It implements the connection manager's event
// sink and the payment orchestrator's update sink.
type EventsHandler struct {
	upgrader websocket.Upgrader
	logger   *utils.ServiceLogger

	mu      sync.RWMutex
	clients map[string]*wsClient
}

// NewEventsHandler creates the event stream handler
func NewEventsHandler(logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// the frontend is served from a local origin that varies
				// per install
				return true
			},
		},
		logger:  utils.NewServiceLogger(logger, "events-handler"),
		clients: make(map[string]*wsClient),
	}
}

// HandleEvents upgrades the request and subscribes the client to the
// event stream
func (h *EventsHandler) HandleEvents(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &wsClient{
		id:          uuid.New().String(),
		conn:        conn,
		send:        make(chan []byte, 256),
		remoteAddr:  c.Request.RemoteAddr,
		connectedAt: time.Now(),
	}

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()

	h.logger.Info("Event stream client connected",
		zap.String("client_id", client.id),
		zap.String("remote_addr", client.remoteAddr),
	)

	go h.readPump(client)
	go h.writePump(client)
}

func (h *EventsHandler) unregister(client *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[client.id]; ok {
		delete(h.clients, client.id)
		close(client.send)
	}
	h.mu.Unlock()
}

// readPump drains the client so pongs and close frames are processed.
// Clients do not send application messages on this stream.
func (h *EventsHandler) readPump(client *wsClient) {
	defer func() {
		h.unregister(client)
		client.conn.Close()
	}()

	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.id),
				)
			}
			return
		}
	}
}

func (h *EventsHandler) writePump(client *wsClient) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.id),
				)
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// broadcast fans a message out to every subscriber. Slow clients drop
// frames rather than stalling the broadcast.
func (h *EventsHandler) broadcast(eventType string, data interface{}) {
	message := EventMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal event message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.send <- messageBytes:
		default:
			h.logger.Warn("Client send channel full, dropping event",
				zap.String("client_id", client.id),
				zap.String("event_type", eventType),
			)
		}
	}
}

// ConnectivityChanged broadcasts a slot's new connectivity record
func (h *EventsHandler) ConnectivityChanged(record model.ConnectivityRecord) {
	h.broadcast(eventConnectivityChanged, record)
}

// PaymentStatusChanged broadcasts one step of the payment status stream
func (h *EventsHandler) PaymentStatusChanged(update model.StatusUpdate) {
	h.broadcast(eventPaymentStatus, update)
}

// ClientCount reports the number of connected subscribers
func (h *EventsHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
