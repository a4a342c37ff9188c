package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"intel-correlation-service/internal/models"
)

const maxEventSubscribers = 32

// WebSocketManager fans job events out to subscribed dashboard clients.
type WebSocketManager struct {
	connections map[*websocket.Conn]bool
	mutex       sync.Mutex
	logger      *logrus.Logger
}

func NewWebSocketManager(logger *logrus.Logger) *WebSocketManager {
	return &WebSocketManager{
		connections: make(map[*websocket.Conn]bool),
		logger:      logger,
	}
}

func (m *WebSocketManager) AddConnection(conn *websocket.Conn) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if len(m.connections) >= maxEventSubscribers {
		m.logger.Warnf("Max event subscribers reached, rejecting connection")
		return false
	}
	m.connections[conn] = true
	m.logger.Infof("Added event subscriber (total: %d)", len(m.connections))
	return true
}

func (m *WebSocketManager) RemoveConnection(conn *websocket.Conn) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, exists := m.connections[conn]; exists {
		delete(m.connections, conn)
		m.logger.Infof("Removed event subscriber (remaining: %d)", len(m.connections))
	}
}

// Broadcast sends a job event to every subscriber, dropping connections
// whose writes fail.
func (m *WebSocketManager) Broadcast(ev models.JobEvent) {
	message, err := json.Marshal(ev)
	if err != nil {
		m.logger.Errorf("Failed to marshal job event for broadcast: %v", err)
		return
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for conn := range m.connections {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			m.logger.Errorf("Failed to send event to subscriber: %v", err)
			conn.Close()
			delete(m.connections, conn)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamEvents upgrades the request and keeps the connection registered
// until the client disconnects.
func (h *Handler) StreamEvents(ws *WebSocketManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.logger.Errorf("WebSocket upgrade failed: %v", err)
			return
		}
		if !ws.AddConnection(conn) {
			conn.Close()
			return
		}
		defer func() {
			ws.RemoveConnection(conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
