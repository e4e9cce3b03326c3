package server

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nedpals/davi-tagauth/protocol"
)

// Client is one WebSocket connection. Writes are serialised because
// handlers and broadcasts write from different goroutines.
type Client struct {
	ID   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{ID: uuid.New().String(), conn: conn}
}

// WriteJSON sends v as a single text message.
func (c *Client) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// SendResponse sends a successful response to the request with requestID.
func (c *Client) SendResponse(requestID, responseType string, payload any) error {
	return c.WriteJSON(protocol.WebSocketResponse{
		ID:      requestID,
		Type:    responseType,
		Success: true,
		Payload: payload,
	})
}

// SendError sends a structured error response.
func (c *Client) SendError(requestID string, payload protocol.ErrorPayload, message string) error {
	return c.WriteJSON(protocol.WebSocketResponse{
		ID:      requestID,
		Type:    protocol.WSTypeError,
		Success: false,
		Error:   message,
		Payload: payload,
	})
}

// ClientManager manages WebSocket client connections and broadcasting.
type ClientManager struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

// NewClientManager creates a new ClientManager instance.
func NewClientManager() *ClientManager {
	return &ClientManager{
		clients: make(map[*Client]bool),
	}
}

// Register adds a new client connection.
func (cm *ClientManager) Register(client *Client) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.clients[client] = true
}

// Unregister removes a client connection.
func (cm *ClientManager) Unregister(client *Client) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.clients, client)
}

// Count returns the number of connected clients.
func (cm *ClientManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.clients)
}

// CloseAll closes all client connections.
func (cm *ClientManager) CloseAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for client := range cm.clients {
		client.Close()
		delete(cm.clients, client)
	}
}

// Broadcast sends message to all connected clients. Clients that cannot be
// written to are closed and removed.
func (cm *ClientManager) Broadcast(message protocol.WebSocketMessage) {
	cm.mu.RLock()
	clients := make([]*Client, 0, len(cm.clients))
	for client := range cm.clients {
		clients = append(clients, client)
	}
	cm.mu.RUnlock()

	for _, client := range clients {
		if err := client.WriteJSON(message); err != nil {
			log.Printf("WebSocket write error for client %s: %v", client.ID[:8], err)
			client.Close()
			cm.Unregister(client)
		}
	}
}
