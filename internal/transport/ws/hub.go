package ws

import (
	"encoding/json"
	"log"
	"sync"

	"compclient/internal/model"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MsgStatusChanged MessageType = "status_changed"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans status notices out to every connection of a participant
type Hub struct {
	conns map[string]map[*Connection]struct{} // userID -> connections

	mu sync.RWMutex

	// Channels for coordination
	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *BroadcastMessage
}

// Connection represents a WebSocket connection
type Connection struct {
	UserID string
	Send   chan []byte
	Hub    *Hub
}

// BroadcastMessage is a message for one participant
type BroadcastMessage struct {
	UserID  string
	Message *Message
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	h := &Hub{
		conns:      make(map[string]map[*Connection]struct{}),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *BroadcastMessage, 256),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			if h.conns[conn.UserID] == nil {
				h.conns[conn.UserID] = make(map[*Connection]struct{})
			}
			h.conns[conn.UserID][conn] = struct{}{}
			h.mu.Unlock()
			log.Printf("[WS] Participant %s connected", conn.UserID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.conns[conn.UserID]; ok {
				if _, ok := set[conn]; ok {
					delete(set, conn)
					close(conn.Send)
					if len(set) == 0 {
						delete(h.conns, conn.UserID)
					}
					log.Printf("[WS] Participant %s disconnected", conn.UserID)
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			data, _ := json.Marshal(msg.Message)
			h.mu.RLock()
			for conn := range h.conns[msg.UserID] {
				select {
				case conn.Send <- data:
				default:
					// Drop message if buffer full
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// Connected returns how many connections userID has open
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// NotifyStatus sends a status notice to the participant (implements service.Broadcaster)
func (h *Hub) NotifyStatus(userID string, notice model.StatusNotice) {
	data, _ := json.Marshal(notice)
	h.broadcast <- &BroadcastMessage{
		UserID: userID,
		Message: &Message{
			Type:    MsgStatusChanged,
			Payload: data,
		},
	}
}
