package websocket

import (
	"context"
	"log/slog"
	"sync"
)

// Hub maintains active WebSocket connections and broadcasts messages
type Hub struct {
	// Registered clients by topic
	clients map[string]map[*Client]bool

	// Outbound messages for subscribers
	broadcast chan *Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	log *slog.Logger
	mu  sync.RWMutex
}

// Message is one event pushed to the subscribers of a topic
type Message struct {
	Topic   string      `json:"topic"`
	Type    string      `json:"type"` // run_created, run_deleted
	Payload interface{} `json:"payload"`
}

// NewHub creates a new WebSocket hub
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the hub's main loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for topic, clients := range h.clients {
				for client := range clients {
					close(client.send)
				}
				delete(h.clients, topic)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.topic] == nil {
				h.clients[client.topic] = make(map[*Client]bool)
			}
			h.clients[client.topic][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[message.Topic] {
				select {
				case client.send <- message:
				default:
					h.log.Warn("dropping slow websocket client", "topic", message.Topic)
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.topic]
	if !ok {
		return
	}
	if _, ok := clients[client]; ok {
		delete(clients, client)
		close(client.send)
		if len(clients) == 0 {
			delete(h.clients, client.topic)
		}
	}
}

// Broadcast queues a message for every client of topic. It never blocks the
// caller; when the queue is full the message is dropped.
func (h *Hub) Broadcast(topic string, msgType string, payload interface{}) {
	select {
	case h.broadcast <- &Message{Topic: topic, Type: msgType, Payload: payload}:
	default:
		h.log.Warn("websocket broadcast queue full, message dropped", "topic", topic, "type", msgType)
	}
}

// Subscribers returns the number of clients registered for topic
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Register registers a new client connection. It reports false when the hub
// has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister unregisters a client connection
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
