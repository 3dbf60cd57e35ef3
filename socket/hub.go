package socket

import (
	"context"
	"encoding/json"
	"sync"

	"streamlify/internal/idea/model"
	"streamlify/pkg/logger"
)

const (
	SnapshotType = "SNAPSHOT" // Full list sent to a client when it joins
	UpdateType   = "UPDATE"   // Full list after a create, vote or flush
)

type WSMessage struct {
	Type    string          `json:"type"`
	UserID  string          `json:"user_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Lister loads the current idea list for joining clients.
type Lister interface {
	List(ctx context.Context) ([]model.Idea, error)
}

// Hub fans the idea list out to every connected board client.
type Hub struct {
	clients    map[*Client]bool
	Broadcast  chan WSMessage
	Register   chan *Client
	Unregister chan *Client
	lister     Lister
	done       chan struct{}
	mu         sync.Mutex
}

func NewHub(lister Lister) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		Broadcast:  make(chan WSMessage, 16),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		lister:     lister,
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			return

		case client := <-h.Register:
			// Load the snapshot first, then flush every update queued before
			// it to the existing clients. Anything the new client sees after
			// the snapshot is at least as new as the snapshot.
			ideas, err := h.lister.List(ctx)
			if err != nil {
				logger.Sugar.Errorf("Failed to load ideas for new client %s: %v", client.UserID, err)
				ideas = []model.Idea{}
			}
			h.drainBroadcast()

			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

			payload, err := encode(WSMessage{Type: SnapshotType}, ideas)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling snapshot: %v", err)
				continue
			}
			h.send(client, payload)

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()

		case msg := <-h.Broadcast:
			h.deliver(msg)
		}
	}
}

// drainBroadcast delivers every message already queued on Broadcast.
func (h *Hub) drainBroadcast() {
	for {
		select {
		case msg := <-h.Broadcast:
			h.deliver(msg)
		default:
			return
		}
	}
}

func (h *Hub) deliver(msg WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
		return
	}

	// Collect recipients under the lock, send outside of it.
	h.mu.Lock()
	clientsToSend := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clientsToSend = append(clientsToSend, client)
	}
	h.mu.Unlock()

	for _, client := range clientsToSend {
		h.send(client, payload)
	}
}

// Publish queues the updated list for every connected client.
func (h *Hub) Publish(actorID string, ideas []model.Idea) {
	payload, err := json.Marshal(ideas)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling ideas: %v", err)
		return
	}
	select {
	case h.Broadcast <- WSMessage{Type: UpdateType, UserID: actorID, Payload: payload}:
	case <-h.done:
	}
}

func (h *Hub) register(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// send drops clients whose buffer is full so one slow reader cannot stall
// the hub.
func (h *Hub) send(client *Client, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.Send <- payload:
	default:
		logger.Sugar.Warnf("Client %s's send buffer is full. Dropping.", client.UserID)
		delete(h.clients, client)
		close(client.Send)
	}
}

func encode(msg WSMessage, ideas []model.Idea) ([]byte, error) {
	payload, err := json.Marshal(ideas)
	if err != nil {
		return nil, err
	}
	msg.Payload = payload
	return json.Marshal(msg)
}
