package socket

import (
	"articlehub/pkg/logger"
	"context"
	"database/sql"
	"encoding/json"
	"sync"
)

const (
	ArticleUpdatedType = "ARTICLE_UPDATED" // Article or document page saved
	ArticleDeletedType = "ARTICLE_DELETED" // Article removed
	AgreeChangedType   = "AGREE_CHANGED"   // Like count changed
	TopChangedType     = "TOP_CHANGED"     // Pinned or unpinned
	IndexChangedType   = "INDEX_CHANGED"   // Document tree changed
	PresenceUpdateType = "PRESENCE_UPDATE" // A viewer joined or left
)

const broadcastBuffer = 256

// WSMessage is what subscribers receive. UUID names the room: an article or a document.
type WSMessage struct {
	Type    string          `json:"type"`
	UUID    string          `json:"uuid"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type presence struct {
	Viewers int `json:"viewers"`
}

// Hub fans out change events to the viewers of an article or document.
type Hub struct {
	Rooms      map[string]map[*Client]bool
	Broadcast  chan WSMessage
	Register   chan *Client
	Unregister chan *Client
	db         *sql.DB
	mu         sync.Mutex
	done       chan struct{}
}

func NewHub(db *sql.DB) *Hub {
	return &Hub{
		Rooms:      make(map[string]map[*Client]bool),
		Broadcast:  make(chan WSMessage, broadcastBuffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		db:         db,
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. It returns when ctx is done, closing every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for uuid, clients := range h.Rooms {
				for client := range clients {
					close(client.Send)
				}
				delete(h.Rooms, uuid)
			}
			h.mu.Unlock()
			return

		case client := <-h.Register:
			h.mu.Lock()
			if h.Rooms[client.UUID] == nil {
				h.Rooms[client.UUID] = make(map[*Client]bool)
			}
			h.Rooms[client.UUID][client] = true
			h.mu.Unlock()

			h.broadcastPresenceUpdate(client.UUID)

		case client := <-h.Unregister:
			if h.removeClient(client) {
				h.broadcastPresenceUpdate(client.UUID)
			}

		case msg := <-h.Broadcast:
			payload, err := json.Marshal(msg)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
				continue
			}
			h.send(msg.UUID, payload)
		}
	}
}

// Publish queues an event for the room uuid. It never blocks the caller: when
// the queue is full the event is dropped.
func (h *Hub) Publish(eventType, uuid string, payload any) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			logger.Sugar.Errorf("Error marshalling %s payload for %s: %v", eventType, uuid, err)
			return
		}
		raw = b
	}

	select {
	case h.Broadcast <- WSMessage{Type: eventType, UUID: uuid, Payload: raw}:
	default:
		logger.Sugar.Warnf("Broadcast queue full, dropping %s event for %s", eventType, uuid)
	}
}

// Viewers returns how many clients watch uuid.
func (h *Hub) Viewers(uuid string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Rooms[uuid])
}

func (h *Hub) removeClient(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.Rooms[client.UUID][client]; !ok {
		return false
	}
	delete(h.Rooms[client.UUID], client)
	close(client.Send)
	if len(h.Rooms[client.UUID]) == 0 {
		delete(h.Rooms, client.UUID)
		logger.Sugar.Infof("Closed empty room: %s", client.UUID)
	}
	return true
}

// send writes payload to every client of a room. Clients that cannot keep up are dropped.
func (h *Hub) send(uuid string, payload []byte) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.Rooms[uuid]))
	for client := range h.Rooms[uuid] {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	dropped := false
	for _, client := range clients {
		select {
		case client.Send <- payload:
		default:
			logger.Sugar.Warnf("Client %s's send buffer is full. Unregistering.", client.ID())
			if h.removeClient(client) {
				dropped = true
			}
		}
	}
	if dropped {
		h.broadcastPresenceUpdate(uuid)
	}
}

func (h *Hub) broadcastPresenceUpdate(uuid string) {
	viewers := h.Viewers(uuid)
	if viewers == 0 {
		return
	}

	payload, err := json.Marshal(presence{Viewers: viewers})
	if err != nil {
		logger.Sugar.Errorf("Error marshalling presence broadcast: %v", err)
		return
	}
	msg, _ := json.Marshal(WSMessage{Type: PresenceUpdateType, UUID: uuid, Payload: payload})
	h.send(uuid, msg)
}
