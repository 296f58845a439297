package websocket

import "sync"

type Hub struct {
	mu         sync.RWMutex
	Rooms      map[string]*Room
	Register   chan *WSClient
	Unregister chan *WSClient
	Broadcast  chan *WSMessage
}

func NewHub() *Hub {
	return &Hub{
		Rooms:      make(map[string]*Room),
		Register:   make(chan *WSClient),
		Unregister: make(chan *WSClient),
		Broadcast:  make(chan *WSMessage),
	}
}

// EnsureRoom creates the room when it does not exist yet and reports whether
// it was created by this call.
func (h *Hub) EnsureRoom(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.Rooms[id]; exists {
		return false
	}
	h.Rooms[id] = &Room{
		Id:      id,
		Clients: make(map[string]*WSClient),
	}
	setRooms(len(h.Rooms))
	return true
}

func (h *Hub) room(id string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.Rooms[id]
	return room, ok
}

// RoomIDs returns a snapshot of the currently known room names.
func (h *Hub) RoomIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.Rooms))
	for id := range h.Rooms {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			room, ok := h.room(client.RoomID)
			if !ok {
				// Joining an unknown room is ignored; the handler creates
				// rooms before registering clients.
				continue
			}
			room.Clients[client.ID] = client
			incConnections()

		case client := <-h.Unregister:
			room, ok := h.room(client.RoomID)
			if !ok {
				continue
			}
			if _, ok := room.Clients[client.ID]; ok {
				delete(room.Clients, client.ID)
				close(client.Message)
				decConnections()
			}

		case message := <-h.Broadcast:
			room, ok := h.room(message.RoomID)
			if !ok {
				// Publishing to a room nobody ever joined is a no-op.
				continue
			}
			delivered := 0
			for _, client := range room.Clients {
				select {
				case client.Message <- message:
					delivered++
				default:
					close(client.Message)
					delete(room.Clients, client.ID)
					decConnections()
				}
			}
			if delivered > 0 {
				addDelivered(delivered)
			}
		}
	}
}
