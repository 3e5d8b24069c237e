// File: internal/ws/hub.go
package ws

import "sync"

// Hub tracks transport-level rooms: broadcast groups named by chat key. A
// connection may sit in any number of rooms at once, one per open chat.
// Room names happen to equal storage chat keys, but the hub neither parses
// nor interprets them.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Conn]struct{})}
}

// Join adds the connection to a room.
func (h *Hub) Join(room string, c *Conn) {
	h.mu.Lock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Conn]struct{})
	}
	h.rooms[room][c] = struct{}{}
	h.mu.Unlock()
}

// Leave removes the connection from a room, dropping the room entirely once
// empty.
func (h *Hub) Leave(room string, c *Conn) {
	h.mu.Lock()
	if set, ok := h.rooms[room]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()
}

// Broadcast queues the event on every connection currently in the room,
// the sender's other sessions included.
func (h *Hub) Broadcast(room string, ev Event) {
	h.mu.RLock()
	for c := range h.rooms[room] {
		c.Send(ev)
	}
	h.mu.RUnlock()
}

// Members returns how many connections are in the room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	n := len(h.rooms[room])
	h.mu.RUnlock()
	return n
}
