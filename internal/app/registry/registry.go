package registry

import (
	"context"
	"sync"

	"github.com/garthpuckerin/dreamcatcher-sub000/internal/core/contracts"
)

// Registry is the in-memory hub for this node's websocket connections. A
// connection can sit in any number of rooms at once; rooms come and go with
// their last member.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]contracts.Client            // conn_id → client
	rooms   map[string]map[string]contracts.Client // room_id → conn_id → client
	joined  map[string]map[string]struct{}         // conn_id → room_id set
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]contracts.Client),
		rooms:   make(map[string]map[string]contracts.Client),
		joined:  make(map[string]map[string]struct{}),
	}
}

func (h *Registry) Register(c contracts.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ConnID()] = c
	h.joined[c.ConnID()] = make(map[string]struct{})
}

func (h *Registry) Unregister(c contracts.Client) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	connID := c.ConnID()
	rooms := make([]string, 0, len(h.joined[connID]))
	for roomID := range h.joined[connID] {
		rooms = append(rooms, roomID)
		h.leaveLocked(roomID, connID)
	}
	delete(h.joined, connID)
	delete(h.clients, connID)
	return rooms
}

func (h *Registry) Join(roomID string, c contracts.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	connID := c.ConnID()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]contracts.Client)
	}
	h.rooms[roomID][connID] = c
	if h.joined[connID] == nil {
		h.joined[connID] = make(map[string]struct{})
	}
	h.joined[connID][roomID] = struct{}{}
}

func (h *Registry) Leave(roomID string, c contracts.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	connID := c.ConnID()
	h.leaveLocked(roomID, connID)
	delete(h.joined[connID], roomID)
}

func (h *Registry) leaveLocked(roomID, connID string) {
	delete(h.rooms[roomID], connID)
	if len(h.rooms[roomID]) == 0 {
		delete(h.rooms, roomID)
	}
}

func (h *Registry) Rooms(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rooms := make([]string, 0, len(h.joined[connID]))
	for roomID := range h.joined[connID] {
		rooms = append(rooms, roomID)
	}
	return rooms
}

func (h *Registry) Members(roomID string) []contracts.Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := make([]contracts.Client, 0, len(h.rooms[roomID]))
	for _, c := range h.rooms[roomID] {
		members = append(members, c)
	}
	return members
}

func (h *Registry) BroadcastRoom(ctx context.Context, roomID string, exceptConnID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for connID, c := range h.rooms[roomID] {
		if connID == exceptConnID {
			continue
		}
		_ = c.Send(ctx, data)
	}
}

func (h *Registry) BroadcastAll(ctx context.Context, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		_ = c.Send(ctx, data)
	}
}
