// Package fanout tracks the live handles subscribed to each game and delivers
// serialized events to them.
package fanout

import (
	"sync"

	"go.uber.org/zap"
)

// Handle is one live transport endpoint. Send must not block on the network;
// a failure affects only this handle.
type Handle interface {
	Send(payload []byte) error
}

// Hub maps a game id to its own internally locked handle set. The hub lock
// only guards the map; delivery to one game never waits on another.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[int]*room
	logger *zap.Logger
}

type room struct {
	mu      sync.RWMutex
	handles map[Handle]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{rooms: make(map[int]*room), logger: logger}
}

// room returns the set for gameID, creating it when create is set.
func (h *Hub) room(gameID int, create bool) *room {
	h.mu.RLock()
	r := h.rooms[gameID]
	h.mu.RUnlock()
	if r != nil || !create {
		return r
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if r = h.rooms[gameID]; r == nil {
		r = &room{handles: make(map[Handle]struct{})}
		h.rooms[gameID] = r
	}
	return r
}

func (h *Hub) Add(gameID int, handle Handle) {
	r := h.room(gameID, true)
	r.mu.Lock()
	r.handles[handle] = struct{}{}
	r.mu.Unlock()
}

// Remove detaches handle from gameID. The set itself stays.
func (h *Hub) Remove(gameID int, handle Handle) {
	r := h.room(gameID, false)
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.handles, handle)
	r.mu.Unlock()
}

// Drop detaches handle from every game, for transport disconnects.
func (h *Hub) Drop(handle Handle) {
	h.mu.RLock()
	rooms := make([]*room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.RUnlock()
	for _, r := range rooms {
		r.mu.Lock()
		delete(r.handles, handle)
		r.mu.Unlock()
	}
}

// Contains reports whether handle is subscribed to gameID.
func (h *Hub) Contains(gameID int, handle Handle) bool {
	r := h.room(gameID, false)
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handles[handle]
	return ok
}

// Len returns the number of handles subscribed to gameID.
func (h *Hub) Len(gameID int) int {
	r := h.room(gameID, false)
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Broadcast sends payload to every handle of gameID except exclude (nil
// excludes nobody) and returns how many accepted it. Failed handles are logged
// and left in place; the transport removes dead ones via Drop.
func (h *Hub) Broadcast(gameID int, exclude Handle, payload []byte) int {
	r := h.room(gameID, false)
	if r == nil {
		return 0
	}
	r.mu.RLock()
	targets := make([]Handle, 0, len(r.handles))
	for handle := range r.handles {
		if exclude != nil && handle == exclude {
			continue
		}
		targets = append(targets, handle)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, handle := range targets {
		if err := handle.Send(payload); err != nil {
			h.logger.Warn("fanout_deliver_error", zap.Int("game_id", gameID), zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}
