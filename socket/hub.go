package socket

import (
	"log"
	"sync"

	"mingle_server/models"
)

// Hub indexes live sessions and their room membership. Rooms are pair keys;
// joining is per connection and idempotent.
type Hub struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	rooms        map[string]map[*Session]struct{}
	sessionRooms map[*Session]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		sessions:     make(map[string]*Session),
		rooms:        make(map[string]map[*Session]struct{}),
		sessionRooms: make(map[*Session]map[string]struct{}),
	}
}

// Register adds an authenticated session.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	h.sessions[s.ConnectionID] = s
	h.sessionRooms[s] = make(map[string]struct{})
	total := len(h.sessions)
	h.mu.Unlock()
	log.Printf("✅ Session %s registered for user %s (total: %d)", s.ConnectionID, s.UserID, total)
}

// Unregister removes the session and every room membership it held.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s.ConnectionID)
	for room := range h.sessionRooms[s] {
		h.removeFromRoom(s, room)
	}
	delete(h.sessionRooms, s)
	remaining := len(h.sessions)
	h.mu.Unlock()
	log.Printf("❌ Session %s unregistered (remaining: %d)", s.ConnectionID, remaining)
}

// Join adds the session to a room. Joining twice yields the same membership
// state as joining once.
func (h *Hub) Join(s *Session, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, registered := h.sessionRooms[s]; !registered {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Session]struct{})
		h.rooms[room] = members
	}
	members[s] = struct{}{}
	h.sessionRooms[s][room] = struct{}{}
}

// Leave removes the session from a room. Leaving a room it is not in is a
// no-op.
func (h *Hub) Leave(s *Session, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(s, room)
	if rooms, ok := h.sessionRooms[s]; ok {
		delete(rooms, room)
	}
}

// removeFromRoom must be called with the lock held.
func (h *Hub) removeFromRoom(s *Session, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// InRoom reports whether the session currently holds membership in room.
func (h *Hub) InRoom(s *Session, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessionRooms[s][room]
	return ok
}

// BroadcastToRoom delivers a frame to every session in the room, including
// the sender's other devices.
func (h *Hub) BroadcastToRoom(room string, frame models.Frame) {
	for _, s := range h.roomSnapshot(room, "") {
		s.enqueue(frame)
	}
}

// BroadcastToRoomExceptUser delivers a frame to the room, skipping every
// session of the given user. Used for typing signals, which a user's own
// devices do not need to see.
func (h *Hub) BroadcastToRoomExceptUser(room, userID string, frame models.Frame) {
	for _, s := range h.roomSnapshot(room, userID) {
		s.enqueue(frame)
	}
}

// SendToUser delivers a frame to every live session of the user.
func (h *Hub) SendToUser(userID string, frame models.Frame) {
	h.mu.RLock()
	targets := make([]*Session, 0, 2)
	for _, s := range h.sessions {
		if s.UserID == userID {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()
	for _, s := range targets {
		s.enqueue(frame)
	}
}

// BroadcastPresence pushes a status change into every room whose pair
// contains the user, excluding the user's own sessions.
func (h *Hub) BroadcastPresence(userID string, online bool) {
	h.mu.RLock()
	var targets []*Session
	for room, members := range h.rooms {
		if !models.PairContains(room, userID) {
			continue
		}
		for s := range members {
			if s.UserID != userID {
				targets = append(targets, s)
			}
		}
	}
	h.mu.RUnlock()

	frame := models.Frame{Type: models.FramePresence, UserID: userID, Online: &online}
	for _, s := range targets {
		s.enqueue(frame)
	}
}

func (h *Hub) roomSnapshot(room, excludeUserID string) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := h.rooms[room]
	out := make([]*Session, 0, len(members))
	for s := range members {
		if excludeUserID != "" && s.UserID == excludeUserID {
			continue
		}
		out = append(out, s)
	}
	return out
}
