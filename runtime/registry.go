package runtime

import (
	"sync"

	"society-live/contract"
	"society-live/domain"
)

var _ contract.IRegistry = (*Registry)(nil)

type Set[T comparable] map[T]struct{}

// Registry keeps both directions of room membership so that a disconnect
// can leave every room without scanning all of them.
type Registry struct {
	mu          sync.RWMutex
	roomMembers map[domain.RoomID]Set[domain.ConnectionID] // map room to connections
	connRooms   map[domain.ConnectionID]Set[domain.RoomID] // map connection to rooms
}

func NewRegistry() *Registry {
	return &Registry{
		roomMembers: make(map[domain.RoomID]Set[domain.ConnectionID]),
		connRooms:   make(map[domain.ConnectionID]Set[domain.RoomID]),
	}
}

// Join adds the connection to the room, creating the room on first join.
// Returns false when the connection was already a member.
func (r *Registry) Join(connID domain.ConnectionID, roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.roomMembers[roomID]
	if !ok {
		members = make(Set[domain.ConnectionID])
		r.roomMembers[roomID] = members
	}
	if _, already := members[connID]; already {
		return false
	}
	members[connID] = struct{}{}

	rooms, ok := r.connRooms[connID]
	if !ok {
		rooms = make(Set[domain.RoomID])
		r.connRooms[connID] = rooms
	}
	rooms[roomID] = struct{}{}
	return true
}

// Leave removes the connection from the room. Empty rooms are deleted.
// Returns false when the connection was not a member.
func (r *Registry) Leave(connID domain.ConnectionID, roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leave(connID, roomID)
}

func (r *Registry) leave(connID domain.ConnectionID, roomID domain.RoomID) bool {
	members, ok := r.roomMembers[roomID]
	if !ok {
		return false
	}
	if _, member := members[connID]; !member {
		return false
	}
	delete(members, connID)
	// If no one is left in the room, remove the room entry entirely
	if len(members) == 0 {
		delete(r.roomMembers, roomID)
	}
	if rooms, ok := r.connRooms[connID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.connRooms, connID)
		}
	}
	return true
}

// RemoveConnection drops the connection from every room it joined
// and returns those rooms.
func (r *Registry) RemoveConnection(connID domain.ConnectionID) []domain.RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := keys(r.connRooms[connID])
	for _, roomID := range rooms {
		r.leave(connID, roomID)
	}
	delete(r.connRooms, connID)
	return rooms
}

// Members returns a snapshot of the connections of a room.
// Returns nil if the room doesn't exist.
func (r *Registry) Members(roomID domain.RoomID) []domain.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[roomID]
	if !ok {
		return nil
	}
	return keys(members)
}

func (r *Registry) RoomsOf(connID domain.ConnectionID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return keys(r.connRooms[connID])
}

func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.roomMembers)
}

func keys[T comparable](s Set[T]) []T {
	out := make([]T, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	return out
}
