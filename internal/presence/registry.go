// Package presence tracks live connections, the users they belong to and the rooms they joined.
//
// All state is in memory and lives as long as the process. The Registry is the
// single shared index; Tracker answers read-only questions on top of it.
package presence

import (
	"slices"
	"sync"
)

// RegisterResult describes what a Register call changed.
type RegisterResult struct {
	// PreviousUserID is the user the connection belonged to before, valid when HadPrevious.
	PreviousUserID int64
	HadPrevious    bool

	// PreviousWentOffline is set when the previous user has no connections left.
	PreviousWentOffline bool

	// FirstConnection is set when the user had no other connection before this call.
	FirstConnection bool
}

// DeregisterResult holds the facts needed to decide which notifications to send
// after a connection went away. It is computed in a single critical section.
type DeregisterResult struct {
	Found             bool
	UserID            int64
	Registered        bool
	WasLastConnection bool
	Rooms             []int64
}

// Registry is a bidirectional index between connections, users and rooms.
// Every method is atomic with respect to every other method.
type Registry struct {
	mu sync.RWMutex

	attached  map[string]struct{}
	connUser  map[string]int64
	userConns map[int64]map[string]struct{}
	roomConns map[int64]map[string]struct{}
	connRooms map[string]map[int64]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		attached:  make(map[string]struct{}),
		connUser:  make(map[string]int64),
		userConns: make(map[int64]map[string]struct{}),
		roomConns: make(map[int64]map[string]struct{}),
		connRooms: make(map[string]map[int64]struct{}),
	}
}

// Attach records a live connection that has not registered a user yet.
// It reports false if the connection was already attached.
func (r *Registry) Attach(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.attached[connID]; ok {
		return false
	}
	r.attached[connID] = struct{}{}
	return true
}

// Register maps connID to userID. The last call wins.
func (r *Registry) Register(connID string, userID int64) RegisterResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res RegisterResult
	r.attached[connID] = struct{}{}

	if prev, ok := r.connUser[connID]; ok {
		if prev == userID {
			return res
		}
		res.PreviousUserID = prev
		res.HadPrevious = true
		res.PreviousWentOffline = r.unlinkUserLocked(connID, prev)
	}

	conns, ok := r.userConns[userID]
	if !ok {
		conns = make(map[string]struct{})
		r.userConns[userID] = conns
	}
	res.FirstConnection = len(conns) == 0
	conns[connID] = struct{}{}
	r.connUser[connID] = userID
	return res
}

// unlinkUserLocked removes connID from userID's set and reports whether it was the last one.
func (r *Registry) unlinkUserLocked(connID string, userID int64) bool {
	delete(r.connUser, connID)
	conns := r.userConns[userID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.userConns, userID)
		return true
	}
	return false
}

// Deregister removes every trace of connID.
func (r *Registry) Deregister(connID string) DeregisterResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res DeregisterResult
	if _, ok := r.attached[connID]; ok {
		res.Found = true
		delete(r.attached, connID)
	}

	if rooms, ok := r.connRooms[connID]; ok {
		res.Found = true
		res.Rooms = make([]int64, 0, len(rooms))
		for roomID := range rooms {
			res.Rooms = append(res.Rooms, roomID)
			r.removeRoomConnLocked(roomID, connID)
		}
		delete(r.connRooms, connID)
		slices.Sort(res.Rooms)
	}

	if userID, ok := r.connUser[connID]; ok {
		res.Found = true
		res.UserID = userID
		res.Registered = true
		res.WasLastConnection = r.unlinkUserLocked(connID, userID)
	}
	return res
}

func (r *Registry) removeRoomConnLocked(roomID int64, connID string) {
	conns := r.roomConns[roomID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.roomConns, roomID)
	}
}

// JoinRoom adds the connection to the room. It reports whether membership changed.
func (r *Registry) JoinRoom(connID string, roomID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, ok := r.connRooms[connID]
	if !ok {
		rooms = make(map[int64]struct{})
		r.connRooms[connID] = rooms
	}
	if _, joined := rooms[roomID]; joined {
		return false
	}

	conns, ok := r.roomConns[roomID]
	if !ok {
		conns = make(map[string]struct{})
		r.roomConns[roomID] = conns
	}
	rooms[roomID] = struct{}{}
	conns[connID] = struct{}{}
	r.attached[connID] = struct{}{}
	return true
}

// LeaveRoom removes the connection from the room. It reports whether membership changed.
func (r *Registry) LeaveRoom(connID string, roomID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, ok := r.connRooms[connID]
	if !ok {
		return false
	}
	if _, joined := rooms[roomID]; !joined {
		return false
	}
	delete(rooms, roomID)
	if len(rooms) == 0 {
		delete(r.connRooms, connID)
	}
	r.removeRoomConnLocked(roomID, connID)
	return true
}

// ConnectionsInRoom returns a sorted snapshot of the connections joined to roomID.
func (r *Registry) ConnectionsInRoom(roomID int64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.roomConns[roomID])
}

// RoomsForConnection returns a sorted snapshot of the rooms connID joined.
func (r *Registry) RoomsForConnection(connID string) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.connRooms[connID])
}

// UserForConnection returns the user registered on connID, if any.
func (r *Registry) UserForConnection(connID string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.connUser[connID]
	return userID, ok
}

// ConnectionsForUser returns a sorted snapshot of userID's connections.
func (r *Registry) ConnectionsForUser(userID int64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.userConns[userID])
}

// IsUserOnline reports whether userID has at least one registered connection.
func (r *Registry) IsUserOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.userConns[userID]) > 0
}

// OnlineUserCount returns the number of distinct online users.
func (r *Registry) OnlineUserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.userConns)
}

// Connections returns a sorted snapshot of all attached connections.
func (r *Registry) Connections() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.attached)
}

// ConnectionCount returns the number of attached connections.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.attached)
}

// view runs fn under the read lock. Used by Tracker to compute answers
// from a consistent state.
func (r *Registry) view(fn func(r *Registry)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn(r)
}

func sortedKeys[K string | int64](m map[K]struct{}) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
