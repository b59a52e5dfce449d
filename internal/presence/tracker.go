package presence

import "slices"

// UserStatus is the live presence of one user.
type UserStatus struct {
	UserID      int64   `json:"userId"`
	Online      bool    `json:"online"`
	Connections int     `json:"connections"`
	Rooms       []int64 `json:"rooms"`
}

// Stats summarizes the registry.
type Stats struct {
	OnlineUsers int `json:"onlineUsers"`
	Connections int `json:"connections"`
	ActiveRooms int `json:"activeRooms"`
}

// Tracker answers presence questions by recomputing them over the Registry on every call.
type Tracker struct {
	reg *Registry
}

// NewTracker wraps reg.
func NewTracker(reg *Registry) *Tracker {
	return &Tracker{reg: reg}
}

// OnlineUsers returns the sorted ids of every online user.
func (t *Tracker) OnlineUsers() []int64 {
	var out []int64
	t.reg.view(func(r *Registry) {
		out = make([]int64, 0, len(r.userConns))
		for userID := range r.userConns {
			out = append(out, userID)
		}
	})
	slices.Sort(out)
	return out
}

// OnlineUsersInRoom returns the distinct registered users among the room's connections.
func (t *Tracker) OnlineUsersInRoom(roomID int64) []int64 {
	seen := make(map[int64]struct{})
	t.reg.view(func(r *Registry) {
		for connID := range r.roomConns[roomID] {
			if userID, ok := r.connUser[connID]; ok {
				seen[userID] = struct{}{}
			}
		}
	})
	return sortedKeys(seen)
}

// RoomsForUser returns the union of rooms joined by any of the user's connections.
func (t *Tracker) RoomsForUser(userID int64) []int64 {
	rooms := make(map[int64]struct{})
	t.reg.view(func(r *Registry) {
		for connID := range r.userConns[userID] {
			for roomID := range r.connRooms[connID] {
				rooms[roomID] = struct{}{}
			}
		}
	})
	return sortedKeys(rooms)
}

// UserPresence returns the presence of a single user.
func (t *Tracker) UserPresence(userID int64) UserStatus {
	status := UserStatus{UserID: userID}
	rooms := make(map[int64]struct{})
	t.reg.view(func(r *Registry) {
		conns := r.userConns[userID]
		status.Connections = len(conns)
		for connID := range conns {
			for roomID := range r.connRooms[connID] {
				rooms[roomID] = struct{}{}
			}
		}
	})
	status.Online = status.Connections > 0
	status.Rooms = sortedKeys(rooms)
	return status
}

// Stats returns counts of online users, attached connections and rooms with at least one connection.
func (t *Tracker) Stats() Stats {
	var s Stats
	t.reg.view(func(r *Registry) {
		s.OnlineUsers = len(r.userConns)
		s.Connections = len(r.attached)
		s.ActiveRooms = len(r.roomConns)
	})
	return s
}
