package core

import (
	"slices"
	"sync"
	"time"
)

// FanOutToRoom delivers ev once to every connection joined to roomID, except the
// connections of excludeUserID and excludeConnID. Zero values exclude nothing.
// It returns the number of connections the event was queued for.
func (h *Hub) FanOutToRoom(roomID, excludeUserID int64, excludeConnID string, ev *Event) int {
	conns := h.reg.ConnectionsInRoom(roomID)
	if len(conns) == 0 {
		return 0
	}

	excluded := make(map[string]struct{}, 1)
	if excludeConnID != "" {
		excluded[excludeConnID] = struct{}{}
	}
	if excludeUserID != 0 {
		for _, id := range h.reg.ConnectionsForUser(excludeUserID) {
			excluded[id] = struct{}{}
		}
	}

	targets := h.resolve(conns, excluded)
	return deliver(targets, ev)
}

// Broadcast delivers ev to every attached connection. Cost grows with the total
// number of connections.
func (h *Hub) Broadcast(ev *Event) int {
	return deliver(h.snapshotClients(), ev)
}

// NotifyRoom sends a server announcement to everyone in roomID.
func (h *Hub) NotifyRoom(roomID, sentBy int64, message string) int {
	return h.FanOutToRoom(roomID, 0, "", NewEvent(&ChatroomNotification{
		RoomID:  roomID,
		Message: message,
		SentBy:  sentBy,
		SentAt:  time.Now().UTC(),
	}))
}

func (h *Hub) resolve(conns []string, excluded map[string]struct{}) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := make([]*Client, 0, len(conns))
	for _, id := range conns {
		if _, skip := excluded[id]; skip {
			continue
		}
		if c, ok := h.clients[id]; ok {
			targets = append(targets, c)
		}
	}
	return targets
}

// deliver runs without any registry or hub lock held.
func deliver(targets []*Client, ev *Event) int {
	n := 0
	for _, c := range targets {
		if c.Send(ev) {
			n++
		}
	}
	return n
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// Lock locks key and returns its unlock function.
func (k *keyedMutex) Lock(key int64) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[int64]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// LockAll locks every key in ascending order and returns one function that unlocks them all.
func (k *keyedMutex) LockAll(keys ...int64) func() {
	keys = slices.Clone(keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	unlocks := make([]func(), 0, len(keys))
	for _, key := range keys {
		unlocks = append(unlocks, k.Lock(key))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}
