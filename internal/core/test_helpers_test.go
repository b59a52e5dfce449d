package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/chatroom-server/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// noEvent drains ch for wait and fails if an event of kind shows up.
func noEvent(t *testing.T, ch <-chan *Event, kind EventKind, wait time.Duration) {
	t.Helper()

	deadline := time.After(wait)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event %v: %+v", kind, ev.Payload)
			}
		case <-deadline:
			return
		}
	}
}

type fakeStore struct {
	mu        sync.Mutex
	users     map[int64]*store.User
	rooms     map[int64]*store.Room
	members   map[int64][]int64
	messages  []*store.Message
	nextID    int64
	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[int64]*store.User),
		rooms:   make(map[int64]*store.Room),
		members: make(map[int64][]int64),
	}
}

func (f *fakeStore) addUser(id int64, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = &store.User{ID: id, Username: name}
}

func (f *fakeStore) addRoom(id int64, members ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[id] = &store.Room{ID: id, Name: fmt.Sprintf("room-%d", id), IsGroup: true}
	f.members[id] = members
}

func (f *fakeStore) failCreates(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr = err
}

func (f *fakeStore) CreateMessage(_ context.Context, senderID, roomID int64, body string) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.rooms[roomID]; !ok {
		return nil, fmt.Errorf("room %d: %w", roomID, store.ErrNotFound)
	}
	user, ok := f.users[senderID]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", senderID, store.ErrNotFound)
	}
	f.nextID++
	msg := &store.Message{
		ID:         f.nextID,
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: user.Name(),
		Body:       body,
		CreatedAt:  time.Now().UTC(),
	}
	f.messages = append(f.messages, msg)
	return msg, nil
}

func (f *fakeStore) ListMembers(_ context.Context, roomID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[roomID]; !ok {
		return nil, store.ErrNotFound
	}
	return append([]int64(nil), f.members[roomID]...), nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetRoomByID(_ context.Context, id int64) (*store.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rooms[id]; ok {
		return r, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListMessages(_ context.Context, roomID int64, limit int, _ *int64) ([]*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.Message
	for _, m := range f.messages {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeStore) messageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

var errStoreDown = errors.New("store down")

// testHub starts a hub over a fake store with users 1, 2, 3, 42 and room 7 holding users 1..3.
func testHub(t *testing.T, opts ...Option) (*Hub, *fakeStore) {
	t.Helper()

	st := newFakeStore()
	st.addUser(1, "alice")
	st.addUser(2, "bob")
	st.addUser(3, "carol")
	st.addUser(42, "dave")
	st.addRoom(7, 1, 2, 3)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(st, opts...)
	go hub.Run(ctx)
	return hub, st
}

func connect(t *testing.T, hub *Hub, id string) *Client {
	t.Helper()

	c := NewClient(id, 0)
	hub.RegisterClient(c)
	mustEvent(t, c.Events, EventConnected)
	return c
}

func register(t *testing.T, c *Client, userID int64) {
	t.Helper()

	c.Submit(NewCommand(&RegisterUser{UserID: userID}))
	for {
		ev := mustEvent(t, c.Events, EventUserOnline)
		if ev.Payload.(*UserOnline).UserID == userID {
			return
		}
	}
}

func join(t *testing.T, c *Client, roomID int64) {
	t.Helper()

	c.Submit(NewCommand(&JoinChatroom{RoomID: roomID}))
	ev := mustEvent(t, c.Events, EventJoinConfirmation)
	if got := ev.Payload.(*JoinConfirmation).RoomID; got != roomID {
		t.Fatalf("join confirmation for room %d, want %d", got, roomID)
	}
}
