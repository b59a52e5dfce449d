// Package storetest holds behavior every store.Store implementation must share.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/vovakirdan/chatroom-server/internal/store"
)

// Opener returns an empty store. It registers its own cleanup on t.
type Opener func(t *testing.T) store.Store

// Run runs every contract case as a subtest, each against a fresh store.
func Run(t *testing.T, open Opener) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"SearchUsers", testSearchUsers},
		{"CreateUserDuplicateIsConflict", testCreateUserDuplicateIsConflict},
		{"CreateRoomAddsOwner", testCreateRoomAddsOwner},
		{"Members", testMembers},
		{"CreateMessage", testCreateMessage},
		{"ListMessagesPagination", testListMessagesPagination},
		{"FriendRequestLifecycle", testFriendRequestLifecycle},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, open(t))
		})
	}
}

func mustUser(t *testing.T, s store.Store, username, displayName string) *store.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), username, displayName, "hash")
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func mustRoom(t *testing.T, s store.Store, name string, owner int64) *store.Room {
	t.Helper()
	r, err := s.CreateRoom(context.Background(), name, true, owner)
	if err != nil {
		t.Fatalf("create room %s: %v", name, err)
	}
	return r
}

func testSearchUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, u := range []string{"alice", "alex", "alan", "bob", "charlie"} {
		mustUser(t, s, u, "")
	}

	tests := []struct {
		query    string
		expected []string
	}{
		{query: "al", expected: []string{"alan", "alex", "alice"}},
		{query: "li", expected: []string{"alice", "charlie"}},
		{query: "z", expected: []string{}},
		{query: "Bob", expected: []string{"bob"}},
	}

	for _, tt := range tests {
		results, err := s.SearchUsers(ctx, tt.query)
		if err != nil {
			t.Fatalf("SearchUsers(%q): %v", tt.query, err)
		}
		if len(results) != len(tt.expected) {
			t.Fatalf("SearchUsers(%q): expected %d results, got %d", tt.query, len(tt.expected), len(results))
		}
		for i, u := range results {
			if u.Username != tt.expected[i] {
				t.Errorf("SearchUsers(%q): expected %s at index %d, got %s", tt.query, tt.expected[i], i, u.Username)
			}
		}
	}
}

func testCreateUserDuplicateIsConflict(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustUser(t, s, "alice", "Alice")

	if _, err := s.CreateUser(ctx, "alice", "Other", "hash"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := s.GetUserByUsername(ctx, "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testCreateRoomAddsOwner(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := mustUser(t, s, "owner", "")
	room := mustRoom(t, s, "general", owner.ID)

	if room.Name != "general" || !room.IsGroup || room.CreatedBy != owner.ID {
		t.Fatalf("unexpected room: %+v", room)
	}

	participants, err := s.ListParticipants(ctx, room.ID)
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	if len(participants) != 1 || participants[0].UserID != owner.ID || participants[0].Role != store.RoleOwner {
		t.Fatalf("expected owner participant, got %+v", participants)
	}

	rooms, err := s.ListRooms(ctx, owner.ID)
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(rooms) != 1 || rooms[0].ID != room.ID {
		t.Fatalf("expected room in owner's list, got %+v", rooms)
	}

	if _, err := s.GetRoomByID(ctx, room.ID+100); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testMembers(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := mustUser(t, s, "owner", "")
	guest := mustUser(t, s, "guest", "")
	room := mustRoom(t, s, "general", owner.ID)

	for range 2 {
		if err := s.AddMember(ctx, guest.ID, room.ID, store.RoleMember); err != nil {
			t.Fatalf("add member: %v", err)
		}
	}

	members, err := s.ListMembers(ctx, room.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected owner and guest once each, got %v", members)
	}

	if err := s.RemoveMember(ctx, guest.ID, room.ID); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	if ok, _ := s.IsMember(ctx, guest.ID, room.ID); ok {
		t.Fatal("guest must no longer be a member")
	}
}

func testCreateMessage(t *testing.T, s store.Store) {
	ctx := context.Background()
	sender := mustUser(t, s, "alice", "Alice A.")
	room := mustRoom(t, s, "general", sender.ID)

	msg, err := s.CreateMessage(ctx, sender.ID, room.ID, "hello")
	if err != nil {
		t.Fatalf("create message: %v", err)
	}
	if msg.ID == 0 || msg.SenderName != "Alice A." || msg.Body != "hello" || msg.CreatedAt.IsZero() {
		t.Fatalf("unexpected message: %+v", msg)
	}

	if _, err := s.CreateMessage(ctx, sender.ID, room.ID+1, "lost"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing room, got %v", err)
	}
	if _, err := s.CreateMessage(ctx, sender.ID+1, room.ID, "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing sender, got %v", err)
	}

	count, err := s.CountMessages(ctx, room.ID)
	if err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 message, got %d", count)
	}
}

func testListMessagesPagination(t *testing.T, s store.Store) {
	ctx := context.Background()
	sender := mustUser(t, s, "alice", "")
	room := mustRoom(t, s, "general", sender.ID)

	for i := 1; i <= 5; i++ {
		if _, err := s.CreateMessage(ctx, sender.ID, room.ID, fmt.Sprintf("m%d", i)); err != nil {
			t.Fatalf("create message %d: %v", i, err)
		}
	}

	page1, err := s.ListMessagesPage(ctx, room.ID, 1, 2)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if got := bodies(page1); len(got) != 2 || got[0] != "m4" || got[1] != "m5" {
		t.Fatalf("unexpected page 1: %v", got)
	}

	page3, err := s.ListMessagesPage(ctx, room.ID, 3, 2)
	if err != nil {
		t.Fatalf("page 3: %v", err)
	}
	if got := bodies(page3); len(got) != 1 || got[0] != "m1" {
		t.Fatalf("unexpected page 3: %v", got)
	}

	before := page1[0].ID
	older, err := s.ListMessages(ctx, room.ID, 10, &before)
	if err != nil {
		t.Fatalf("list before: %v", err)
	}
	if got := bodies(older); len(got) != 3 || got[0] != "m1" || got[2] != "m3" {
		t.Fatalf("unexpected older messages: %v", got)
	}
}

func testFriendRequestLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustUser(t, s, "alice", "")
	bob := mustUser(t, s, "bob", "")

	req, err := s.CreateFriendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if req.Status != store.FriendStatusPending {
		t.Fatalf("expected pending, got %s", req.Status)
	}
	if _, err := s.CreateFriendRequest(ctx, alice.ID, bob.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for a duplicate request, got %v", err)
	}

	if ok, _ := s.IsFriend(ctx, bob.ID, alice.ID); ok {
		t.Fatal("pending request must not count as friendship")
	}

	if err := s.UpdateFriendStatus(ctx, alice.ID, bob.ID, store.FriendStatusAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if ok, _ := s.IsFriend(ctx, bob.ID, alice.ID); !ok {
		t.Fatal("expected friendship in reverse direction")
	}

	status := store.FriendStatusAccepted
	list, err := s.ListFriends(ctx, bob.ID, &status)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one accepted friendship for bob, got %v (%v)", list, err)
	}

	if err := s.UpdateFriendStatus(ctx, bob.ID, alice.ID, store.FriendStatusBlocked); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong direction, got %v", err)
	}

	if err := s.DeleteFriendship(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetFriendship(ctx, alice.ID, bob.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func bodies(msgs []*store.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Body)
	}
	return out
}
