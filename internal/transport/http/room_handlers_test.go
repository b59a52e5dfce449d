package http

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/chatroom-server/internal/presence"
	"github.com/vovakirdan/chatroom-server/internal/proto"
)

func roomPath(id int64, suffix string) string {
	return "/api/chatrooms/" + strconv.FormatInt(id, 10) + suffix
}

func TestCreateRoom(t *testing.T) {
	env := newTestEnv(t)
	token, uid := env.registerUser(t, "testuser")
	_, otherID := env.registerUser(t, "other")

	resp := env.do(t, http.MethodPost, "/api/chatrooms", token, map[string]any{
		"name":    "my-test-room",
		"members": []int64{otherID},
	})
	requireStatus(t, resp, http.StatusCreated)

	room := decodeBody[RoomResponse](t, resp)
	if room.Name != "my-test-room" || !room.IsGroup || room.CreatedBy != uid {
		t.Errorf("unexpected room: %+v", room)
	}

	members, err := env.store.ListMembers(t.Context(), room.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("expected owner and initial member, got %v", members)
	}

	// Without token
	resp = env.do(t, http.MethodPost, "/api/chatrooms", "", map[string]any{"name": "should-fail"})
	requireStatus(t, resp, http.StatusUnauthorized)

	// Missing name
	resp = env.do(t, http.MethodPost, "/api/chatrooms", token, map[string]any{})
	requireStatus(t, resp, http.StatusBadRequest)
}

func TestListRooms(t *testing.T) {
	env := newTestEnv(t)
	token, uid := env.registerUser(t, "testuser")
	_, otherID := env.registerUser(t, "other")

	env.createRoom(t, "room1", uid)
	env.createRoom(t, "room2", otherID, uid)
	env.createRoom(t, "not-mine", otherID)

	resp := env.do(t, http.MethodGet, "/api/chatrooms", token, nil)
	requireStatus(t, resp, http.StatusOK)

	rooms := decodeBody[[]RoomResponse](t, resp)
	names := make(map[string]bool)
	for _, room := range rooms {
		names[room.Name] = true
	}
	if len(rooms) != 2 || !names["room1"] || !names["room2"] {
		t.Errorf("expected room1 and room2, got %+v", rooms)
	}

	resp = env.do(t, http.MethodGet, "/api/chatrooms", "", nil)
	requireStatus(t, resp, http.StatusUnauthorized)
}

func TestGetRoomRequiresMembership(t *testing.T) {
	env := newTestEnv(t)
	_, ownerID := env.registerUser(t, "owner")
	outsiderToken, _ := env.registerUser(t, "outsider")
	roomID := env.createRoom(t, "private", ownerID)

	requireStatus(t, env.do(t, http.MethodGet, roomPath(roomID, ""), outsiderToken, nil), http.StatusForbidden)
	requireStatus(t, env.do(t, http.MethodGet, roomPath(9999, ""), outsiderToken, nil), http.StatusNotFound)
	requireStatus(t, env.do(t, http.MethodGet, "/api/chatrooms/abc", outsiderToken, nil), http.StatusBadRequest)
}

func TestListMessagesPaging(t *testing.T) {
	env := newTestEnv(t)
	token, uid := env.registerUser(t, "writer")
	roomID := env.createRoom(t, "history", uid)

	for i := range 5 {
		if _, err := env.store.CreateMessage(t.Context(), uid, roomID, "msg-"+strconv.Itoa(i)); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	resp := env.do(t, http.MethodGet, roomPath(roomID, "/messages?page=1&page_size=2"), token, nil)
	requireStatus(t, resp, http.StatusOK)
	page := decodeBody[MessagePageResponse](t, resp)
	if page.Total != 5 || len(page.Messages) != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Messages[0].Content != "msg-3" || page.Messages[1].Content != "msg-4" {
		t.Errorf("first page should hold the newest messages in order, got %+v", page.Messages)
	}
	if page.Messages[0].SenderName != "writer" {
		t.Errorf("sender name not stored: %+v", page.Messages[0])
	}

	resp = env.do(t, http.MethodGet, roomPath(roomID, "/messages?page=3&page_size=2"), token, nil)
	requireStatus(t, resp, http.StatusOK)
	page = decodeBody[MessagePageResponse](t, resp)
	if len(page.Messages) != 1 || page.Messages[0].Content != "msg-0" {
		t.Errorf("last page should hold the oldest message, got %+v", page.Messages)
	}

	requireStatus(t, env.do(t, http.MethodGet, roomPath(roomID, "/messages?page=0"), token, nil), http.StatusBadRequest)
}

func TestMembersAndOnline(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, ownerID := env.registerUser(t, "owner")
	memberToken, memberID := env.registerUser(t, "member")
	_, strangerID := env.registerUser(t, "stranger")
	roomID := env.createRoom(t, "team", ownerID)

	resp := env.do(t, http.MethodPost, roomPath(roomID, "/members"), ownerToken, map[string]any{"user_id": memberID})
	requireStatus(t, resp, http.StatusCreated)
	requireStatus(t, env.do(t, http.MethodPost, roomPath(roomID, "/members"), ownerToken, map[string]any{"user_id": 9999}),
		http.StatusNotFound)

	// The member connects and joins the room live.
	conn := env.dial(t, memberToken)
	expectEvent[proto.EventUserStatus](t, conn, "UserOnline")
	send(t, conn, proto.InboundJoinChatroom, map[string]any{"roomId": roomID})
	expectEvent[proto.EventJoinConfirmation](t, conn, "JoinConfirmation")

	resp = env.do(t, http.MethodGet, roomPath(roomID, "/members"), ownerToken, nil)
	requireStatus(t, resp, http.StatusOK)
	members := decodeBody[[]MemberResponse](t, resp)
	online := make(map[int64]bool)
	for _, m := range members {
		online[m.UserID] = m.Online
	}
	if len(members) != 2 || online[ownerID] || !online[memberID] {
		t.Errorf("unexpected members: %+v", members)
	}

	resp = env.do(t, http.MethodGet, roomPath(roomID, "/online"), ownerToken, nil)
	requireStatus(t, resp, http.StatusOK)
	body := decodeBody[struct {
		UserIDs []int64 `json:"user_ids"`
	}](t, resp)
	if len(body.UserIDs) != 1 || body.UserIDs[0] != memberID {
		t.Errorf("expected only the member online in room, got %v", body.UserIDs)
	}

	// Only the owner may remove someone else.
	requireStatus(t, env.do(t, http.MethodDelete, roomPath(roomID, "/members/"+strconv.FormatInt(ownerID, 10)), memberToken, nil),
		http.StatusForbidden)
	requireStatus(t, env.do(t, http.MethodDelete, roomPath(roomID, "/members/"+strconv.FormatInt(strangerID, 10)), ownerToken, nil),
		http.StatusNoContent)
	requireStatus(t, env.do(t, http.MethodDelete, roomPath(roomID, "/members/"+strconv.FormatInt(memberID, 10)), memberToken, nil),
		http.StatusNoContent)
}

func TestBroadcastReachesRoom(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, ownerID := env.registerUser(t, "owner")
	listenerToken, listenerID := env.registerUser(t, "listener")
	roomID := env.createRoom(t, "news", ownerID, listenerID)

	conn := env.dial(t, listenerToken)
	expectEvent[proto.EventUserStatus](t, conn, "UserOnline")
	send(t, conn, proto.InboundJoinChatroom, map[string]any{"roomId": roomID})
	expectEvent[proto.EventJoinConfirmation](t, conn, "JoinConfirmation")

	resp := env.do(t, http.MethodPost, roomPath(roomID, "/broadcast"), ownerToken, map[string]any{"message": "maintenance at noon"})
	requireStatus(t, resp, http.StatusAccepted)
	if got := decodeBody[map[string]int](t, resp)["delivered"]; got != 1 {
		t.Errorf("expected 1 delivery, got %d", got)
	}

	note := expectEvent[proto.EventChatroomNotification](t, conn, "ChatroomNotification")
	if note.RoomID != roomID || note.Message != "maintenance at noon" || note.SentBy != ownerID {
		t.Errorf("unexpected notification: %+v", note)
	}
}

func TestPresenceEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token, uid := env.registerUser(t, "watcher")
	onlineToken, onlineID := env.registerUser(t, "online")

	conn := env.dial(t, onlineToken)
	expectEvent[proto.EventUserStatus](t, conn, "UserOnline")

	resp := env.do(t, http.MethodGet, "/api/presence", token, nil)
	requireStatus(t, resp, http.StatusOK)
	overview := decodeBody[PresenceResponse](t, resp)
	if overview.OnlineUsers != 1 || overview.Connections != 1 || len(overview.UserIDs) != 1 || overview.UserIDs[0] != onlineID {
		t.Errorf("unexpected overview: %+v", overview)
	}

	resp = env.do(t, http.MethodGet, "/api/presence/users/"+strconv.FormatInt(uid, 10), token, nil)
	requireStatus(t, resp, http.StatusOK)
	if status := decodeBody[presence.UserStatus](t, resp); status.Online {
		t.Errorf("watcher has no connection, got %+v", status)
	}

	resp = env.do(t, http.MethodGet, "/api/users/"+strconv.FormatInt(onlineID, 10), token, nil)
	requireStatus(t, resp, http.StatusOK)
	user := decodeBody[UserResponse](t, resp)
	if user.Online == nil || !*user.Online {
		t.Errorf("expected online user, got %+v", user)
	}

	// Disconnecting flips the flag once cleanup runs.
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Registry().IsUserOnline(onlineID) {
		if time.Now().After(deadline) {
			t.Fatal("user still online after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if env.hub.Tracker().Stats() != (presence.Stats{}) {
		t.Errorf("expected empty registry, got %+v", env.hub.Tracker().Stats())
	}
}
