package http

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/chatroom-server/internal/config"
	"github.com/vovakirdan/chatroom-server/internal/core"
	"github.com/vovakirdan/chatroom-server/internal/proto"
)

func TestWebSocketChatFlow(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, aliceID := env.registerUser(t, "alice")
	bobToken, bobID := env.registerUser(t, "bob")
	roomID := env.createRoom(t, "general", aliceID, bobID)

	alice := env.dial(t, aliceToken)
	connected := expectEvent[proto.EventConnected](t, alice, "Connected")
	if connected.ConnectionID == "" || connected.ConnectedAt == "" {
		t.Fatalf("unexpected Connected payload: %+v", connected)
	}
	expectEvent[proto.EventUserStatus](t, alice, "UserOnline")

	bob := env.dial(t, bobToken)
	expectEvent[proto.EventUserStatus](t, bob, "UserOnline")
	if online := expectEvent[proto.EventUserStatus](t, alice, "UserOnline"); online.UserID != bobID {
		t.Fatalf("alice expected bob online, got %+v", online)
	}

	send(t, alice, proto.InboundJoinChatroom, map[string]any{"roomId": roomID})
	if confirm := expectEvent[proto.EventJoinConfirmation](t, alice, "JoinConfirmation"); confirm.RoomID != roomID {
		t.Fatalf("unexpected confirmation: %+v", confirm)
	}

	send(t, bob, proto.InboundJoinChatroom, map[string]any{"roomId": roomID})
	expectEvent[proto.EventJoinConfirmation](t, bob, "JoinConfirmation")
	joined := expectEvent[proto.EventUserJoinedChatroom](t, alice, "UserJoinedChatroom")
	if joined.UserID != bobID || joined.Username != "bob" || joined.RoomID != roomID {
		t.Fatalf("unexpected join notification: %+v", joined)
	}

	// Ids may arrive as numeric strings.
	send(t, bob, proto.InboundSendMessage, map[string]any{
		"senderId": strconv.FormatInt(bobID, 10),
		"roomId":   roomID,
		"content":  "hello alice",
	})
	msg := expectEvent[proto.EventReceiveMessage](t, alice, "ReceiveMessage")
	if msg.SenderID != bobID || msg.SenderName != "bob" || msg.Content != "hello alice" || msg.MessageID == 0 {
		t.Fatalf("unexpected message: %+v", msg)
	}
	ack := expectEvent[proto.EventMessageSent](t, bob, "MessageSent")
	if ack.Status != core.StatusSuccess || ack.MessageID != msg.MessageID {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	send(t, alice, proto.InboundSendTyping, map[string]any{"senderId": aliceID, "roomId": roomID})
	if typing := expectEvent[proto.EventUserTyping](t, bob, "UserTyping"); typing.SenderID != aliceID {
		t.Fatalf("unexpected typing: %+v", typing)
	}

	send(t, alice, proto.InboundMarkMessageAsRead, map[string]any{"messageId": msg.MessageID, "userId": aliceID, "roomId": roomID})
	if read := expectEvent[proto.EventMessageRead](t, bob, "MessageRead"); read.ReadBy != aliceID || read.MessageID != msg.MessageID {
		t.Fatalf("unexpected read receipt: %+v", read)
	}

	_ = bob.Close(websocket.StatusNormalClosure, "bye")

	left := expectEvent[proto.EventUserLeftChatroom](t, alice, "UserLeftChatroom")
	if left.UserID != bobID || left.Reason != core.ReasonDisconnected {
		t.Fatalf("unexpected leave: %+v", left)
	}
	if offline := expectEvent[proto.EventUserStatus](t, alice, "UserOffline"); offline.UserID != bobID {
		t.Fatalf("unexpected offline: %+v", offline)
	}
}

func TestWebSocketHistoryOnJoin(t *testing.T) {
	env := newTestEnv(t)
	token, uid := env.registerUser(t, "reader")
	roomID := env.createRoom(t, "archive", uid)
	for _, body := range []string{"first", "second"} {
		if _, err := env.store.CreateMessage(t.Context(), uid, roomID, body); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	conn := env.dial(t, token)
	send(t, conn, proto.InboundJoinChatroom, map[string]any{"roomId": roomID})
	history := expectEvent[proto.EventHistory](t, conn, "History")
	if history.RoomID != roomID || len(history.Messages) != 2 || history.Messages[0].Content != "first" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestWebSocketValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "")
	expectEvent[proto.EventConnected](t, conn, "Connected")

	tests := []struct {
		name     string
		typ      string
		data     any
		wantCode string
	}{
		{"non-numeric room id", proto.InboundJoinChatroom, map[string]any{"roomId": "lobby"}, core.ErrCodeBadRequest},
		{"missing room id", proto.InboundLeaveChatroom, map[string]any{}, core.ErrCodeBadRequest},
		{"unknown type", "Shout", map[string]any{}, core.ErrCodeUnknownType},
		{"send before register", proto.InboundSendMessage, map[string]any{"senderId": 1, "roomId": 1, "content": "hi"}, core.ErrCodeNotRegistered},
		{"unknown user", proto.InboundRegisterUser, map[string]any{"userId": 404}, core.ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			send(t, conn, tt.typ, tt.data)
			got := expectEvent[proto.EventReceiveError](t, conn, "ReceiveError")
			if got.Code != tt.wantCode {
				t.Fatalf("expected %s, got %+v", tt.wantCode, got)
			}
		})
	}

	// The connection survives every rejected message.
	send(t, conn, proto.InboundPing, nil)
	if pong := expectEvent[proto.EventPong](t, conn, "Pong"); pong.Timestamp == "" {
		t.Fatal("empty pong timestamp")
	}
}

func TestWebSocketMalformedJSON(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got := expectEvent[proto.EventReceiveError](t, conn, "ReceiveError"); got.Code != core.ErrCodeBadRequest {
		t.Fatalf("expected bad_request, got %+v", got)
	}
}

func TestWebSocketRateLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.MaxMessagesPerMinute = 2 })
	conn := env.dial(t, "")

	for range 3 {
		send(t, conn, proto.InboundPing, nil)
	}
	if got := expectEvent[proto.EventReceiveError](t, conn, "ReceiveError"); got.Code != core.ErrCodeRateLimited {
		t.Fatalf("expected rate_limited, got %+v", got)
	}
}

func TestWebSocketTokenAuth(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, aliceID := env.registerUser(t, "alice")
	_, bobID := env.registerUser(t, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, env.wsURL("invalid"), nil)
	if err == nil {
		t.Fatal("expected dial with invalid token to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}

	conn := env.dial(t, aliceToken)
	if online := expectEvent[proto.EventUserStatus](t, conn, "UserOnline"); online.UserID != aliceID {
		t.Fatalf("token should register alice, got %+v", online)
	}

	// A token-authenticated connection cannot switch identity.
	send(t, conn, proto.InboundRegisterUser, map[string]any{"userId": bobID})
	if got := expectEvent[proto.EventReceiveError](t, conn, "ReceiveError"); got.Code != core.ErrCodeUnauthorized {
		t.Fatalf("expected unauthorized, got %+v", got)
	}
	if !env.hub.Registry().IsUserOnline(aliceID) || env.hub.Registry().IsUserOnline(bobID) {
		t.Fatal("registry should still map the connection to alice")
	}
}
