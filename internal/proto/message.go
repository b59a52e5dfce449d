package proto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Operation names accepted in Inbound.Type.
const (
	InboundRegisterUser      = "RegisterUser"
	InboundJoinChatroom      = "JoinChatroom"
	InboundLeaveChatroom     = "LeaveChatroom"
	InboundSendMessage       = "SendMessage"
	InboundSendTyping        = "SendTyping"
	InboundStopTyping        = "StopTyping"
	InboundMarkMessageAsRead = "MarkMessageAsRead"
	InboundPing              = "Ping"
)

// OutboundTypeEvent is the envelope type of every server message.
const OutboundTypeEvent = "event"

// ID is a numeric identifier that accepts both JSON numbers and numeric strings.
type ID int64

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*id = 0
			return nil
		}
		b = []byte(s)
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", string(b))
	}
	*id = ID(v)
	return nil
}

// RegisterUserData binds the connection to a user.
type RegisterUserData struct {
	UserID ID `json:"userId"`
}

// RoomData is used by JoinChatroom and LeaveChatroom.
type RoomData struct {
	RoomID ID `json:"roomId"`
	UserID ID `json:"userId,omitempty"`
}

// SendMessageData is a chat message from the client.
type SendMessageData struct {
	SenderID ID     `json:"senderId"`
	RoomID   ID     `json:"roomId"`
	Content  string `json:"content"`
}

// TypingData is used by SendTyping and StopTyping.
type TypingData struct {
	SenderID   ID     `json:"senderId"`
	RoomID     ID     `json:"roomId"`
	SenderName string `json:"senderName,omitempty"`
}

// MarkReadData is a read receipt from the client.
type MarkReadData struct {
	MessageID ID `json:"messageId"`
	UserID    ID `json:"userId"`
	RoomID    ID `json:"roomId"`
}

// Outbound is the envelope for messages sent to the client.
// Failures are ordinary ReceiveError events.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Timestamps are RFC 3339 strings in UTC.

type EventConnected struct {
	ConnectionID string `json:"connectionId"`
	ConnectedAt  string `json:"connectedAt"`
}

type EventJoinConfirmation struct {
	RoomID   int64  `json:"roomId"`
	JoinedAt string `json:"joinedAt"`
}

type EventLeaveConfirmation struct {
	RoomID int64  `json:"roomId"`
	LeftAt string `json:"leftAt"`
}

type EventUserJoinedChatroom struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	RoomID   int64  `json:"roomId"`
	JoinedAt string `json:"joinedAt"`
}

type EventUserLeftChatroom struct {
	UserID int64  `json:"userId"`
	RoomID int64  `json:"roomId"`
	LeftAt string `json:"leftAt"`
	Reason string `json:"reason"`
}

type EventReceiveMessage struct {
	MessageID  int64  `json:"messageId"`
	SenderID   int64  `json:"senderId"`
	SenderName string `json:"senderName"`
	RoomID     int64  `json:"roomId"`
	Content    string `json:"content"`
	CreatedAt  string `json:"createdAt"`
}

type EventMessageSent struct {
	MessageID int64  `json:"messageId"`
	Status    string `json:"status"`
}

type EventUserTyping struct {
	SenderID   int64  `json:"senderId"`
	RoomID     int64  `json:"roomId"`
	SenderName string `json:"senderName"`
	Timestamp  string `json:"timestamp"`
}

type EventUserStoppedTyping struct {
	SenderID  int64  `json:"senderId"`
	RoomID    int64  `json:"roomId"`
	Timestamp string `json:"timestamp"`
}

type EventMessageRead struct {
	MessageID int64  `json:"messageId"`
	ReadBy    int64  `json:"readBy"`
	RoomID    int64  `json:"roomId"`
	ReadAt    string `json:"readAt"`
}

type EventUserStatus struct {
	UserID int64 `json:"userId"`
}

type EventReceiveError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type EventPong struct {
	Timestamp string `json:"timestamp"`
}

type EventHistory struct {
	RoomID   int64                 `json:"roomId"`
	Messages []EventReceiveMessage `json:"messages"`
}

type EventChatroomNotification struct {
	RoomID  int64  `json:"roomId"`
	Message string `json:"message"`
	SentBy  int64  `json:"sentBy"`
	SentAt  string `json:"sentAt"`
}
