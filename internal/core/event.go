package core

import "time"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventConnected greets a freshly attached connection.
	EventConnected EventKind = iota
	// EventJoinConfirmation confirms a join to the caller.
	EventJoinConfirmation
	// EventLeaveConfirmation confirms a leave to the caller.
	EventLeaveConfirmation
	// EventUserJoinedChatroom tells room members that someone joined.
	EventUserJoinedChatroom
	// EventUserLeftChatroom tells room members that someone left or disconnected.
	EventUserLeftChatroom
	// EventReceiveMessage delivers a persisted chat message.
	EventReceiveMessage
	// EventMessageSent acknowledges a SendMessage to its sender.
	EventMessageSent
	// EventUserTyping and EventUserStoppedTyping carry typing indicators.
	EventUserTyping
	EventUserStoppedTyping
	// EventMessageRead carries a read receipt.
	EventMessageRead
	// EventUserOnline and EventUserOffline are global presence broadcasts.
	EventUserOnline
	EventUserOffline
	// EventReceiveError reports a failed operation to the caller only.
	EventReceiveError
	// EventPong answers a Ping.
	EventPong
	// EventHistory delivers recent messages to a client upon joining a room.
	EventHistory
	// EventChatroomNotification is a server-side announcement to a room.
	EventChatroomNotification
)

var eventNames = [...]string{
	EventConnected:            "Connected",
	EventJoinConfirmation:     "JoinConfirmation",
	EventLeaveConfirmation:    "LeaveConfirmation",
	EventUserJoinedChatroom:   "UserJoinedChatroom",
	EventUserLeftChatroom:     "UserLeftChatroom",
	EventReceiveMessage:       "ReceiveMessage",
	EventMessageSent:          "MessageSent",
	EventUserTyping:           "UserTyping",
	EventUserStoppedTyping:    "UserStoppedTyping",
	EventMessageRead:          "MessageRead",
	EventUserOnline:           "UserOnline",
	EventUserOffline:          "UserOffline",
	EventReceiveError:         "ReceiveError",
	EventPong:                 "Pong",
	EventHistory:              "History",
	EventChatroomNotification: "ChatroomNotification",
}

// String returns the wire name of the event.
func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventNames) {
		return "Unknown"
	}
	return eventNames[k]
}

// Payload is implemented by every event payload type.
type Payload interface {
	eventKind() EventKind
}

// Event is sent to clients to describe what happened in the system.
// Payload's concrete type always matches Kind.
type Event struct {
	Kind    EventKind
	Payload Payload
}

// NewEvent wraps p in an Event of the matching kind.
func NewEvent(p Payload) *Event {
	return &Event{Kind: p.eventKind(), Payload: p}
}

// Reasons carried by UserLeftChatroom.
const (
	ReasonLeft         = "Left"
	ReasonDisconnected = "Disconnected"
)

// MessageSent statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

type Connected struct {
	ConnectionID string
	ConnectedAt  time.Time
}

type JoinConfirmation struct {
	RoomID   int64
	JoinedAt time.Time
}

type LeaveConfirmation struct {
	RoomID int64
	LeftAt time.Time
}

type UserJoinedChatroom struct {
	UserID   int64
	Username string
	RoomID   int64
	JoinedAt time.Time
}

type UserLeftChatroom struct {
	UserID int64
	RoomID int64
	LeftAt time.Time
	Reason string
}

type ReceiveMessage struct {
	MessageID  int64
	SenderID   int64
	SenderName string
	RoomID     int64
	Content    string
	CreatedAt  time.Time
}

type MessageSent struct {
	MessageID int64
	Status    string
}

type UserTyping struct {
	SenderID   int64
	RoomID     int64
	SenderName string
	Timestamp  time.Time
}

type UserStoppedTyping struct {
	SenderID  int64
	RoomID    int64
	Timestamp time.Time
}

type MessageRead struct {
	MessageID int64
	ReadBy    int64
	RoomID    int64
	ReadAt    time.Time
}

type UserOnline struct {
	UserID int64
}

type UserOffline struct {
	UserID int64
}

// ReceiveError is the caller-only failure report.
type ReceiveError struct {
	Code    string
	Message string
	Details string
}

type Pong struct {
	Timestamp time.Time
}

// History holds recent messages in chronological order.
type History struct {
	RoomID   int64
	Messages []ReceiveMessage
}

type ChatroomNotification struct {
	RoomID  int64
	Message string
	SentBy  int64
	SentAt  time.Time
}

func (*Connected) eventKind() EventKind            { return EventConnected }
func (*JoinConfirmation) eventKind() EventKind     { return EventJoinConfirmation }
func (*LeaveConfirmation) eventKind() EventKind    { return EventLeaveConfirmation }
func (*UserJoinedChatroom) eventKind() EventKind   { return EventUserJoinedChatroom }
func (*UserLeftChatroom) eventKind() EventKind     { return EventUserLeftChatroom }
func (*ReceiveMessage) eventKind() EventKind       { return EventReceiveMessage }
func (*MessageSent) eventKind() EventKind          { return EventMessageSent }
func (*UserTyping) eventKind() EventKind           { return EventUserTyping }
func (*UserStoppedTyping) eventKind() EventKind    { return EventUserStoppedTyping }
func (*MessageRead) eventKind() EventKind          { return EventMessageRead }
func (*UserOnline) eventKind() EventKind           { return EventUserOnline }
func (*UserOffline) eventKind() EventKind          { return EventUserOffline }
func (*ReceiveError) eventKind() EventKind         { return EventReceiveError }
func (*Pong) eventKind() EventKind                 { return EventPong }
func (*History) eventKind() EventKind              { return EventHistory }
func (*ChatroomNotification) eventKind() EventKind { return EventChatroomNotification }
