package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandRegisterUser binds the connection to a user.
	CommandRegisterUser CommandKind = iota
	// CommandJoinChatroom subscribes the connection to a room.
	CommandJoinChatroom
	// CommandLeaveChatroom unsubscribes the connection from a room.
	CommandLeaveChatroom
	// CommandSendMessage persists a message and delivers it to the room.
	CommandSendMessage
	// CommandSendTyping and CommandStopTyping relay typing indicators.
	CommandSendTyping
	CommandStopTyping
	// CommandMarkMessageAsRead relays a read receipt.
	CommandMarkMessageAsRead
	// CommandPing asks for a Pong.
	CommandPing
)

var commandNames = [...]string{
	CommandRegisterUser:      "RegisterUser",
	CommandJoinChatroom:      "JoinChatroom",
	CommandLeaveChatroom:     "LeaveChatroom",
	CommandSendMessage:       "SendMessage",
	CommandSendTyping:        "SendTyping",
	CommandStopTyping:        "StopTyping",
	CommandMarkMessageAsRead: "MarkMessageAsRead",
	CommandPing:              "Ping",
}

func (k CommandKind) String() string {
	if k < 0 || int(k) >= len(commandNames) {
		return "Unknown"
	}
	return commandNames[k]
}

// Request is implemented by every typed command payload.
type Request interface {
	commandKind() CommandKind
}

// Command represents an action requested by a client.
type Command struct {
	Kind    CommandKind
	Request Request
}

// NewCommand wraps r in a Command of the matching kind.
func NewCommand(r Request) *Command {
	return &Command{Kind: r.commandKind(), Request: r}
}

type RegisterUser struct {
	UserID int64
}

// JoinChatroom joins RoomID. UserID is optional and only used before registration.
type JoinChatroom struct {
	RoomID int64
	UserID int64
}

type LeaveChatroom struct {
	RoomID int64
	UserID int64
}

type SendMessage struct {
	SenderID int64
	RoomID   int64
	Content  string
}

type SendTyping struct {
	SenderID   int64
	RoomID     int64
	SenderName string
}

type StopTyping struct {
	SenderID int64
	RoomID   int64
}

type MarkMessageAsRead struct {
	MessageID int64
	UserID    int64
	RoomID    int64
}

type Ping struct{}

func (*RegisterUser) commandKind() CommandKind      { return CommandRegisterUser }
func (*JoinChatroom) commandKind() CommandKind      { return CommandJoinChatroom }
func (*LeaveChatroom) commandKind() CommandKind     { return CommandLeaveChatroom }
func (*SendMessage) commandKind() CommandKind       { return CommandSendMessage }
func (*SendTyping) commandKind() CommandKind        { return CommandSendTyping }
func (*StopTyping) commandKind() CommandKind        { return CommandStopTyping }
func (*MarkMessageAsRead) commandKind() CommandKind { return CommandMarkMessageAsRead }
func (*Ping) commandKind() CommandKind              { return CommandPing }
