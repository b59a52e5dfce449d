package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is wrapped by every lookup that finds no row.
var ErrNotFound = errors.New("not found")

// ErrConflict is wrapped when a unique constraint rejects an insert.
var ErrConflict = errors.New("conflict")

// User represents a user in the system.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	AvatarURL    string
	PasswordHash string
	CreatedAt    time.Time
}

// Name returns the display name, falling back to the username.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// Room represents a chatroom.
type Room struct {
	ID        int64
	Name      string
	IsGroup   bool
	CreatedBy int64
	CreatedAt time.Time
}

// Participant roles.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Participant represents persisted room membership.
type Participant struct {
	UserID   int64
	RoomID   int64
	Role     string
	JoinedAt time.Time
}

// Message represents a persisted chat message.
type Message struct {
	ID         int64
	RoomID     int64
	SenderID   int64
	SenderName string
	Body       string
	CreatedAt  time.Time
}

// FriendStatus defines friend relationship status.
type FriendStatus string

const (
	FriendStatusPending  FriendStatus = "pending"
	FriendStatusAccepted FriendStatus = "accepted"
	FriendStatusBlocked  FriendStatus = "blocked"
)

// Friend represents a friend relationship.
type Friend struct {
	ID        int64
	UserID    int64
	FriendID  int64
	Status    FriendStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, displayName, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SearchUsers searches for users by username.
	SearchUsers(ctx context.Context, query string) ([]*User, error)
}

// RoomStore handles chatroom and participant persistence.
type RoomStore interface {
	// CreateRoom creates a chatroom and adds the creator as its owner.
	CreateRoom(ctx context.Context, name string, isGroup bool, createdBy int64) (*Room, error)

	// GetRoomByID retrieves a room by ID.
	GetRoomByID(ctx context.Context, id int64) (*Room, error)

	// ListRooms lists rooms the user participates in.
	ListRooms(ctx context.Context, userID int64) ([]*Room, error)

	// AddMember adds a user to a room. Adding an existing member is a no-op.
	AddMember(ctx context.Context, userID, roomID int64, role string) error

	// RemoveMember removes a user from a room.
	RemoveMember(ctx context.Context, userID, roomID int64) error

	// IsMember checks if user is a member of the room.
	IsMember(ctx context.Context, userID, roomID int64) (bool, error)

	// ListMembers lists user ids of all members of a room.
	ListMembers(ctx context.Context, roomID int64) ([]int64, error)

	// ListParticipants lists membership rows of a room.
	ListParticipants(ctx context.Context, roomID int64) ([]*Participant, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists a message, assigning its id, timestamp and sender name.
	// Fails with ErrNotFound when the room or the sender does not exist.
	CreateMessage(ctx context.Context, senderID, roomID int64, body string) (*Message, error)

	// ListMessages returns up to limit messages older than beforeID (all when nil),
	// in chronological order.
	ListMessages(ctx context.Context, roomID int64, limit int, beforeID *int64) ([]*Message, error)

	// ListMessagesPage returns one page (1-based, newest page first) in chronological order.
	ListMessagesPage(ctx context.Context, roomID int64, page, pageSize int) ([]*Message, error)

	// CountMessages returns the number of messages in a room.
	CountMessages(ctx context.Context, roomID int64) (int, error)
}

// FriendStore handles friend persistence.
type FriendStore interface {
	// CreateFriendRequest creates a new friend request (pending status).
	CreateFriendRequest(ctx context.Context, userID, friendID int64) (*Friend, error)

	// UpdateFriendStatus updates the status of a friendship.
	UpdateFriendStatus(ctx context.Context, userID, friendID int64, status FriendStatus) error

	// GetFriendship retrieves a friendship between two users (in either direction).
	GetFriendship(ctx context.Context, userID, friendID int64) (*Friend, error)

	// ListFriends lists friendships for a user, optionally filtered by status.
	ListFriends(ctx context.Context, userID int64, status *FriendStatus) ([]*Friend, error)

	// IsFriend checks if two users are friends (accepted status in either direction).
	IsFriend(ctx context.Context, userID, friendID int64) (bool, error)

	// DeleteFriendship removes a friendship record.
	DeleteFriendship(ctx context.Context, userID, friendID int64) error
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	MessageStore
	FriendStore

	// Close closes the underlying database connection.
	Close() error
}
