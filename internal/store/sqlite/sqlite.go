package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/chatroom-server/internal/store"
)

//go:embed schema.sql
var schema string

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// compile-time check to ensure SQLiteStore implements store.Store.
var _ store.Store = (*SQLiteStore)(nil)

// New creates a new SQLite store and applies the bundled schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, ApplySchema)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// ApplySchema creates missing tables and indexes.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func notFound(what string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return fmt.Errorf("query %s: %w", what, err)
}

// ==== UserStore implementation ====

const userColumns = `id, username, display_name, avatar_url, password_hash, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.DisplayName,
		&user.AvatarURL,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, displayName, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, display_name, password_hash)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, displayName, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert user: %w", store.ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound("user", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, username))
	if err != nil {
		return nil, notFound("user", err)
	}
	return user, nil
}

// SearchUsers searches for users by username substring, ordered by username.
func (s *SQLiteStore) SearchUsers(ctx context.Context, query string) ([]*store.User, error) {
	q := `
		SELECT ` + userColumns + `
		FROM users
		WHERE username LIKE ?
		ORDER BY username ASC
		LIMIT 50
	`
	rows, err := s.db.QueryContext(ctx, q, "%"+query+"%")
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	users := make([]*store.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// ==== RoomStore implementation ====

const roomColumns = `r.id, r.name, r.is_group, r.created_by, r.created_at`

func scanRoom(row scanner) (*store.Room, error) {
	var room store.Room
	if err := row.Scan(&room.ID, &room.Name, &room.IsGroup, &room.CreatedBy, &room.CreatedAt); err != nil {
		return nil, err
	}
	return &room, nil
}

// CreateRoom creates a chatroom and adds the creator as its owner.
func (s *SQLiteStore) CreateRoom(ctx context.Context, name string, isGroup bool, createdBy int64) (*store.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO rooms (name, is_group, created_by)
		VALUES (?, ?, ?)
	`, name, isGroup, createdBy)
	if err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	roomID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO room_members (room_id, user_id, role)
		VALUES (?, ?, ?)
	`, roomID, createdBy, store.RoleOwner); err != nil {
		return nil, fmt.Errorf("add owner to members: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.GetRoomByID(ctx, roomID)
}

// GetRoomByID retrieves a room by ID.
func (s *SQLiteStore) GetRoomByID(ctx context.Context, id int64) (*store.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms r WHERE r.id = ?`
	room, err := scanRoom(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound("room", err)
	}
	return room, nil
}

// ListRooms lists rooms the user participates in.
func (s *SQLiteStore) ListRooms(ctx context.Context, userID int64) ([]*store.Room, error) {
	query := `
		SELECT ` + roomColumns + `
		FROM rooms r
		JOIN room_members rm ON r.id = rm.room_id
		WHERE rm.user_id = ?
		ORDER BY r.created_at DESC, r.id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]*store.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

// AddMember adds a user to a room.
func (s *SQLiteStore) AddMember(ctx context.Context, userID, roomID int64, role string) error {
	if role == "" {
		role = store.RoleMember
	}
	query := `
		INSERT OR IGNORE INTO room_members (user_id, room_id, role)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, userID, roomID, role); err != nil {
		return fmt.Errorf("insert room member: %w", err)
	}
	return nil
}

// RemoveMember removes a user from a room.
func (s *SQLiteStore) RemoveMember(ctx context.Context, userID, roomID int64) error {
	query := `
		DELETE FROM room_members
		WHERE user_id = ? AND room_id = ?
	`
	if _, err := s.db.ExecContext(ctx, query, userID, roomID); err != nil {
		return fmt.Errorf("delete room member: %w", err)
	}
	return nil
}

// IsMember checks if user is a member of the room.
func (s *SQLiteStore) IsMember(ctx context.Context, userID, roomID int64) (bool, error) {
	query := `
		SELECT 1 FROM room_members
		WHERE user_id = ? AND room_id = ?
	`
	var exists int
	err := s.db.QueryRowContext(ctx, query, userID, roomID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query membership: %w", err)
	}
	return true, nil
}

// ListMembers lists all members of a room.
func (s *SQLiteStore) ListMembers(ctx context.Context, roomID int64) ([]int64, error) {
	query := `
		SELECT user_id FROM room_members
		WHERE room_id = ?
		ORDER BY joined_at ASC, user_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []int64
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, userID)
	}

	return members, rows.Err()
}

// ListParticipants lists membership rows of a room.
func (s *SQLiteStore) ListParticipants(ctx context.Context, roomID int64) ([]*store.Participant, error) {
	query := `
		SELECT user_id, room_id, role, joined_at FROM room_members
		WHERE room_id = ?
		ORDER BY joined_at ASC, user_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	participants := make([]*store.Participant, 0)
	for rows.Next() {
		var p store.Participant
		if err := rows.Scan(&p.UserID, &p.RoomID, &p.Role, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, &p)
	}

	return participants, rows.Err()
}

// ==== MessageStore implementation ====

// CreateMessage persists a message, resolving the sender's display name.
func (s *SQLiteStore) CreateMessage(ctx context.Context, senderID, roomID int64, body string) (*store.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	var roomExists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE id = ?`, roomID).Scan(&roomExists); err != nil {
		return nil, notFound("room", err)
	}

	var senderName string
	err = tx.QueryRowContext(ctx, `
		SELECT CASE WHEN display_name <> '' THEN display_name ELSE username END
		FROM users WHERE id = ?
	`, senderID).Scan(&senderName)
	if err != nil {
		return nil, notFound("sender", err)
	}

	msg := &store.Message{
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: senderName,
		Body:       body,
		CreatedAt:  time.Now().UTC(),
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO messages (room_id, sender_id, sender_name, body, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, msg.RoomID, msg.SenderID, msg.SenderName, msg.Body, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	msg.ID = id

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return msg, nil
}

const messageColumns = `id, room_id, sender_id, sender_name, body, created_at`

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]*store.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.SenderName, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Queries select newest first; callers get chronological order.
	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, nil
}

// ListMessages retrieves messages from a room with cursor pagination.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID int64, limit int, beforeID *int64) ([]*store.Message, error) {
	if beforeID != nil {
		return s.queryMessages(ctx, `
			SELECT `+messageColumns+`
			FROM messages
			WHERE room_id = ? AND id < ?
			ORDER BY id DESC
			LIMIT ?
		`, roomID, *beforeID, limit)
	}
	return s.queryMessages(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE room_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, roomID, limit)
}

// ListMessagesPage returns one page of messages, page 1 being the newest.
func (s *SQLiteStore) ListMessagesPage(ctx context.Context, roomID int64, page, pageSize int) ([]*store.Message, error) {
	if page < 1 {
		page = 1
	}
	return s.queryMessages(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE room_id = ?
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`, roomID, pageSize, (page-1)*pageSize)
}

// CountMessages returns the number of messages in a room.
func (s *SQLiteStore) CountMessages(ctx context.Context, roomID int64) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE room_id = ?`, roomID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

// ==== FriendStore implementation ====

const friendColumns = `id, user_id, friend_id, status, created_at, updated_at`

func scanFriend(row scanner) (*store.Friend, error) {
	var friend store.Friend
	var status string
	if err := row.Scan(&friend.ID, &friend.UserID, &friend.FriendID, &status, &friend.CreatedAt, &friend.UpdatedAt); err != nil {
		return nil, err
	}
	friend.Status = store.FriendStatus(status)
	return &friend, nil
}

// CreateFriendRequest creates a new friend request (pending status).
func (s *SQLiteStore) CreateFriendRequest(ctx context.Context, userID, friendID int64) (*store.Friend, error) {
	query := `
		INSERT INTO friends (user_id, friend_id, status)
		VALUES (?, ?, 'pending')
	`
	result, err := s.db.ExecContext(ctx, query, userID, friendID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert friend request: %w", store.ErrConflict)
		}
		return nil, fmt.Errorf("insert friend request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	friend, err := scanFriend(s.db.QueryRowContext(ctx, `SELECT `+friendColumns+` FROM friends WHERE id = ?`, id))
	if err != nil {
		return nil, notFound("friend", err)
	}
	return friend, nil
}

// UpdateFriendStatus updates the status of a friendship.
func (s *SQLiteStore) UpdateFriendStatus(ctx context.Context, userID, friendID int64, status store.FriendStatus) error {
	query := `
		UPDATE friends
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND friend_id = ?
	`
	result, err := s.db.ExecContext(ctx, query, string(status), userID, friendID)
	if err != nil {
		return fmt.Errorf("update friend status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("friendship: %w", store.ErrNotFound)
	}
	return nil
}

// GetFriendship retrieves a friendship between two users (in either direction).
func (s *SQLiteStore) GetFriendship(ctx context.Context, userID, friendID int64) (*store.Friend, error) {
	query := `
		SELECT ` + friendColumns + `
		FROM friends
		WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)
	`
	friend, err := scanFriend(s.db.QueryRowContext(ctx, query, userID, friendID, friendID, userID))
	if err != nil {
		return nil, notFound("friendship", err)
	}
	return friend, nil
}

// ListFriends lists friendships for a user, optionally filtered by status.
func (s *SQLiteStore) ListFriends(ctx context.Context, userID int64, status *store.FriendStatus) ([]*store.Friend, error) {
	query := `
		SELECT ` + friendColumns + `
		FROM friends
		WHERE (user_id = ? OR friend_id = ?)
	`
	args := []any{userID, userID}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY updated_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query friends: %w", err)
	}
	defer rows.Close()

	friends := make([]*store.Friend, 0)
	for rows.Next() {
		friend, err := scanFriend(rows)
		if err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		friends = append(friends, friend)
	}

	return friends, rows.Err()
}

// IsFriend checks if two users are friends (accepted status in either direction).
func (s *SQLiteStore) IsFriend(ctx context.Context, userID, friendID int64) (bool, error) {
	query := `
		SELECT 1 FROM friends
		WHERE ((user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?))
		AND status = 'accepted'
	`
	var exists int
	err := s.db.QueryRowContext(ctx, query, userID, friendID, friendID, userID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query friendship: %w", err)
	}
	return true, nil
}

// DeleteFriendship removes a friendship record.
func (s *SQLiteStore) DeleteFriendship(ctx context.Context, userID, friendID int64) error {
	query := `DELETE FROM friends WHERE user_id = ? AND friend_id = ?`
	if _, err := s.db.ExecContext(ctx, query, userID, friendID); err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}
	return nil
}
