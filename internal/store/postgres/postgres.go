// Package postgres implements store.Store on PostgreSQL through the pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vovakirdan/chatroom-server/internal/store"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

// PostgresStore implements store.Store for PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var _ store.Store = (*PostgresStore)(nil)

// New opens a pool for dsn and applies the bundled schema.
func New(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func notFound(what string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return fmt.Errorf("query %s: %w", what, err)
}

type scanner interface {
	Scan(dest ...any) error
}

// ==== UserStore ====

const userColumns = `id, username, display_name, avatar_url, password_hash, created_at`

func scanUser(row scanner) (*store.User, error) {
	var u store.User
	if err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.AvatarURL, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, username, displayName, passwordHash string) (*store.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, display_name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns,
		username, displayName, passwordHash))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert user: %w", store.ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("user", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		return nil, notFound("user", err)
	}
	return user, nil
}

func (s *PostgresStore) SearchUsers(ctx context.Context, query string) ([]*store.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username ILIKE $1
		ORDER BY username ASC
		LIMIT 50
	`, "%"+query+"%")
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	users := make([]*store.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ==== RoomStore ====

const roomColumns = `r.id, r.name, r.is_group, r.created_by, r.created_at`

func scanRoom(row scanner) (*store.Room, error) {
	var r store.Room
	if err := row.Scan(&r.ID, &r.Name, &r.IsGroup, &r.CreatedBy, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) CreateRoom(ctx context.Context, name string, isGroup bool, createdBy int64) (*store.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	room, err := scanRoom(tx.QueryRowContext(ctx, `
		INSERT INTO rooms AS r (name, is_group, created_by)
		VALUES ($1, $2, $3)
		RETURNING `+roomColumns,
		name, isGroup, createdBy))
	if err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO room_members (room_id, user_id, role) VALUES ($1, $2, $3)
	`, room.ID, createdBy, store.RoleOwner); err != nil {
		return nil, fmt.Errorf("add owner to members: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return room, nil
}

func (s *PostgresStore) GetRoomByID(ctx context.Context, id int64) (*store.Room, error) {
	room, err := scanRoom(s.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms r WHERE r.id = $1`, id))
	if err != nil {
		return nil, notFound("room", err)
	}
	return room, nil
}

func (s *PostgresStore) ListRooms(ctx context.Context, userID int64) ([]*store.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+roomColumns+`
		FROM rooms r
		JOIN room_members rm ON r.id = rm.room_id
		WHERE rm.user_id = $1
		ORDER BY r.created_at DESC, r.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]*store.Room, 0)
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

func (s *PostgresStore) AddMember(ctx context.Context, userID, roomID int64, role string) error {
	if role == "" {
		role = store.RoleMember
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO room_members (user_id, room_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id, user_id) DO NOTHING
	`, userID, roomID, role); err != nil {
		return fmt.Errorf("insert room member: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveMember(ctx context.Context, userID, roomID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM room_members WHERE user_id = $1 AND room_id = $2`, userID, roomID); err != nil {
		return fmt.Errorf("delete room member: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsMember(ctx context.Context, userID, roomID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM room_members WHERE user_id = $1 AND room_id = $2)
	`, userID, roomID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query membership: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListMembers(ctx context.Context, roomID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM room_members WHERE room_id = $1 ORDER BY joined_at ASC, user_id ASC
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

func (s *PostgresStore) ListParticipants(ctx context.Context, roomID int64) ([]*store.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, room_id, role, joined_at
		FROM room_members WHERE room_id = $1
		ORDER BY joined_at ASC, user_id ASC
	`, roomID)
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

// ==== MessageStore ====

const messageColumns = `id, room_id, sender_id, sender_name, body, created_at`

// CreateMessage inserts the message only when both room and sender exist.
func (s *PostgresStore) CreateMessage(ctx context.Context, senderID, roomID int64, body string) (*store.Message, error) {
	var msg store.Message
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (room_id, sender_id, sender_name, body)
		SELECT r.id, u.id, COALESCE(NULLIF(u.display_name, ''), u.username), $3
		FROM rooms r, users u
		WHERE r.id = $1 AND u.id = $2
		RETURNING `+messageColumns,
		roomID, senderID, body).Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.SenderName, &msg.Body, &msg.CreatedAt)
	if err != nil {
		return nil, notFound("room or sender", err)
	}
	return &msg, nil
}

func (s *PostgresStore) queryMessages(ctx context.Context, query string, args ...any) ([]*store.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		var m store.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.SenderName, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}
	return messages, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, roomID int64, limit int, beforeID *int64) ([]*store.Message, error) {
	if beforeID != nil {
		return s.queryMessages(ctx, `
			SELECT `+messageColumns+` FROM messages
			WHERE room_id = $1 AND id < $2
			ORDER BY id DESC LIMIT $3
		`, roomID, *beforeID, limit)
	}
	return s.queryMessages(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE room_id = $1
		ORDER BY id DESC LIMIT $2
	`, roomID, limit)
}

func (s *PostgresStore) ListMessagesPage(ctx context.Context, roomID int64, page, pageSize int) ([]*store.Message, error) {
	if page < 1 {
		page = 1
	}
	return s.queryMessages(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE room_id = $1
		ORDER BY id DESC LIMIT $2 OFFSET $3
	`, roomID, pageSize, (page-1)*pageSize)
}

func (s *PostgresStore) CountMessages(ctx context.Context, roomID int64) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE room_id = $1`, roomID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

// ==== FriendStore ====

const friendColumns = `id, user_id, friend_id, status, created_at, updated_at`

func scanFriend(row scanner) (*store.Friend, error) {
	var f store.Friend
	var status string
	if err := row.Scan(&f.ID, &f.UserID, &f.FriendID, &status, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.Status = store.FriendStatus(status)
	return &f, nil
}

func (s *PostgresStore) CreateFriendRequest(ctx context.Context, userID, friendID int64) (*store.Friend, error) {
	f, err := scanFriend(s.db.QueryRowContext(ctx, `
		INSERT INTO friends (user_id, friend_id, status)
		VALUES ($1, $2, 'pending')
		RETURNING `+friendColumns,
		userID, friendID))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert friend request: %w", store.ErrConflict)
		}
		return nil, fmt.Errorf("insert friend request: %w", err)
	}
	return f, nil
}

func (s *PostgresStore) UpdateFriendStatus(ctx context.Context, userID, friendID int64, status store.FriendStatus) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE friends SET status = $1, updated_at = now()
		WHERE user_id = $2 AND friend_id = $3
	`, string(status), userID, friendID)
	if err != nil {
		return fmt.Errorf("update friend status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("friendship: %w", store.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) GetFriendship(ctx context.Context, userID, friendID int64) (*store.Friend, error) {
	f, err := scanFriend(s.db.QueryRowContext(ctx, `
		SELECT `+friendColumns+` FROM friends
		WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)
	`, userID, friendID))
	if err != nil {
		return nil, notFound("friendship", err)
	}
	return f, nil
}

func (s *PostgresStore) ListFriends(ctx context.Context, userID int64, status *store.FriendStatus) ([]*store.Friend, error) {
	query := `SELECT ` + friendColumns + ` FROM friends WHERE (user_id = $1 OR friend_id = $1)`
	args := []any{userID}
	if status != nil {
		query += ` AND status = $2`
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
		f, err := scanFriend(rows)
		if err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		friends = append(friends, f)
	}
	return friends, rows.Err()
}

func (s *PostgresStore) IsFriend(ctx context.Context, userID, friendID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM friends
			WHERE ((user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1))
			AND status = 'accepted'
		)
	`, userID, friendID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query friendship: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) DeleteFriendship(ctx context.Context, userID, friendID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM friends WHERE user_id = $1 AND friend_id = $2`, userID, friendID); err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}
	return nil
}
