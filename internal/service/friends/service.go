package friends

import (
	"context"
	"errors"
	"fmt"

	"github.com/vovakirdan/chatroom-server/internal/store"
)

// Common errors for friend operations.
var (
	ErrCannotFriendSelf     = errors.New("cannot send friend request to yourself")
	ErrAlreadyFriends       = errors.New("already friends")
	ErrRequestAlreadyExists = errors.New("friend request already exists")
	ErrRequestNotFound      = errors.New("friend request not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrNotBlocked           = errors.New("user is not blocked")
	ErrBlocked              = errors.New("friendship is blocked")
	ErrNotFriends           = errors.New("not friends")
)

// Store is the persistence the service needs.
type Store interface {
	store.FriendStore
	GetUserByID(ctx context.Context, id int64) (*store.User, error)
}

// Service provides friend management business logic.
type Service struct {
	store Store
}

// New creates a new FriendService.
func New(st Store) *Service {
	return &Service{
		store: st,
	}
}

// friendship returns the record between two users, or nil when there is none.
func (s *Service) friendship(ctx context.Context, a, b int64) (*store.Friend, error) {
	f, err := s.store.GetFriendship(ctx, a, b)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get friendship: %w", err)
	}
	return f, nil
}

func (s *Service) requireUser(ctx context.Context, id int64) error {
	_, err := s.store.GetUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	return nil
}

// SendRequest sends a friend request from one user to another.
func (s *Service) SendRequest(ctx context.Context, fromUserID, toUserID int64) (*store.Friend, error) {
	if fromUserID == toUserID {
		return nil, ErrCannotFriendSelf
	}
	if err := s.requireUser(ctx, toUserID); err != nil {
		return nil, err
	}

	existing, err := s.friendship(ctx, fromUserID, toUserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		switch existing.Status {
		case store.FriendStatusAccepted:
			return nil, ErrAlreadyFriends
		case store.FriendStatusPending:
			return nil, ErrRequestAlreadyExists
		case store.FriendStatusBlocked:
			return nil, ErrBlocked
		}
	}

	friend, err := s.store.CreateFriendRequest(ctx, fromUserID, toUserID)
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrRequestAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("create friend request: %w", err)
	}
	return friend, nil
}

// pendingTo returns the pending request from fromUserID to userID.
func (s *Service) pendingTo(ctx context.Context, userID, fromUserID int64) (*store.Friend, error) {
	existing, err := s.friendship(ctx, fromUserID, userID)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.Status != store.FriendStatusPending || existing.FriendID != userID {
		return nil, ErrRequestNotFound
	}
	return existing, nil
}

// AcceptRequest accepts a pending friend request.
func (s *Service) AcceptRequest(ctx context.Context, userID, fromUserID int64) error {
	existing, err := s.pendingTo(ctx, userID, fromUserID)
	if err != nil {
		return err
	}
	if err := s.store.UpdateFriendStatus(ctx, existing.UserID, existing.FriendID, store.FriendStatusAccepted); err != nil {
		return fmt.Errorf("accept request: %w", err)
	}
	return nil
}

// RejectRequest rejects a pending friend request.
func (s *Service) RejectRequest(ctx context.Context, userID, fromUserID int64) error {
	existing, err := s.pendingTo(ctx, userID, fromUserID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteFriendship(ctx, existing.UserID, existing.FriendID); err != nil {
		return fmt.Errorf("reject request: %w", err)
	}
	return nil
}

// RemoveFriend deletes an accepted friendship in either direction.
func (s *Service) RemoveFriend(ctx context.Context, userID, friendID int64) error {
	existing, err := s.friendship(ctx, userID, friendID)
	if err != nil {
		return err
	}
	if existing == nil || existing.Status != store.FriendStatusAccepted {
		return ErrNotFriends
	}
	if err := s.store.DeleteFriendship(ctx, existing.UserID, existing.FriendID); err != nil {
		return fmt.Errorf("remove friend: %w", err)
	}
	return nil
}

// BlockUser blocks another user.
func (s *Service) BlockUser(ctx context.Context, userID, targetUserID int64) error {
	if userID == targetUserID {
		return ErrCannotFriendSelf
	}
	if err := s.requireUser(ctx, targetUserID); err != nil {
		return err
	}

	existing, err := s.friendship(ctx, userID, targetUserID)
	if err != nil {
		return err
	}
	if existing != nil {
		// Our own record is updated in place; theirs is replaced by ours.
		if existing.UserID == userID {
			return s.store.UpdateFriendStatus(ctx, userID, targetUserID, store.FriendStatusBlocked)
		}
		if err := s.store.DeleteFriendship(ctx, existing.UserID, existing.FriendID); err != nil {
			return fmt.Errorf("delete existing friendship: %w", err)
		}
	}

	if _, err := s.store.CreateFriendRequest(ctx, userID, targetUserID); err != nil {
		return fmt.Errorf("create block record: %w", err)
	}
	return s.store.UpdateFriendStatus(ctx, userID, targetUserID, store.FriendStatusBlocked)
}

// UnblockUser unblocks a previously blocked user.
func (s *Service) UnblockUser(ctx context.Context, userID, targetUserID int64) error {
	existing, err := s.friendship(ctx, userID, targetUserID)
	if err != nil {
		return err
	}
	if existing == nil || existing.Status != store.FriendStatusBlocked || existing.UserID != userID {
		return ErrNotBlocked
	}
	return s.store.DeleteFriendship(ctx, userID, targetUserID)
}

// ListFriends returns all accepted friends for a user.
func (s *Service) ListFriends(ctx context.Context, userID int64) ([]*store.Friend, error) {
	status := store.FriendStatusAccepted
	friends, err := s.store.ListFriends(ctx, userID, &status)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	return friends, nil
}

// ListPendingRequests returns incoming pending friend requests for a user.
func (s *Service) ListPendingRequests(ctx context.Context, userID int64) ([]*store.Friend, error) {
	status := store.FriendStatusPending
	all, err := s.store.ListFriends(ctx, userID, &status)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}

	incoming := make([]*store.Friend, 0, len(all))
	for _, f := range all {
		if f.FriendID == userID {
			incoming = append(incoming, f)
		}
	}
	return incoming, nil
}

// IsFriend checks if two users are friends (accepted status).
func (s *Service) IsFriend(ctx context.Context, userID, friendID int64) (bool, error) {
	return s.store.IsFriend(ctx, userID, friendID)
}
