package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatroom-server/internal/service/friends"
	"github.com/vovakirdan/chatroom-server/internal/store"
)

// FriendsHandlers provides HTTP handlers for friend management endpoints.
type FriendsHandlers struct {
	service *friends.Service
	users   store.UserStore
	log     *zerolog.Logger
}

// NewFriendsHandlers creates a new friends handlers instance.
func NewFriendsHandlers(svc *friends.Service, users store.UserStore, logger *zerolog.Logger) *FriendsHandlers {
	return &FriendsHandlers{
		service: svc,
		users:   users,
		log:     logger,
	}
}

// SendFriendRequestRequest represents the request body for sending a friend request.
type SendFriendRequestRequest struct {
	UserID int64 `json:"user_id" binding:"required,gt=0"`
}

// FriendResponse represents a friend in API responses.
type FriendResponse struct {
	ID             int64  `json:"id"`
	UserID         int64  `json:"user_id"`
	FriendID       int64  `json:"friend_id"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
	FriendUsername string `json:"friend_username,omitempty"`
}

// friendToResponse converts a store.Friend, resolving the other side's username.
func (h *FriendsHandlers) friendToResponse(c *gin.Context, f *store.Friend, currentUserID int64) FriendResponse {
	resp := FriendResponse{
		ID:        f.ID,
		UserID:    f.UserID,
		FriendID:  f.FriendID,
		Status:    string(f.Status),
		CreatedAt: f.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: f.UpdatedAt.UTC().Format(time.RFC3339),
	}

	otherUserID := f.FriendID
	if f.FriendID == currentUserID {
		otherUserID = f.UserID
	}
	if user, err := h.users.GetUserByID(c.Request.Context(), otherUserID); err == nil {
		resp.FriendUsername = user.Username
	}
	return resp
}

// friendError maps service errors to HTTP responses.
func (h *FriendsHandlers) friendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, friends.ErrUserNotFound), errors.Is(err, friends.ErrRequestNotFound),
		errors.Is(err, friends.ErrNotFriends), errors.Is(err, friends.ErrNotBlocked):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, friends.ErrAlreadyFriends), errors.Is(err, friends.ErrRequestAlreadyExists),
		errors.Is(err, friends.ErrBlocked):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, friends.ErrCannotFriendSelf):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		internalError(c, h.log, err, "friend operation failed")
	}
}

// SendRequest handles sending a friend request.
// POST /api/friends/requests
func (h *FriendsHandlers) SendRequest(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	var req SendFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	friend, err := h.service.SendRequest(c.Request.Context(), uid, req.UserID)
	if err != nil {
		h.friendError(c, err)
		return
	}

	h.log.Info().Int64("from_user_id", uid).Int64("to_user_id", req.UserID).Msg("friend request sent")
	c.JSON(http.StatusCreated, h.friendToResponse(c, friend, uid))
}

func (h *FriendsHandlers) list(c *gin.Context, load func(uid int64) ([]*store.Friend, error)) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	items, err := load(uid)
	if err != nil {
		h.friendError(c, err)
		return
	}

	response := make([]FriendResponse, 0, len(items))
	for _, f := range items {
		response = append(response, h.friendToResponse(c, f, uid))
	}
	c.JSON(http.StatusOK, response)
}

// ListFriends handles listing accepted friends.
// GET /api/friends
func (h *FriendsHandlers) ListFriends(c *gin.Context) {
	h.list(c, func(uid int64) ([]*store.Friend, error) {
		return h.service.ListFriends(c.Request.Context(), uid)
	})
}

// ListPendingRequests handles listing incoming pending friend requests.
// GET /api/friends/requests
func (h *FriendsHandlers) ListPendingRequests(c *gin.Context) {
	h.list(c, func(uid int64) ([]*store.Friend, error) {
		return h.service.ListPendingRequests(c.Request.Context(), uid)
	})
}

// act runs a mutation keyed by the :userId path parameter and answers 204.
func (h *FriendsHandlers) act(c *gin.Context, op string, fn func(uid, other int64) error) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	other, ok := paramID(c, "userId")
	if !ok {
		return
	}

	if err := fn(uid, other); err != nil {
		h.friendError(c, err)
		return
	}

	h.log.Info().Int64("user_id", uid).Int64("other_user_id", other).Str("op", op).Msg("friendship updated")
	c.Status(http.StatusNoContent)
}

// AcceptRequest handles accepting a friend request.
// POST /api/friends/requests/:userId/accept
func (h *FriendsHandlers) AcceptRequest(c *gin.Context) {
	h.act(c, "accept", func(uid, other int64) error {
		return h.service.AcceptRequest(c.Request.Context(), uid, other)
	})
}

// RejectRequest handles rejecting a friend request.
// POST /api/friends/requests/:userId/reject
func (h *FriendsHandlers) RejectRequest(c *gin.Context) {
	h.act(c, "reject", func(uid, other int64) error {
		return h.service.RejectRequest(c.Request.Context(), uid, other)
	})
}

// RemoveFriend deletes an accepted friendship.
// DELETE /api/friends/:userId
func (h *FriendsHandlers) RemoveFriend(c *gin.Context) {
	h.act(c, "remove", func(uid, other int64) error {
		return h.service.RemoveFriend(c.Request.Context(), uid, other)
	})
}

// BlockUser handles blocking a user.
// POST /api/friends/:userId/block
func (h *FriendsHandlers) BlockUser(c *gin.Context) {
	h.act(c, "block", func(uid, other int64) error {
		return h.service.BlockUser(c.Request.Context(), uid, other)
	})
}

// UnblockUser handles unblocking a user.
// DELETE /api/friends/:userId/block
func (h *FriendsHandlers) UnblockUser(c *gin.Context) {
	h.act(c, "unblock", func(uid, other int64) error {
		return h.service.UnblockUser(c.Request.Context(), uid, other)
	})
}
