package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatroom-server/internal/core"
	"github.com/vovakirdan/chatroom-server/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// RoomHandlers provides HTTP handlers for chatroom management endpoints.
type RoomHandlers struct {
	store store.Store
	hub   *core.Hub
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st store.Store, hub *core.Hub, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store: st,
		hub:   hub,
		log:   logger,
	}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	Name    string  `json:"name" binding:"required,min=1,max=64"`
	IsGroup *bool   `json:"is_group"`
	Members []int64 `json:"members"`
}

// AddMemberRequest represents the add member request body.
type AddMemberRequest struct {
	UserID int64 `json:"user_id" binding:"required,gt=0"`
}

// BroadcastRequest represents a server announcement to a room.
type BroadcastRequest struct {
	Message string `json:"message" binding:"required,max=1000"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	IsGroup   bool   `json:"is_group"`
	CreatedBy int64  `json:"created_by"`
	CreatedAt string `json:"created_at"`
}

// MessageResponse represents a persisted message in API responses.
type MessageResponse struct {
	ID         int64  `json:"id"`
	RoomID     int64  `json:"room_id"`
	SenderID   int64  `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at"`
}

// MessagePageResponse is one page of room history.
type MessagePageResponse struct {
	RoomID   int64             `json:"room_id"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Total    int               `json:"total"`
	Messages []MessageResponse `json:"messages"`
}

// MemberResponse is a persisted member with its live status.
type MemberResponse struct {
	UserID int64 `json:"user_id"`
	Online bool  `json:"online"`
}

func roomToResponse(r *store.Room) RoomResponse {
	return RoomResponse{
		ID:        r.ID,
		Name:      r.Name,
		IsGroup:   r.IsGroup,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// memberRoom loads roomID and checks that uid belongs to it, writing the error response otherwise.
func (h *RoomHandlers) memberRoom(c *gin.Context, roomID, uid int64) (*store.Room, bool) {
	ctx := c.Request.Context()

	room, err := h.store.GetRoomByID(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "chatroom not found"})
		return nil, false
	}
	if err != nil {
		internalError(c, h.log, err, "failed to get room")
		return nil, false
	}

	member, err := h.store.IsMember(ctx, uid, roomID)
	if err != nil {
		internalError(c, h.log, err, "failed to check membership")
		return nil, false
	}
	if !member {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a member of this chatroom"})
		return nil, false
	}
	return room, true
}

// roomRequest resolves the caller and the :id room in one step.
func (h *RoomHandlers) roomRequest(c *gin.Context) (uid int64, room *store.Room, ok bool) {
	if uid, ok = currentUserID(c); !ok {
		return 0, nil, false
	}
	roomID, ok := paramID(c, "id")
	if !ok {
		return 0, nil, false
	}
	room, ok = h.memberRoom(c, roomID, uid)
	return uid, room, ok
}

// CreateRoom handles chatroom creation. The caller becomes its owner.
// POST /api/chatrooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	isGroup := true
	if req.IsGroup != nil {
		isGroup = *req.IsGroup
	}

	ctx := c.Request.Context()
	room, err := h.store.CreateRoom(ctx, req.Name, isGroup, uid)
	if err != nil {
		internalError(c, h.log, err, "failed to create room")
		return
	}

	for _, memberID := range req.Members {
		if memberID == uid {
			continue
		}
		if err := h.store.AddMember(ctx, memberID, room.ID, store.RoleMember); err != nil {
			h.log.Warn().Err(err).Int64("room_id", room.ID).Int64("user_id", memberID).Msg("failed to add initial member")
		}
	}

	h.log.Info().Str("room_name", room.Name).Int64("room_id", room.ID).Int64("owner_id", uid).Msg("room created")
	c.JSON(http.StatusCreated, roomToResponse(room))
}

// ListRooms lists chatrooms the caller belongs to.
// GET /api/chatrooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	rooms, err := h.store.ListRooms(c.Request.Context(), uid)
	if err != nil {
		internalError(c, h.log, err, "failed to list rooms")
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		response = append(response, roomToResponse(room))
	}

	c.JSON(http.StatusOK, response)
}

// GetRoom returns a single chatroom.
// GET /api/chatrooms/:id
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	_, room, ok := h.roomRequest(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, roomToResponse(room))
}

// ListMessages returns one page of history, newest page first.
// GET /api/chatrooms/:id/messages?page=&page_size=
func (h *RoomHandlers) ListMessages(c *gin.Context) {
	_, room, ok := h.roomRequest(c)
	if !ok {
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid page"})
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if err != nil || pageSize < 1 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid page_size"})
		return
	}
	pageSize = min(pageSize, maxPageSize)

	ctx := c.Request.Context()
	total, err := h.store.CountMessages(ctx, room.ID)
	if err != nil {
		internalError(c, h.log, err, "failed to count messages")
		return
	}
	msgs, err := h.store.ListMessagesPage(ctx, room.ID, page, pageSize)
	if err != nil {
		internalError(c, h.log, err, "failed to list messages")
		return
	}

	resp := MessagePageResponse{
		RoomID:   room.ID,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		Messages: make([]MessageResponse, 0, len(msgs)),
	}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, MessageResponse{
			ID:         m.ID,
			RoomID:     m.RoomID,
			SenderID:   m.SenderID,
			SenderName: m.SenderName,
			Content:    m.Body,
			CreatedAt:  m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, resp)
}

// ListMembers returns persisted members annotated with live presence.
// GET /api/chatrooms/:id/members
func (h *RoomHandlers) ListMembers(c *gin.Context) {
	_, room, ok := h.roomRequest(c)
	if !ok {
		return
	}

	members, err := h.hub.RoomMembers(c.Request.Context(), room.ID)
	if err != nil {
		internalError(c, h.log, err, "failed to list members")
		return
	}

	response := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		response = append(response, MemberResponse{UserID: m.UserID, Online: m.Online})
	}
	c.JSON(http.StatusOK, response)
}

// AddMember adds a participant to the chatroom.
// POST /api/chatrooms/:id/members
func (h *RoomHandlers) AddMember(c *gin.Context) {
	_, room, ok := h.roomRequest(c)
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetUserByID(ctx, req.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		internalError(c, h.log, err, "failed to get user")
		return
	}

	if err := h.store.AddMember(ctx, req.UserID, room.ID, store.RoleMember); err != nil {
		internalError(c, h.log, err, "failed to add member")
		return
	}

	c.JSON(http.StatusCreated, MemberResponse{UserID: req.UserID, Online: h.hub.Registry().IsUserOnline(req.UserID)})
}

// RemoveMember removes a participant. Members may remove themselves; the owner may remove anyone.
// DELETE /api/chatrooms/:id/members/:userId
func (h *RoomHandlers) RemoveMember(c *gin.Context) {
	uid, room, ok := h.roomRequest(c)
	if !ok {
		return
	}
	target, ok := paramID(c, "userId")
	if !ok {
		return
	}

	if target != uid && room.CreatedBy != uid {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "only the owner can remove other members"})
		return
	}

	if err := h.store.RemoveMember(c.Request.Context(), target, room.ID); err != nil {
		internalError(c, h.log, err, "failed to remove member")
		return
	}
	c.Status(http.StatusNoContent)
}

// OnlineUsers lists users with a live connection joined to the room.
// GET /api/chatrooms/:id/online
func (h *RoomHandlers) OnlineUsers(c *gin.Context) {
	_, room, ok := h.roomRequest(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"room_id":  room.ID,
		"user_ids": h.hub.Tracker().OnlineUsersInRoom(room.ID),
	})
}

// Broadcast sends a ChatroomNotification to every live connection in the room.
// POST /api/chatrooms/:id/broadcast
func (h *RoomHandlers) Broadcast(c *gin.Context) {
	uid, room, ok := h.roomRequest(c)
	if !ok {
		return
	}

	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	delivered := h.hub.NotifyRoom(room.ID, uid, req.Message)
	h.log.Info().Int64("room_id", room.ID).Int64("sent_by", uid).Int("delivered", delivered).Msg("room notification sent")
	c.JSON(http.StatusAccepted, gin.H{"delivered": delivered})
}
