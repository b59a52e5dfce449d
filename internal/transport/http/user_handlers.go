package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatroom-server/internal/presence"
	"github.com/vovakirdan/chatroom-server/internal/store"
)

// UserHandlers provides HTTP handlers for user operations.
type UserHandlers struct {
	store   store.UserStore
	tracker *presence.Tracker
	log     *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(st store.UserStore, tracker *presence.Tracker, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		store:   st,
		tracker: tracker,
		log:     logger,
	}
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Online   *bool  `json:"online,omitempty"`
}

func (h *UserHandlers) withPresence(u *store.User) UserResponse {
	resp := userToResponse(u)
	online := h.tracker.UserPresence(u.ID).Online
	resp.Online = &online
	return resp
}

// SearchUsers handles searching for users.
// GET /api/users/search?q=query
func (h *UserHandlers) SearchUsers(c *gin.Context) {
	trimmed := strings.TrimSpace(c.Query("q"))
	if len(trimmed) < 3 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "search query must be at least 3 characters"})
		return
	}

	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	users, err := h.store.SearchUsers(c.Request.Context(), trimmed)
	if err != nil {
		internalError(c, h.log, err, "failed to search users")
		return
	}

	response := make([]UserResponse, 0, len(users))
	for _, u := range users {
		if u.ID == uid {
			continue
		}
		response = append(response, h.withPresence(u))
	}

	c.JSON(http.StatusOK, response)
}

// GetUser returns a user with its live online flag.
// GET /api/users/:id
func (h *UserHandlers) GetUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	user, err := h.store.GetUserByID(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		return
	}
	if err != nil {
		internalError(c, h.log, err, "failed to get user")
		return
	}

	c.JSON(http.StatusOK, h.withPresence(user))
}
