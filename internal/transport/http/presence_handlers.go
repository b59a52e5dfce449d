package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/chatroom-server/internal/presence"
)

// PresenceHandlers exposes live presence derived from the connection registry.
type PresenceHandlers struct {
	tracker *presence.Tracker
}

// NewPresenceHandlers creates presence handlers backed by tracker.
func NewPresenceHandlers(tracker *presence.Tracker) *PresenceHandlers {
	return &PresenceHandlers{tracker: tracker}
}

// PresenceResponse summarizes who is online.
type PresenceResponse struct {
	presence.Stats
	UserIDs []int64 `json:"userIds"`
}

// Overview returns registry counts and the online user ids.
// GET /api/presence
func (h *PresenceHandlers) Overview(c *gin.Context) {
	c.JSON(http.StatusOK, PresenceResponse{
		Stats:   h.tracker.Stats(),
		UserIDs: h.tracker.OnlineUsers(),
	})
}

// User returns the presence of one user.
// GET /api/presence/users/:id
func (h *PresenceHandlers) User(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.tracker.UserPresence(id))
}
