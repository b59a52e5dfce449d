package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatroom-server/internal/auth"
	"github.com/vovakirdan/chatroom-server/internal/config"
	"github.com/vovakirdan/chatroom-server/internal/core"
	"github.com/vovakirdan/chatroom-server/internal/service/friends"
	"github.com/vovakirdan/chatroom-server/internal/store"
)

// NewRouter builds the gin engine with every REST route.
func NewRouter(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	apiHandlers := NewAPIHandlers(authService, logger)
	userHandlers := NewUserHandlers(st, hub.Tracker(), logger)
	roomHandlers := NewRoomHandlers(st, hub, logger)
	presenceHandlers := NewPresenceHandlers(hub.Tracker())
	friendsHandlers := NewFriendsHandlers(friends.New(st), st, logger)

	api := router.Group("/api")
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)

	protected := api.Group("")
	protected.Use(AuthMiddleware(authService, logger))

	protected.GET("/users/search", userHandlers.SearchUsers)
	protected.GET("/users/:id", userHandlers.GetUser)

	protected.POST("/chatrooms", roomHandlers.CreateRoom)
	protected.GET("/chatrooms", roomHandlers.ListRooms)
	protected.GET("/chatrooms/:id", roomHandlers.GetRoom)
	protected.GET("/chatrooms/:id/messages", roomHandlers.ListMessages)
	protected.GET("/chatrooms/:id/members", roomHandlers.ListMembers)
	protected.POST("/chatrooms/:id/members", roomHandlers.AddMember)
	protected.DELETE("/chatrooms/:id/members/:userId", roomHandlers.RemoveMember)
	protected.GET("/chatrooms/:id/online", roomHandlers.OnlineUsers)
	protected.POST("/chatrooms/:id/broadcast", roomHandlers.Broadcast)

	protected.GET("/presence", presenceHandlers.Overview)
	protected.GET("/presence/users/:id", presenceHandlers.User)

	protected.GET("/friends", friendsHandlers.ListFriends)
	protected.DELETE("/friends/:userId", friendsHandlers.RemoveFriend)
	protected.POST("/friends/:userId/block", friendsHandlers.BlockUser)
	protected.DELETE("/friends/:userId/block", friendsHandlers.UnblockUser)
	protected.GET("/friends/requests", friendsHandlers.ListPendingRequests)
	protected.POST("/friends/requests", friendsHandlers.SendRequest)
	protected.POST("/friends/requests/:userId/accept", friendsHandlers.AcceptRequest)
	protected.POST("/friends/requests/:userId/reject", friendsHandlers.RejectRequest)

	return router
}

// NewHandler serves /ws on a plain mux and everything else through NewRouter.
// The WebSocket handler must own the raw ResponseWriter to hijack it.
func NewHandler(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, authService, cfg, logger))
	mux.Handle("/", NewRouter(hub, authService, st, cfg, logger))
	return mux
}

// NewServer builds an HTTP server around NewHandler.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(hub, authService, st, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
