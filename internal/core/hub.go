package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatroom-server/internal/presence"
	"github.com/vovakirdan/chatroom-server/internal/store"
)

const (
	storeTimeout  = 5 * time.Second
	mirrorTimeout = 2 * time.Second

	DefaultMaxMessageLength = 4000
	DefaultSweepInterval    = 30 * time.Second
)

// Store is the persistence the hub needs.
type Store interface {
	CreateMessage(ctx context.Context, senderID, roomID int64, body string) (*store.Message, error)
	ListMembers(ctx context.Context, roomID int64) ([]int64, error)
	GetUserByID(ctx context.Context, id int64) (*store.User, error)
	GetRoomByID(ctx context.Context, id int64) (*store.Room, error)
	ListMessages(ctx context.Context, roomID int64, limit int, beforeID *int64) ([]*store.Message, error)
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// WithRegistry shares an existing registry with the hub.
func WithRegistry(r *presence.Registry) Option {
	return func(h *Hub) {
		if r != nil {
			h.reg = r
		}
	}
}

// WithMirror publishes online/offline transitions through m.
func WithMirror(m presence.Mirror) Option {
	return func(h *Hub) {
		if m != nil {
			h.mirror = m
		}
	}
}

// WithHistoryLimit makes joins deliver up to n recent messages. Zero disables history.
func WithHistoryLimit(n int) Option {
	return func(h *Hub) { h.historyLimit = n }
}

// WithMaxMessageLength bounds message content length in runes.
func WithMaxMessageLength(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.maxMessageLength = n
		}
	}
}

// WithIdleTimeout evicts connections without inbound traffic for longer than timeout.
// Zero keeps connections until the transport reports a disconnect.
func WithIdleTimeout(timeout, sweep time.Duration) Option {
	return func(h *Hub) {
		h.idleTimeout = timeout
		if sweep > 0 {
			h.sweepInterval = sweep
		}
	}
}

// Hub coordinates connections, rooms and message delivery.
//
// Commands of one connection are handled in order by that connection's worker.
// Different connections are handled concurrently.
type Hub struct {
	store   Store
	reg     *presence.Registry
	tracker *presence.Tracker
	mirror  presence.Mirror
	log     *zerolog.Logger

	historyLimit     int
	maxMessageLength int
	idleTimeout      time.Duration
	sweepInterval    time.Duration

	mu      sync.RWMutex
	clients map[string]*Client

	senders keyedMutex

	// presence orders online/offline transitions and their broadcasts per user.
	presence keyedMutex
}

// NewHub creates a new chat hub instance. st may be nil in tests that never touch persistence.
func NewHub(st Store, opts ...Option) *Hub {
	nop := zerolog.Nop()
	h := &Hub{
		store:            st,
		reg:              presence.NewRegistry(),
		mirror:           presence.NopMirror{},
		log:              &nop,
		maxMessageLength: DefaultMaxMessageLength,
		sweepInterval:    DefaultSweepInterval,
		clients:          make(map[string]*Client),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.tracker = presence.NewTracker(h.reg)
	return h
}

// Registry exposes the connection registry.
func (h *Hub) Registry() *presence.Registry { return h.reg }

// Tracker exposes presence queries.
func (h *Hub) Tracker() *presence.Tracker { return h.tracker }

// Client returns the live client with the given connection id.
func (h *Hub) Client(connID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	return c, ok
}

// RegisterClient attaches c and starts handling its commands.
func (h *Hub) RegisterClient(c *Client) {
	h.mu.Lock()
	if _, exists := h.clients[c.ID]; exists {
		h.mu.Unlock()
		return
	}
	h.clients[c.ID] = c
	h.mu.Unlock()

	h.reg.Attach(c.ID)
	c.setState(StateConnected)
	c.Send(NewEvent(&Connected{ConnectionID: c.ID, ConnectedAt: time.Now().UTC()}))
	go h.serve(c)
	h.log.Debug().Str("conn_id", c.ID).Msg("client connected")
}

// UnregisterClient removes every trace of c and notifies the rooms it was in.
// Repeated calls are no-ops.
func (h *Hub) UnregisterClient(c *Client) {
	h.mu.Lock()
	if _, exists := h.clients[c.ID]; !exists {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)
	h.mu.Unlock()

	c.Close()
	<-c.stopped

	unlock := func() {}
	if userID, _, ok := c.User(); ok {
		unlock = h.presence.Lock(userID)
	}
	res := h.reg.Deregister(c.ID)
	now := time.Now().UTC()
	for _, roomID := range res.Rooms {
		h.FanOutToRoom(roomID, 0, c.ID, NewEvent(&UserLeftChatroom{
			UserID: res.UserID,
			RoomID: roomID,
			LeftAt: now,
			Reason: ReasonDisconnected,
		}))
	}
	if res.Registered && res.WasLastConnection {
		h.Broadcast(NewEvent(&UserOffline{UserID: res.UserID}))
		h.mirrorOffline(res.UserID)
	}
	unlock()

	h.log.Debug().
		Str("conn_id", c.ID).
		Int64("user_id", res.UserID).
		Int("rooms", len(res.Rooms)).
		Bool("last_connection", res.WasLastConnection).
		Msg("client disconnected")
}

// Run sweeps idle connections and refreshes the presence mirror until ctx is done,
// then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case now := <-ticker.C:
			h.sweepIdle(now)
			h.refreshMirror(ctx)
		}
	}
}

func (h *Hub) snapshotClients() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *Hub) shutdown() {
	clients := h.snapshotClients()
	for _, c := range clients {
		h.UnregisterClient(c)
	}
	if len(clients) > 0 {
		h.log.Info().Int("clients", len(clients)).Msg("hub stopped, clients disconnected")
	}
}

func (h *Hub) sweepIdle(now time.Time) {
	if h.idleTimeout <= 0 {
		return
	}
	for _, c := range h.snapshotClients() {
		if idle := now.Sub(c.LastSeen()); idle > h.idleTimeout {
			h.log.Info().Str("conn_id", c.ID).Dur("idle", idle).Msg("evicting idle connection")
			h.UnregisterClient(c)
		}
	}
}

func (h *Hub) refreshMirror(ctx context.Context) {
	if _, nop := h.mirror.(presence.NopMirror); nop {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
	defer cancel()
	if err := h.mirror.Refresh(ctx, h.tracker.OnlineUsers()); err != nil {
		h.log.Warn().Err(err).Msg("refresh presence mirror")
	}
}

func (h *Hub) mirrorOnline(userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := h.mirror.SetOnline(ctx, userID); err != nil {
		h.log.Warn().Err(err).Int64("user_id", userID).Msg("mirror online")
	}
}

func (h *Hub) mirrorOffline(userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := h.mirror.SetOffline(ctx, userID); err != nil {
		h.log.Warn().Err(err).Int64("user_id", userID).Msg("mirror offline")
	}
}

// serve is the per-connection command worker.
func (h *Hub) serve(c *Client) {
	defer close(c.stopped)
	for {
		select {
		case <-c.done:
			return
		default:
		}
		select {
		case <-c.done:
			return
		case cmd := <-c.Commands:
			if cmd == nil || cmd.Request == nil {
				continue
			}
			if err := h.handle(c, cmd); err != nil {
				c.Send(ErrorEvent(err))
			}
		}
	}
}

func (h *Hub) handle(c *Client, cmd *Command) *CoreError {
	switch req := cmd.Request.(type) {
	case *RegisterUser:
		return h.handleRegister(c, req)
	case *JoinChatroom:
		return h.handleJoin(c, req)
	case *LeaveChatroom:
		return h.handleLeave(c, req)
	case *SendMessage:
		return h.handleSendMessage(c, req)
	case *SendTyping:
		return h.handleTyping(c, req)
	case *StopTyping:
		return h.handleStopTyping(c, req)
	case *MarkMessageAsRead:
		return h.handleMarkRead(c, req)
	case *Ping:
		c.Send(NewEvent(&Pong{Timestamp: time.Now().UTC()}))
		return nil
	default:
		return coreError(ErrCodeUnknownType, "unknown command")
	}
}

func (h *Hub) lookupUser(userID int64) (*store.User, *CoreError) {
	if h.store == nil {
		return &store.User{ID: userID}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	user, err := h.store.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, coreError(ErrCodeNotFound, "user not found")
	}
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("load user")
		return nil, coreError(ErrCodeInternal, "failed to load user")
	}
	return user, nil
}

func (h *Hub) handleRegister(c *Client, req *RegisterUser) *CoreError {
	if req.UserID <= 0 {
		return coreError(ErrCodeBadRequest, "userId is required")
	}
	if pinned, ok := c.PinnedUser(); ok && pinned != req.UserID {
		return coreError(ErrCodeUnauthorized, "connection is authenticated as another user")
	}

	user, cerr := h.lookupUser(req.UserID)
	if cerr != nil {
		return cerr
	}

	users := []int64{req.UserID}
	if prev, _, ok := c.User(); ok && prev != req.UserID {
		users = append(users, prev)
	}
	defer h.presence.LockAll(users...)()

	res := h.reg.Register(c.ID, req.UserID)
	c.setUser(req.UserID, user.Name())

	if res.HadPrevious && res.PreviousWentOffline {
		h.Broadcast(NewEvent(&UserOffline{UserID: res.PreviousUserID}))
		h.mirrorOffline(res.PreviousUserID)
	}
	h.Broadcast(NewEvent(&UserOnline{UserID: req.UserID}))
	if res.FirstConnection {
		h.mirrorOnline(req.UserID)
	}

	h.log.Info().Str("conn_id", c.ID).Int64("user_id", req.UserID).Msg("user registered")
	return nil
}

// actor resolves who a room-scoped command acts as. A registered connection
// always acts as its user; an unregistered one may name a user.
func (h *Hub) actor(c *Client, claimed int64) (int64, string, *CoreError) {
	if userID, name, ok := c.User(); ok {
		if claimed != 0 && claimed != userID {
			return 0, "", coreError(ErrCodeUnauthorized, "user id does not match the registered user")
		}
		return userID, name, nil
	}
	if claimed < 0 {
		return 0, "", coreError(ErrCodeBadRequest, "invalid user id")
	}
	return claimed, "", nil
}

func (h *Hub) handleJoin(c *Client, req *JoinChatroom) *CoreError {
	if req.RoomID <= 0 {
		return coreError(ErrCodeBadRequest, "roomId is required")
	}
	userID, name, cerr := h.actor(c, req.UserID)
	if cerr != nil {
		return cerr
	}
	if h.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		_, err := h.store.GetRoomByID(ctx, req.RoomID)
		cancel()
		if errors.Is(err, store.ErrNotFound) {
			return coreError(ErrCodeNotFound, "chatroom not found")
		}
		if err != nil {
			h.log.Error().Err(err).Int64("room_id", req.RoomID).Msg("load chatroom")
			return coreError(ErrCodeInternal, "failed to load chatroom")
		}
		if userID != 0 && name == "" {
			user, cerr := h.lookupUser(userID)
			if cerr != nil {
				return cerr
			}
			name = user.Name()
		}
	}

	changed := h.reg.JoinRoom(c.ID, req.RoomID)
	now := time.Now().UTC()
	c.Send(NewEvent(&JoinConfirmation{RoomID: req.RoomID, JoinedAt: now}))
	if !changed {
		return nil
	}

	h.FanOutToRoom(req.RoomID, 0, c.ID, NewEvent(&UserJoinedChatroom{
		UserID:   userID,
		Username: name,
		RoomID:   req.RoomID,
		JoinedAt: now,
	}))
	h.sendHistory(c, req.RoomID)
	return nil
}

func (h *Hub) sendHistory(c *Client, roomID int64) {
	if h.historyLimit <= 0 || h.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	msgs, err := h.store.ListMessages(ctx, roomID, h.historyLimit, nil)
	if err != nil {
		h.log.Warn().Err(err).Int64("room_id", roomID).Msg("load history")
		return
	}
	history := &History{RoomID: roomID, Messages: make([]ReceiveMessage, 0, len(msgs))}
	for _, m := range msgs {
		history.Messages = append(history.Messages, *messageFromStore(m))
	}
	c.Send(NewEvent(history))
}

func (h *Hub) handleLeave(c *Client, req *LeaveChatroom) *CoreError {
	if req.RoomID <= 0 {
		return coreError(ErrCodeBadRequest, "roomId is required")
	}
	userID, _, cerr := h.actor(c, req.UserID)
	if cerr != nil {
		return cerr
	}

	changed := h.reg.LeaveRoom(c.ID, req.RoomID)
	now := time.Now().UTC()
	c.Send(NewEvent(&LeaveConfirmation{RoomID: req.RoomID, LeftAt: now}))
	if changed {
		h.FanOutToRoom(req.RoomID, 0, c.ID, NewEvent(&UserLeftChatroom{
			UserID: userID,
			RoomID: req.RoomID,
			LeftAt: now,
			Reason: ReasonLeft,
		}))
	}
	return nil
}

func (h *Hub) handleSendMessage(c *Client, req *SendMessage) *CoreError {
	userID, _, registered := c.User()
	if !registered {
		return coreError(ErrCodeNotRegistered, "register before sending messages")
	}
	if req.SenderID != userID {
		return coreError(ErrCodeUnauthorized, "senderId does not match the registered user")
	}
	if req.RoomID <= 0 {
		return coreError(ErrCodeBadRequest, "roomId is required")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return coreError(ErrCodeBadRequest, "content is required")
	}
	if utf8.RuneCountInString(content) > h.maxMessageLength {
		return coreError(ErrCodeBadRequest, "content is too long")
	}

	// One sender's messages reach recipients in persistence order, across all its devices.
	unlock := h.senders.Lock(userID)
	defer unlock()

	msg, err := h.persist(userID, req.RoomID, content)
	if err != nil {
		c.Send(ErrorEvent(err))
		c.Send(NewEvent(&MessageSent{Status: StatusFailed}))
		return nil
	}

	delivered := h.FanOutToRoom(req.RoomID, userID, c.ID, NewEvent(messageFromStore(msg)))
	c.Send(NewEvent(&MessageSent{MessageID: msg.ID, Status: StatusSuccess}))

	h.log.Debug().
		Int64("message_id", msg.ID).
		Int64("room_id", req.RoomID).
		Int("delivered", delivered).
		Msg("message sent")
	return nil
}

func (h *Hub) persist(userID, roomID int64, content string) (*store.Message, *CoreError) {
	if h.store == nil {
		return nil, coreError(ErrCodePersistFailed, "message store unavailable")
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	msg, err := h.store.CreateMessage(ctx, userID, roomID, content)
	if errors.Is(err, store.ErrNotFound) {
		return nil, coreError(ErrCodeNotFound, "chatroom not found")
	}
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Int64("user_id", userID).Msg("persist message")
		return nil, &CoreError{Code: ErrCodePersistFailed, Message: "failed to save message", Details: err.Error()}
	}
	return msg, nil
}

func (h *Hub) handleTyping(c *Client, req *SendTyping) *CoreError {
	if req.RoomID <= 0 {
		return coreError(ErrCodeBadRequest, "roomId is required")
	}
	userID, name, cerr := h.actor(c, req.SenderID)
	if cerr != nil {
		return cerr
	}
	if req.SenderName != "" {
		name = req.SenderName
	}
	h.FanOutToRoom(req.RoomID, userID, c.ID, NewEvent(&UserTyping{
		SenderID:   userID,
		RoomID:     req.RoomID,
		SenderName: name,
		Timestamp:  time.Now().UTC(),
	}))
	return nil
}

func (h *Hub) handleStopTyping(c *Client, req *StopTyping) *CoreError {
	if req.RoomID <= 0 {
		return coreError(ErrCodeBadRequest, "roomId is required")
	}
	userID, _, cerr := h.actor(c, req.SenderID)
	if cerr != nil {
		return cerr
	}
	h.FanOutToRoom(req.RoomID, userID, c.ID, NewEvent(&UserStoppedTyping{
		SenderID:  userID,
		RoomID:    req.RoomID,
		Timestamp: time.Now().UTC(),
	}))
	return nil
}

func (h *Hub) handleMarkRead(c *Client, req *MarkMessageAsRead) *CoreError {
	if req.RoomID <= 0 || req.MessageID <= 0 {
		return coreError(ErrCodeBadRequest, "messageId and roomId are required")
	}
	userID, _, cerr := h.actor(c, req.UserID)
	if cerr != nil {
		return cerr
	}
	h.FanOutToRoom(req.RoomID, userID, c.ID, NewEvent(&MessageRead{
		MessageID: req.MessageID,
		ReadBy:    userID,
		RoomID:    req.RoomID,
		ReadAt:    time.Now().UTC(),
	}))
	return nil
}

// MemberPresence is a persisted room member with its live status.
type MemberPresence struct {
	UserID int64
	Online bool
}

// RoomMembers lists the persisted members of roomID annotated with live presence.
func (h *Hub) RoomMembers(ctx context.Context, roomID int64) ([]MemberPresence, error) {
	if h.store == nil {
		return nil, errors.New("no store configured")
	}
	ids, err := h.store.ListMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	out := make([]MemberPresence, 0, len(ids))
	for _, id := range ids {
		out = append(out, MemberPresence{UserID: id, Online: h.reg.IsUserOnline(id)})
	}
	return out, nil
}
