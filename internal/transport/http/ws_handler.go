package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatroom-server/internal/auth"
	"github.com/vovakirdan/chatroom-server/internal/config"
	"github.com/vovakirdan/chatroom-server/internal/core"
	"github.com/vovakirdan/chatroom-server/internal/proto"
	"github.com/vovakirdan/chatroom-server/internal/utils"
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub  *core.Hub
	auth *auth.Service
	cfg  *config.Config
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. authService may be nil, in which
// case tokens are ignored and clients identify themselves with RegisterUser.
func NewWSHandler(hub *core.Hub, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, auth: authService, cfg: cfg, log: logger}
}

// tokenFromRequest reads a JWT from ?token= or the Authorization header.
func tokenFromRequest(r *stdhttp.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return token
	}
	return ""
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	var claims *auth.Claims
	if token := tokenFromRequest(r); token != "" && h.auth != nil {
		var err error
		claims, err = h.auth.ValidateToken(token)
		if err != nil {
			h.log.Debug().Err(err).Msg("ws token rejected")
			stdhttp.Error(w, "invalid token", stdhttp.StatusUnauthorized)
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	client := core.NewClient(utils.NewID(), h.cfg.EventBuffer)
	if claims != nil {
		client.Pin(claims.UserID)
	}
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	logger := h.log.With().Str("conn_id", client.ID).Logger()
	if claims != nil {
		logger = logger.With().Int64("user_id", claims.UserID).Logger()
		client.Submit(core.NewCommand(&core.RegisterUser{UserID: claims.UserID}))
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, &logger)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client, &logger)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = "connection error"
			logger.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, logger *zerolog.Logger) error {
	limiter := newRateLimiter(h.cfg.MaxMessagesPerMinute, time.Minute)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			logger.Debug().Err(err).Msg("read ws inbound")
			return err
		}

		if !limiter.allow() {
			client.Send(core.ErrorEvent(&core.CoreError{
				Code:    core.ErrCodeRateLimited,
				Message: "too many messages",
			}))
			continue
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			client.Send(core.ErrorEvent(badRequest("malformed message", err.Error())))
			continue
		}

		cmd, cerr := inboundToCommand(inbound)
		if cerr != nil {
			logger.Debug().Str("type", inbound.Type).Str("code", cerr.Code).Msg("rejected inbound")
			client.Send(core.ErrorEvent(cerr))
			continue
		}
		if !client.Submit(cmd) {
			return nil
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, logger *zerolog.Logger) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				logger.Debug().Err(err).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
