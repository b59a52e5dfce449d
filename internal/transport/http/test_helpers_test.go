package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatroom-server/internal/auth"
	"github.com/vovakirdan/chatroom-server/internal/config"
	"github.com/vovakirdan/chatroom-server/internal/core"
	"github.com/vovakirdan/chatroom-server/internal/store/sqlite"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	store  *sqlite.SQLiteStore
	auth   *auth.Service
	hub    *core.Hub
	router *gin.Engine
	server *httptest.Server
}

func newTestEnv(t *testing.T, tweak ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.JWTSecret = "test-secret"
	for _, fn := range tweak {
		fn(&cfg)
	}

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      time.Hour,
	})

	logger := zerolog.Nop()
	hub := core.NewHub(st,
		core.WithLogger(&logger),
		core.WithHistoryLimit(cfg.HistoryLimit),
		core.WithMaxMessageLength(cfg.MaxMessageLength),
	)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	router := NewRouter(hub, authService, st, &cfg, &logger)
	ts := httptest.NewServer(NewServer(hub, authService, st, &cfg, &logger).Handler)
	t.Cleanup(ts.Close)

	return &testEnv{store: st, auth: authService, hub: hub, router: router, server: ts}
}

func (e *testEnv) registerUser(t *testing.T, username string) (string, int64) {
	t.Helper()
	token, user, err := e.auth.Register(context.Background(), username, "", "password123")
	if err != nil {
		t.Fatalf("failed to register %s: %v", username, err)
	}
	return token, user.ID
}

func (e *testEnv) createRoom(t *testing.T, name string, owner int64, members ...int64) int64 {
	t.Helper()
	ctx := context.Background()
	room, err := e.store.CreateRoom(ctx, name, true, owner)
	if err != nil {
		t.Fatalf("failed to create room: %v", err)
	}
	for _, m := range members {
		if err := e.store.AddMember(ctx, m, room.ID, ""); err != nil {
			t.Fatalf("failed to add member: %v", err)
		}
	}
	return room.ID
}

// do sends a request through the router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func decodeBody[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(resp.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to unmarshal response %q: %v", resp.Body.String(), err)
	}
	return v
}

func (e *testEnv) wsURL(token string) string {
	u := strings.Replace(e.server.URL, "http", "ws", 1) + "/ws"
	if token != "" {
		u += "?token=" + token
	}
	return u
}

func (e *testEnv) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, e.wsURL(token), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

// wireEvent is an outbound envelope with its data left undecoded.
type wireEvent struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func send(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	if err := wsjson.Write(ctx, conn, map[string]any{"type": typ, "data": json.RawMessage(raw)}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

// expectEvent reads until an event named name arrives and decodes its data into T.
func expectEvent[T any](t *testing.T, conn *websocket.Conn, name string) T {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for {
		var ev wireEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			t.Fatalf("waiting for %s: %v", name, err)
		}
		if ev.Event != name {
			continue
		}
		var data T
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			t.Fatalf("decode %s: %v", name, err)
		}
		return data
	}
}

func requireStatus(t *testing.T, resp *httptest.ResponseRecorder, want int) {
	t.Helper()
	if resp.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, resp.Code, resp.Body.String())
	}
}
