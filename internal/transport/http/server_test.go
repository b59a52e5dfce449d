package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatroom-server/internal/config"
	"github.com/vovakirdan/chatroom-server/internal/proto"
)

func TestServerHandlerRoutesWebSocketAndREST(t *testing.T) {
	env := newTestEnv(t)
	token, uid := env.registerUser(t, "alice")

	cfg := config.Default()
	logger := zerolog.Nop()
	srv := httptest.NewServer(NewServer(env.hub, env.auth, env.store, &cfg, &logger).Handler)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected health response %d %q", resp.StatusCode, body)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/chatrooms", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from the REST router, got %d", resp.StatusCode)
	}

	wsEnv := &testEnv{server: srv}
	conn := wsEnv.dial(t, token)
	connected := expectEvent[proto.EventConnected](t, conn, "Connected")
	if connected.ConnectionID == "" {
		t.Fatal("expected a connection id")
	}
	online := expectEvent[proto.EventUserStatus](t, conn, "UserOnline")
	if online.UserID != uid {
		t.Fatalf("token connection registered as %d, want %d", online.UserID, uid)
	}
}
