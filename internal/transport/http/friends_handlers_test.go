package http

import (
	"net/http"
	"strconv"
	"testing"
)

func friendPath(id int64, suffix string) string {
	return "/api/friends/" + strconv.FormatInt(id, 10) + suffix
}

func TestFriendRequestFlow(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, aliceID := env.registerUser(t, "alice")
	bobToken, bobID := env.registerUser(t, "bob")

	resp := env.do(t, http.MethodPost, "/api/friends/requests", aliceToken, map[string]any{"user_id": bobID})
	requireStatus(t, resp, http.StatusCreated)
	created := decodeBody[FriendResponse](t, resp)
	if created.Status != "pending" || created.FriendUsername != "bob" {
		t.Errorf("unexpected request: %+v", created)
	}

	resp = env.do(t, http.MethodPost, "/api/friends/requests", aliceToken, map[string]any{"user_id": bobID})
	requireStatus(t, resp, http.StatusConflict)

	resp = env.do(t, http.MethodGet, "/api/friends/requests", bobToken, nil)
	requireStatus(t, resp, http.StatusOK)
	pending := decodeBody[[]FriendResponse](t, resp)
	if len(pending) != 1 || pending[0].UserID != aliceID || pending[0].FriendUsername != "alice" {
		t.Fatalf("unexpected pending list: %+v", pending)
	}

	requireStatus(t, env.do(t, http.MethodPost, "/api/friends/requests/"+strconv.FormatInt(aliceID, 10)+"/accept", bobToken, nil), http.StatusNoContent)

	resp = env.do(t, http.MethodGet, "/api/friends", aliceToken, nil)
	requireStatus(t, resp, http.StatusOK)
	list := decodeBody[[]FriendResponse](t, resp)
	if len(list) != 1 || list[0].Status != "accepted" {
		t.Fatalf("unexpected friends list: %+v", list)
	}

	requireStatus(t, env.do(t, http.MethodDelete, friendPath(bobID, ""), aliceToken, nil), http.StatusNoContent)
	requireStatus(t, env.do(t, http.MethodDelete, friendPath(bobID, ""), aliceToken, nil), http.StatusNotFound)
}

func TestFriendRequestErrors(t *testing.T) {
	env := newTestEnv(t)
	token, uid := env.registerUser(t, "alice")

	requireStatus(t, env.do(t, http.MethodPost, "/api/friends/requests", token, map[string]any{"user_id": uid}), http.StatusBadRequest)
	requireStatus(t, env.do(t, http.MethodPost, "/api/friends/requests", token, map[string]any{"user_id": 999}), http.StatusNotFound)
	requireStatus(t, env.do(t, http.MethodPost, "/api/friends/requests", token, map[string]any{}), http.StatusBadRequest)
	requireStatus(t, env.do(t, http.MethodPost, "/api/friends/requests/abc/accept", token, nil), http.StatusBadRequest)
	requireStatus(t, env.do(t, http.MethodGet, "/api/friends", "", nil), http.StatusUnauthorized)
}

func TestBlockEndpoints(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, aliceID := env.registerUser(t, "alice")
	bobToken, bobID := env.registerUser(t, "bob")

	requireStatus(t, env.do(t, http.MethodPost, friendPath(bobID, "/block"), aliceToken, nil), http.StatusNoContent)
	requireStatus(t, env.do(t, http.MethodPost, "/api/friends/requests", bobToken, map[string]any{"user_id": aliceID}), http.StatusConflict)
	requireStatus(t, env.do(t, http.MethodDelete, friendPath(aliceID, "/block"), bobToken, nil), http.StatusNotFound)
	requireStatus(t, env.do(t, http.MethodDelete, friendPath(bobID, "/block"), aliceToken, nil), http.StatusNoContent)
	requireStatus(t, env.do(t, http.MethodPost, "/api/friends/requests", bobToken, map[string]any{"user_id": aliceID}), http.StatusCreated)
}
