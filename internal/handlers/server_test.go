// internal/handlers/server_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unobot/unobot/internal/auth"
	"github.com/unobot/unobot/internal/game"
	"github.com/unobot/unobot/internal/gateway"
	"github.com/unobot/unobot/internal/middleware"
	"github.com/unobot/unobot/internal/registry"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	require.NoError(t, auth.Init(time.Hour))

	log := logrus.New()
	log.SetOutput(io.Discard)

	reg := registry.New(game.Options{WaitingTime: 90, HandSize: 7})
	hub := NewHub(log)
	gw := gateway.New(reg, hub, gateway.Config{
		MinPlayers:           2,
		TimeRemovalAfterSkip: 20,
		MinFastTurnTime:      15,
	}, log)
	hub.BindGateway(gw)

	s := NewServer(gw, reg, hub, log)
	mux := http.NewServeMux()
	s.Routes(mux, middleware.LogMiddleware(log))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func login(t *testing.T, srv *httptest.Server, userID int64, name string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]interface{}{"user_id": userID, "name": name})
	resp, err := http.Post(srv.URL+"/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out["token"])
	return out["token"]
}

func call(t *testing.T, srv *httptest.Server, method, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestLoginValidation(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/auth/login", "application/json", bytes.NewReader([]byte(`{"name":""}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	srv := newTestServer(t)

	resp := call(t, srv, http.MethodPost, "/game/create?chat_id=-1", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGameLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	aliceToken := login(t, srv, 1, "Alice")
	bobToken := login(t, srv, 2, "Bob")
	chat := "?chat_id=-100500"

	resp := call(t, srv, http.MethodPost, "/game/create"+chat, aliceToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	for _, token := range []string{aliceToken, bobToken} {
		resp = call(t, srv, http.MethodPost, "/game/join"+chat, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	// A second join from the same seat is refused.
	resp = call(t, srv, http.MethodPost, "/game/join"+chat, bobToken)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = call(t, srv, http.MethodPost, "/game/start"+chat, aliceToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = call(t, srv, http.MethodGet, "/game/state"+chat, aliceToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap game.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	resp.Body.Close()
	assert.True(t, snap.Started)
	assert.Len(t, snap.Players, 2)
	assert.NotZero(t, snap.CurrentUserID)

	// The current player gets a non-empty menu.
	current := snap.CurrentUserID
	token := aliceToken
	if current == 2 {
		token = bobToken
	}
	resp = call(t, srv, http.MethodGet, "/game/offers"+chat, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var set gateway.OfferSet
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&set))
	resp.Body.Close()
	assert.Len(t, set.Hand, 7)
	assert.NotEmpty(t, set.Offers)
}

func TestOwnerOnlyCommands(t *testing.T) {
	srv := newTestServer(t)
	aliceToken := login(t, srv, 1, "Alice")
	bobToken := login(t, srv, 2, "Bob")
	chat := "?chat_id=-42"

	resp := call(t, srv, http.MethodPost, "/game/create"+chat, aliceToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
	for _, token := range []string{aliceToken, bobToken} {
		resp = call(t, srv, http.MethodPost, "/game/join"+chat, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp = call(t, srv, http.MethodPost, fmt.Sprintf("/game/mode%s&mode=wild", chat), bobToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = call(t, srv, http.MethodPost, fmt.Sprintf("/game/mode%s&mode=wild", chat), aliceToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = call(t, srv, http.MethodPost, fmt.Sprintf("/game/mode%s&mode=bogus", chat), aliceToken)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestStateWithoutGameIs404(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv, 1, "Alice")

	resp := call(t, srv, http.MethodGet, "/game/state?chat_id=-7", token)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
