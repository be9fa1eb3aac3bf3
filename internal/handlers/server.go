// internal/handlers/server.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/unobot/unobot/internal/auth"
	"github.com/unobot/unobot/internal/game"
	"github.com/unobot/unobot/internal/gateway"
	"github.com/unobot/unobot/internal/models"
	"github.com/unobot/unobot/internal/registry"
)

// Server bundles the HTTP surface over the engine: session issuing, lobby
// commands and read-only state, with the WebSocket stream alongside.
type Server struct {
	gw  *gateway.Gateway
	reg *registry.Registry
	hub *Hub
	log *logrus.Logger
}

// NewServer wires the HTTP surface.
func NewServer(gw *gateway.Gateway, reg *registry.Registry, hub *Hub, log *logrus.Logger) *Server {
	return &Server{gw: gw, reg: reg, hub: hub, log: log}
}

// Routes registers all endpoints on the mux.
func (s *Server) Routes(mux *http.ServeMux, logMw func(http.Handler) http.Handler) {
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, logMw(h))
	}
	route("/auth/login", s.LoginHandler)
	route("/game/create", s.CreateGameHandler)
	route("/game/join", s.JoinHandler)
	route("/game/start", s.StartHandler)
	route("/game/leave", s.LeaveHandler)
	route("/game/kill", s.KillHandler)
	route("/game/kick", s.KickHandler)
	route("/game/open", s.OpenHandler)
	route("/game/mode", s.ModeHandler)
	route("/game/translate", s.TranslateHandler)
	route("/game/select", s.SelectHandler)
	route("/game/state", s.StateHandler)
	route("/game/offers", s.OffersHandler)
	mux.Handle("/game/ws/", logMw(WSHandler(s.log, s)))
}

type loginRequest struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
}

// LoginHandler issues a session token for a user identity. Identities are
// client-asserted, in the ephemeral-guest style; the token just pins one per
// connection.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == 0 || req.Name == "" {
		writeError(w, http.StatusBadRequest, "user_id and name are required")
		return
	}
	token, err := auth.CreateJWT(req.UserID, req.Name)
	if err != nil {
		s.log.WithError(err).Error("failed to issue token")
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// CreateGameHandler opens a new lobby in the chat; the caller becomes owner.
func (s *Server) CreateGameHandler(w http.ResponseWriter, r *http.Request) {
	user, chatID, ok := s.authedChat(w, r)
	if !ok {
		return
	}
	g := s.gw.NewGame(chatID, user)
	writeJSON(w, http.StatusCreated, g.Snapshot())
}

// JoinHandler seats the caller in the chat's active game.
func (s *Server) JoinHandler(w http.ResponseWriter, r *http.Request) {
	user, chatID, ok := s.authedChat(w, r)
	if !ok {
		return
	}
	if _, err := s.gw.Join(chatID, user); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "joined"})
}

// StartHandler launches the chat's active game.
func (s *Server) StartHandler(w http.ResponseWriter, r *http.Request) {
	user, chatID, ok := s.authedChat(w, r)
	if !ok {
		return
	}
	if err := s.gw.Start(chatID, user.ID); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

// LeaveHandler removes the caller's seat.
func (s *Server) LeaveHandler(w http.ResponseWriter, r *http.Request) {
	user, chatID, ok := s.authedChat(w, r)
	if !ok {
		return
	}
	if err := s.gw.Leave(chatID, user.ID); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

// KillHandler force-ends the chat's active game. Owner-only.
func (s *Server) KillHandler(w http.ResponseWriter, r *http.Request) {
	user, chatID, ok := s.authedChat(w, r)
	if !ok {
		return
	}
	if err := s.gw.Kill(chatID, user.ID); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "killed"})
}

// KickHandler removes another player's seat. Owner-only.
func (s *Server) KickHandler(w http.ResponseWriter, r *http.Request) {
	user, chatID, ok := s.authedChat(w, r)
	if !ok {
		return
	}
	targetID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "user_id query parameter required")
		return
	}
	if err := s.gw.Kick(chatID, user.ID, targetID); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "kicked"})
}

// OpenHandler toggles mid-game joins. Owner-only.
func (s *Server) OpenHandler(w http.ResponseWriter, r *http.Request) {
	user, chatID, ok := s.authedChat(w, r)
	if !ok {
		return
	}
	open, err := strconv.ParseBool(r.URL.Query().Get("open"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "open query parameter required")
		return
	}
	if err := s.gw.SetOpen(chatID, user.ID, open); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"open": open})
}

// ModeHandler switches the rule table pre-start. Owner-only.
func (s *Server) ModeHandler(w http.ResponseWriter, r *http.Request) {
	user, chatID, ok := s.authedChat(w, r)
	if !ok {
		return
	}
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		writeError(w, http.StatusBadRequest, "mode query parameter required")
		return
	}
	if err := s.gw.SetMode(chatID, user.ID, mode); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mode": mode})
}

// TranslateHandler toggles multi-translation rendering. Owner-only.
func (s *Server) TranslateHandler(w http.ResponseWriter, r *http.Request) {
	user, chatID, ok := s.authedChat(w, r)
	if !ok {
		return
	}
	on, err := strconv.ParseBool(r.URL.Query().Get("on"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "on query parameter required")
		return
	}
	if err := s.gw.SetTranslate(chatID, user.ID, on); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"translate": on})
}

// SelectHandler switches which joined game gets the caller's chat-less
// commands.
func (s *Server) SelectHandler(w http.ResponseWriter, r *http.Request) {
	user, chatID, ok := s.authedChat(w, r)
	if !ok {
		return
	}
	if err := s.gw.SelectGame(user.ID, chatID); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "selected"})
}

// StateHandler returns the chat's public game snapshot.
func (s *Server) StateHandler(w http.ResponseWriter, r *http.Request) {
	_, chatID, ok := s.authedChat(w, r)
	if !ok {
		return
	}
	g, err := s.reg.ActiveGame(chatID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g.Snapshot())
}

// OffersHandler returns the caller's current action menu.
func (s *Server) OffersHandler(w http.ResponseWriter, r *http.Request) {
	user, chatID, ok := s.authedChat(w, r)
	if !ok {
		return
	}
	set, err := s.gw.Offers(user.ID, chatID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

// authedChat authenticates the request and parses the chat_id parameter,
// writing the HTTP error itself when either fails.
func (s *Server) authedChat(w http.ResponseWriter, r *http.Request) (models.User, int64, bool) {
	user, err := userFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return models.User{}, 0, false
	}
	chatID, err := strconv.ParseInt(r.URL.Query().Get("chat_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "chat_id query parameter required")
		return models.User{}, 0, false
	}
	return user, chatID, true
}

// userFromRequest resolves the caller from the Authorization header or the
// "token" query parameter (WebSocket clients cannot set headers).
func userFromRequest(r *http.Request) (models.User, error) {
	token := r.URL.Query().Get("token")
	if h := r.Header.Get("Authorization"); h != "" {
		token = strings.TrimPrefix(h, "Bearer ")
	}
	userID, name, err := auth.AuthenticateJWT(token)
	if err != nil {
		return models.User{}, err
	}
	return models.User{ID: userID, Name: name}, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps engine failures onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusConflict
	var early *game.SkipTooEarlyError
	switch {
	case errors.Is(err, registry.ErrNoActiveGame):
		status = http.StatusNotFound
	case errors.Is(err, gateway.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, game.ErrUnknownMode):
		status = http.StatusBadRequest
	case errors.As(err, &early):
		status = http.StatusTooEarly
	}
	writeError(w, status, err.Error())
}
