// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/unobot/unobot/internal/gateway"
	"github.com/unobot/unobot/internal/middleware"
	"github.com/unobot/unobot/internal/models"
)

// ClientMessage is one inbound WebSocket frame. Action frames echo the token
// from the offer being exercised; lobby commands and skip carry none.
type ClientMessage struct {
	// Type is the command: play, draw, pass, color, bluff, skip; the lobby
	// commands new, join, leave, start, select, open, close, mode; or the
	// queries offers, hand, state, info, ping.
	Type  string `json:"type"`
	Card  string `json:"card,omitempty"`
	Color string `json:"color,omitempty"`
	Mode  string `json:"mode,omitempty"`
	Token int    `json:"token"`
}

// WSHandler upgrades the connection for a chat's game stream. The path is
// /game/ws/{chat_id}; authentication rides in the "token" query parameter or
// the Authorization header.
func WSHandler(logger *logrus.Logger, s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatPart := strings.TrimPrefix(r.URL.Path, "/game/ws/")
		chatID, err := strconv.ParseInt(strings.SplitN(chatPart, "/", 2)[0], 10, 64)
		if err != nil {
			http.Error(w, "Invalid chat_id in path (/game/ws/{chat_id})", http.StatusBadRequest)
			return
		}

		user, err := userFromRequest(r)
		if err != nil {
			http.Error(w, "Authentication failed", http.StatusUnauthorized)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"game"},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.WithError(err).Warn("WebSocket accept error")
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler exit")

		if c.Subprotocol() != "game" {
			c.Close(BadSubprotocolError, "client must use the 'game' subprotocol")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		s.hub.Register(chatID, user.ID, c)
		defer s.hub.Unregister(chatID, user.ID, c)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		readErr := readMessages(ctx, c, s, chatID, user, logger)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
	}
}

// readMessages runs the blocking read loop, routing action frames to the
// gateway. It returns the terminal read error (nil for a normal closure).
func readMessages(ctx context.Context, c *websocket.Conn, s *Server, chatID int64, user models.User, logger *logrus.Logger) error {
	userID := user.ID
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sendWsError(ctx, c, "invalid JSON", logger)
			continue
		}

		switch msg.Type {
		case "play", "draw", "pass", "color", "bluff", "skip":
			act := gateway.Action{
				UserID: userID,
				ChatID: chatID,
				Kind:   gateway.Kind(msg.Type),
				Card:   msg.Card,
				Color:  msg.Color,
				Token:  msg.Token,
			}
			// Rejections flow back through the hub; nothing to do here.
			_ = s.gw.Deliver(ctx, act)

		case "new":
			g := s.gw.NewGame(chatID, user)
			sendWsMessage(ctx, c, map[string]interface{}{"type": "created", "game_id": g.ID}, logger)

		case "join":
			if _, err := s.gw.Join(chatID, user); err != nil {
				sendWsError(ctx, c, err.Error(), logger)
				continue
			}
			sendWsMessage(ctx, c, map[string]string{"type": "joined"}, logger)

		case "leave":
			if err := s.gw.Leave(chatID, userID); err != nil {
				sendWsError(ctx, c, err.Error(), logger)
			}

		case "start":
			if err := s.gw.Start(chatID, userID); err != nil {
				sendWsError(ctx, c, err.Error(), logger)
			}

		case "select":
			if err := s.gw.SelectGame(userID, chatID); err != nil {
				sendWsError(ctx, c, err.Error(), logger)
			}

		case "open", "close":
			if err := s.gw.SetOpen(chatID, userID, msg.Type == "open"); err != nil {
				sendWsError(ctx, c, err.Error(), logger)
			}

		case "mode":
			if err := s.gw.SetMode(chatID, userID, msg.Mode); err != nil {
				sendWsError(ctx, c, err.Error(), logger)
			}

		case "offers", "hand":
			set, err := s.gw.Offers(userID, chatID)
			if err != nil {
				sendWsError(ctx, c, err.Error(), logger)
				continue
			}
			sendWsMessage(ctx, c, map[string]interface{}{"type": "offers", "offers": set}, logger)

		case "state", "info":
			g, err := s.reg.ActiveGame(chatID)
			if err != nil {
				sendWsError(ctx, c, err.Error(), logger)
				continue
			}
			sendWsMessage(ctx, c, map[string]interface{}{"type": "state", "state": g.Snapshot()}, logger)

		case "ping":
			sendWsMessage(ctx, c, map[string]string{"type": "pong"}, logger)

		default:
			sendWsError(ctx, c, "unknown message type: "+msg.Type, logger)
		}
	}
}

func sendWsMessage(ctx context.Context, c *websocket.Conn, message interface{}, logger *logrus.Logger) {
	data, err := json.Marshal(message)
	if err != nil {
		logger.WithError(err).Error("failed to marshal WebSocket message")
		return
	}
	writeWs(c, data, logger)
}

func sendWsError(ctx context.Context, c *websocket.Conn, errorMsg string, logger *logrus.Logger) {
	sendWsMessage(ctx, c, map[string]interface{}{
		"type":    "error",
		"message": errorMsg,
	}, logger)
}
