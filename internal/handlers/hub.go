// internal/handlers/hub.go
package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/unobot/unobot/internal/game"
	"github.com/unobot/unobot/internal/gateway"
)

// Hub tracks live WebSocket connections per chat and renders engine events
// into outbound messages. It is the gateway's Notifier; every method may be
// called while the gateway holds a game lock, so writes always happen
// asynchronously and never call back into the gateway synchronously.
type Hub struct {
	log *logrus.Logger

	mu    sync.Mutex
	conns map[int64]map[int64]*websocket.Conn // chat id -> user id -> conn

	gw *gateway.Gateway
}

// NewHub builds an empty hub.
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		log:   log,
		conns: make(map[int64]map[int64]*websocket.Conn),
	}
}

// BindGateway closes the hub/gateway cycle after both exist. The hub uses the
// gateway only to push fresh action menus, and only from goroutines.
func (h *Hub) BindGateway(gw *gateway.Gateway) {
	h.gw = gw
}

// Register tracks a connection. A reconnect replaces the previous one.
func (h *Hub) Register(chatID, userID int64, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[chatID] == nil {
		h.conns[chatID] = make(map[int64]*websocket.Conn)
	}
	h.conns[chatID][userID] = c
}

// Unregister drops a connection, unless a newer one already replaced it.
func (h *Hub) Unregister(chatID, userID int64, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[chatID][userID] == c {
		delete(h.conns[chatID], userID)
		if len(h.conns[chatID]) == 0 {
			delete(h.conns, chatID)
		}
	}
}

func (h *Hub) broadcast(chatID int64, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.WithError(err).Error("failed to marshal broadcast message")
		return
	}
	h.mu.Lock()
	targets := make([]*websocket.Conn, 0, len(h.conns[chatID]))
	for _, c := range h.conns[chatID] {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	go func() {
		for _, c := range targets {
			writeWs(c, data, h.log)
		}
	}()
}

func (h *Hub) sendTo(chatID, userID int64, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.WithError(err).Error("failed to marshal private message")
		return
	}
	h.mu.Lock()
	c := h.conns[chatID][userID]
	h.mu.Unlock()
	if c == nil {
		return
	}
	go writeWs(c, data, h.log)
}

func writeWs(c *websocket.Conn, data []byte, log *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Write(ctx, websocket.MessageText, data); err != nil {
		log.WithError(err).Warn("failed to write WebSocket message")
	}
}

// pushOffers fetches and delivers the current action menu to the user. Runs
// on its own goroutine because building the menu takes the game lock.
func (h *Hub) pushOffers(chatID, userID int64) {
	if h.gw == nil {
		return
	}
	go func() {
		set, err := h.gw.Offers(userID, chatID)
		if err != nil {
			return
		}
		h.sendTo(chatID, userID, map[string]interface{}{
			"type":   "offers",
			"offers": set,
		})
	}()
}

// --- gateway.Notifier ---

func (h *Hub) TurnAdvanced(g *game.Game, prev, current *game.Player) {
	msg := map[string]interface{}{
		"type":    "turn",
		"user_id": current.User.ID,
		"name":    current.User.Name,
	}
	if prev != nil {
		msg["prev_user_id"] = prev.User.ID
	}
	h.broadcast(g.ChatID, msg)
	h.pushOffers(g.ChatID, current.User.ID)
}

func (h *Hub) PlayerEliminated(g *game.Game, p *game.Player, reason gateway.EliminationReason) {
	h.broadcast(g.ChatID, map[string]interface{}{
		"type":    "player_eliminated",
		"user_id": p.User.ID,
		"name":    p.User.Name,
		"reason":  string(reason),
	})
}

func (h *Hub) PlayerFinished(g *game.Game, p *game.Player, place int) {
	h.broadcast(g.ChatID, map[string]interface{}{
		"type":    "player_finished",
		"user_id": p.User.ID,
		"name":    p.User.Name,
		"place":   place,
	})
}

func (h *Hub) GameEnded(g *game.Game, winner *game.Player) {
	msg := map[string]interface{}{"type": "game_ended"}
	if winner != nil {
		msg["winner_id"] = winner.User.ID
		msg["winner_name"] = winner.User.Name
	}
	h.broadcast(g.ChatID, msg)
}

func (h *Hub) ActionRejected(g *game.Game, userID int64, reason error) {
	// With no game resolved there is no chat to route the rejection to.
	if g == nil {
		return
	}
	h.sendTo(g.ChatID, userID, map[string]interface{}{
		"type":    "rejected",
		"message": reason.Error(),
	})
}

func (h *Hub) ColorChoiceRequired(g *game.Game, p *game.Player) {
	h.broadcast(g.ChatID, map[string]interface{}{
		"type":    "choose_color",
		"user_id": p.User.ID,
		"name":    p.User.Name,
	})
	h.pushOffers(g.ChatID, p.User.ID)
}

func (h *Hub) LastCardAnnounced(g *game.Game, p *game.Player) {
	h.broadcast(g.ChatID, map[string]interface{}{
		"type":    "uno",
		"user_id": p.User.ID,
		"name":    p.User.Name,
	})
}
