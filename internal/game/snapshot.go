// internal/game/snapshot.go
package game

import (
	"github.com/google/uuid"

	"github.com/unobot/unobot/internal/models"
)

// PlayerSnapshot is one seat's public view.
type PlayerSnapshot struct {
	UserID      int64  `json:"userId"`
	Name        string `json:"name"`
	Cards       int    `json:"cards"`
	WaitingTime int    `json:"waitingTime"`
	Current     bool   `json:"current"`
}

// Snapshot is a consistent public view of a game for status displays. The
// engine does not render it.
type Snapshot struct {
	ID            uuid.UUID        `json:"id"`
	ChatID        int64            `json:"chatId"`
	Mode          Mode             `json:"mode"`
	Started       bool             `json:"started"`
	Open          bool             `json:"open"`
	Over          bool             `json:"over"`
	ChoosingColor bool             `json:"choosingColor"`
	DrawCounter   int              `json:"drawCounter"`
	LastCard      string           `json:"lastCard,omitempty"`
	LastColor     models.Color     `json:"lastColor,omitempty"`
	CurrentUserID int64            `json:"currentUserId,omitempty"`
	DeckRemaining int              `json:"deckRemaining"`
	PlayersWon    int              `json:"playersWon"`
	Players       []PlayerSnapshot `json:"players"`
}

// Snapshot captures the game state under the game lock.
func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := Snapshot{
		ID:            g.ID,
		ChatID:        g.ChatID,
		Mode:          g.mode,
		Started:       g.started,
		Open:          g.open,
		Over:          g.over,
		ChoosingColor: g.choosingColor,
		DrawCounter:   g.drawCounter,
		PlayersWon:    g.playersWon,
	}
	if g.started {
		s.LastCard = g.lastCard.String()
		s.LastColor = g.lastCard.Color
		s.CurrentUserID = g.players[g.current].User.ID
		s.DeckRemaining = g.deck.Remaining()
	}
	for _, p := range g.activePlayersLocked() {
		s.Players = append(s.Players, PlayerSnapshot{
			UserID:      p.User.ID,
			Name:        p.User.Name,
			Cards:       len(p.Hand),
			WaitingTime: p.WaitingTime,
			Current:     g.started && g.current == p.idx,
		})
	}
	return s
}

// OfferToken returns the anti-cheat token to embed in action offers built
// for p right now.
func (g *Game) OfferToken(p *Player) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return p.AntiCheat
}

// HandOf returns a sorted copy of p's hand.
func (g *Game) HandOf(p *Player) []models.Card {
	g.mu.Lock()
	defer g.mu.Unlock()
	return p.SortedHand()
}

// PlayableFor returns the cards p may legally play right now, plus whether
// the draw, pass, and bluff offers apply.
func (g *Game) PlayableFor(p *Player) (cards []models.Card, canDraw, canPass, canBluff bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.started || g.over || g.players[g.current] != p {
		return nil, false, false, false
	}
	if g.choosingColor {
		return nil, false, false, false
	}
	cards = p.PlayableCards()
	canDraw = g.drawCounter > 0 || !p.Drew
	canPass = p.Drew && g.drawCounter == 0
	canBluff = g.lastCard.Special == models.DrawFour && g.drawCounter > 0
	return cards, canDraw, canPass, canBluff
}

// CountdownSeconds returns the auto-skip delay for the current player,
// floored at minSeconds. ok is false when no countdown should be armed.
func (g *Game) CountdownSeconds(minSeconds int) (seconds int, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.started || g.over {
		return 0, false
	}
	seconds = g.players[g.current].WaitingTime
	if seconds < minSeconds {
		seconds = minSeconds
	}
	return seconds, true
}

// ChoosingColor reports whether the game is waiting on a color choice.
func (g *Game) ChoosingColor() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.choosingColor
}
