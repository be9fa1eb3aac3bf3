// internal/game/player.go
package game

import (
	"sort"
	"time"

	"github.com/unobot/unobot/internal/models"
)

// Player is one seat in one game. A user holds a separate Player per joined
// game. Ring order lives in the arena indices next/prev, which always link
// the game's active seats; removal rewires two slots and never moves seats.
type Player struct {
	User models.User

	Hand []models.Card

	// WaitingTime is the number of seconds this player may sit on their turn
	// before a skip is allowed (and before the fast-mode countdown fires). It
	// decays on every skip and is floored at 0.
	WaitingTime int

	// AntiCheat is a monotonic counter incremented on every accepted action
	// and every skip. Action offers embed its value at build time; a mismatch
	// on exercise means the offer is stale.
	AntiCheat int

	// TurnStarted is stamped when this player becomes current.
	TurnStarted time.Time

	// Drew records whether the mandatory draw for this turn happened.
	Drew bool

	// Bluffing is recorded at the moment a wild draw four is played: true if
	// the player then held another legally playable non-wild card. It is
	// never recomputed against later hand state.
	Bluffing bool

	game *Game

	idx, next, prev int
	active          bool
}

// Game returns the game this seat belongs to.
func (p *Player) Game() *Game {
	return p.game
}

// Active reports whether the seat is still linked into the ring.
func (p *Player) Active() bool {
	return p.active
}

// SortedHand returns the hand in stable display order.
func (p *Player) SortedHand() []models.Card {
	out := make([]models.Card, len(p.Hand))
	copy(out, p.Hand)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// holds reports whether the hand contains a card matching c (wild color
// stamps ignored).
func (p *Player) holds(c models.Card) bool {
	for _, h := range p.Hand {
		if h.Same(c) {
			return true
		}
	}
	return false
}

// removeFromHand removes one instance of c. Duplicates by value are legal;
// only the first match goes.
func (p *Player) removeFromHand(c models.Card) bool {
	for i, h := range p.Hand {
		if h.Same(c) {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return true
		}
	}
	return false
}

// playable reports whether c may be played on last given the pending forced
// draw. While a draw obligation is pending only cards that extend the stack
// are playable: a draw two on a draw-two chain, a wild draw four on either.
func playable(c, last models.Card, drawCounter int) bool {
	if drawCounter > 0 {
		if last.Special == models.DrawFour {
			return c.Special == models.DrawFour
		}
		return c.Special == models.DrawTwo || c.Special == models.DrawFour
	}
	if c.IsWild() {
		return true
	}
	if c.Color == last.Color {
		return true
	}
	if c.Special != "" {
		return c.Special == last.Special
	}
	return last.Special == "" && !last.IsWild() && c.Value == last.Value
}

// PlayableCards returns the subset of the hand that may legally be played
// right now. Empty while a color choice is pending.
func (p *Player) PlayableCards() []models.Card {
	g := p.game
	if !g.started || g.choosingColor {
		return nil
	}
	var out []models.Card
	for _, c := range p.SortedHand() {
		if playable(c, g.lastCard, g.drawCounter) {
			out = append(out, c)
		}
	}
	return out
}

// hasNonWildPlay reports whether the hand, minus one instance of exclude,
// holds a non-wild card playable on last. This is the bluff predicate,
// evaluated at draw-four play time.
func (p *Player) hasNonWildPlay(last models.Card, exclude models.Card) bool {
	skipped := false
	for _, c := range p.Hand {
		if !skipped && c.Same(exclude) {
			skipped = true
			continue
		}
		if !c.IsWild() && playable(c, last, 0) {
			return true
		}
	}
	return false
}

// drawFirstHand deals the opening hand.
func (p *Player) drawFirstHand(size int) error {
	cards, err := p.game.deck.DrawN(size)
	p.Hand = append(p.Hand, cards...)
	return err
}
