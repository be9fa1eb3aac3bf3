// internal/gateway/offers.go
package gateway

import (
	"github.com/google/uuid"

	"github.com/unobot/unobot/internal/game"
	"github.com/unobot/unobot/internal/models"
	"github.com/unobot/unobot/internal/registry"
)

// Offer is one action the player may exercise right now. The transport
// renders it however it likes; echoing it back as an Action with the same
// Token is what makes it valid.
type Offer struct {
	Kind  Kind   `json:"kind"`
	Card  string `json:"card,omitempty"`
	Color string `json:"color,omitempty"`
	Token int    `json:"token"`
}

// OfferSet is the full action menu for one player in one game, plus the
// private context needed to render it.
type OfferSet struct {
	GameID      uuid.UUID     `json:"gameId"`
	Hand        []models.Card `json:"hand"`
	DrawCounter int           `json:"drawCounter"`
	Offers      []Offer       `json:"offers"`
}

// Offers builds the current action menu for the user. ChatID 0 routes
// through the user's selected game. The menu is computed under the game
// lock so every offer carries the token a subsequent Deliver will check.
func (gw *Gateway) Offers(userID, chatID int64) (OfferSet, error) {
	p, err := gw.resolve(Action{UserID: userID, ChatID: chatID})
	if err != nil {
		return OfferSet{}, err
	}
	g := p.Game()
	unlock := gw.lockGame(g.ID)
	defer unlock()
	if !gw.reg.IsActive(g) {
		return OfferSet{}, registry.ErrNoActiveGame
	}
	return buildOffers(g, p), nil
}

func buildOffers(g *game.Game, p *game.Player) OfferSet {
	token := g.OfferToken(p)
	set := OfferSet{
		GameID:      g.ID,
		Hand:        g.HandOf(p),
		DrawCounter: g.Snapshot().DrawCounter,
	}

	if g.ChoosingColor() && g.CurrentPlayer() == p {
		for _, c := range models.Colors {
			set.Offers = append(set.Offers, Offer{Kind: KindColor, Color: string(c), Token: token})
		}
		return set
	}

	cards, canDraw, canPass, canBluff := g.PlayableFor(p)
	for _, c := range cards {
		set.Offers = append(set.Offers, Offer{Kind: KindPlay, Card: c.String(), Token: token})
	}
	if canDraw {
		set.Offers = append(set.Offers, Offer{Kind: KindDraw, Token: token})
	}
	if canPass {
		set.Offers = append(set.Offers, Offer{Kind: KindPass, Token: token})
	}
	if canBluff {
		set.Offers = append(set.Offers, Offer{Kind: KindBluff, Token: token})
	}
	return set
}
