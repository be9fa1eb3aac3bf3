// internal/game/deck.go
package game

import (
	"math/rand"
	"time"

	"github.com/unobot/unobot/internal/models"
)

// Deck owns the draw pile and the graveyard of played cards. The card
// currently on top of the discard (the game's last card) is held by the game
// itself, never by the deck, so an exhaustion reshuffle naturally excludes it.
//
// Deck is not safe for concurrent use; the owning game's mutex guards it.
type Deck struct {
	cards     []models.Card
	graveyard []models.Card
	rng       *rand.Rand
}

// deckTable maps a game mode to its composition. The composition itself is a
// rule-table detail: classic is the standard distribution, wild doubles every
// action card. Fast and text play with the classic deck.
var deckTable = map[Mode]func(*Deck){
	ModeClassic: (*Deck).fillClassic,
	ModeFast:    (*Deck).fillClassic,
	ModeText:    (*Deck).fillClassic,
	ModeWild:    (*Deck).fillWild,
}

// NewDeck builds a shuffled deck for the given mode.
func NewDeck(mode Mode) *Deck {
	d := &Deck{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	fill, ok := deckTable[mode]
	if !ok {
		fill = (*Deck).fillClassic
	}
	fill(d)
	d.shuffle()
	return d
}

func (d *Deck) fillClassic() {
	for _, color := range models.Colors {
		d.cards = append(d.cards, models.NewNumberCard(color, 0))
		for v := 1; v <= 9; v++ {
			d.cards = append(d.cards,
				models.NewNumberCard(color, v),
				models.NewNumberCard(color, v))
		}
		d.addActions(color, 2)
	}
	d.addWilds(4)
}

func (d *Deck) fillWild() {
	d.fillClassic()
	for _, color := range models.Colors {
		d.addActions(color, 2)
	}
	d.addWilds(4)
}

func (d *Deck) addActions(color models.Color, n int) {
	for i := 0; i < n; i++ {
		d.cards = append(d.cards,
			models.NewSpecialCard(color, models.Skip),
			models.NewSpecialCard(color, models.Reverse),
			models.NewSpecialCard(color, models.DrawTwo))
	}
}

func (d *Deck) addWilds(n int) {
	for i := 0; i < n; i++ {
		d.cards = append(d.cards,
			models.Card{Special: models.Choose},
			models.Card{Special: models.DrawFour})
	}
}

func (d *Deck) shuffle() {
	d.rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// Draw pops the top card. When the pile is empty the graveyard is shuffled
// back in; ErrDeckEmpty is returned only when that too yields nothing.
func (d *Deck) Draw() (models.Card, error) {
	if len(d.cards) == 0 {
		if len(d.graveyard) == 0 {
			return models.Card{}, ErrDeckEmpty
		}
		d.cards = d.graveyard
		d.graveyard = nil
		d.shuffle()
	}
	c := d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return c, nil
}

// DrawN draws up to n cards. On exhaustion it returns whatever it managed to
// pop together with ErrDeckEmpty; a forced draw keeps the partial result.
func (d *Deck) DrawN(n int) ([]models.Card, error) {
	out := make([]models.Card, 0, n)
	for i := 0; i < n; i++ {
		c, err := d.Draw()
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Dismiss buries a played card in the graveyard. A wild that had a color
// chosen for it goes back colorless so reshuffles hand out clean wilds.
func (d *Deck) Dismiss(c models.Card) {
	if c.IsWild() {
		c.Color = ""
	}
	d.graveyard = append(d.graveyard, c)
}

// Remaining reports the size of the draw pile (excluding the graveyard).
func (d *Deck) Remaining() int {
	return len(d.cards)
}
