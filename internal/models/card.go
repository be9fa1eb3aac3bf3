// internal/models/card.go
package models

import (
	"fmt"
	"strings"
)

// Color is one of the four playable colors. Wild cards carry an empty color
// until a color is chosen for them.
type Color string

const (
	Red    Color = "r"
	Green  Color = "g"
	Blue   Color = "b"
	Yellow Color = "y"
)

// Colors lists the choosable colors in display order.
var Colors = []Color{Blue, Green, Red, Yellow}

// Special identifies the non-number card kinds.
type Special string

const (
	Skip     Special = "skip"
	Reverse  Special = "reverse"
	DrawTwo  Special = "draw"
	Choose   Special = "colorchooser"
	DrawFour Special = "draw_four"
)

// Card is an immutable card value. Number cards have Special == "" and a
// Value in 0..9. Colored action cards (skip, reverse, draw two) carry both a
// color and a special kind. Wild cards (choose, draw four) have no color of
// their own; the game stamps the chosen color onto its copy of the last card.
type Card struct {
	Color   Color   `json:"color,omitempty"`
	Value   int     `json:"value"`
	Special Special `json:"special,omitempty"`
}

// NewNumberCard builds a number card.
func NewNumberCard(color Color, value int) Card {
	return Card{Color: color, Value: value}
}

// NewSpecialCard builds a colored action card or a wild card.
func NewSpecialCard(color Color, special Special) Card {
	return Card{Color: color, Special: special}
}

// IsWild reports whether the card can be played on anything.
func (c Card) IsWild() bool {
	return c.Special == Choose || c.Special == DrawFour
}

// DrawAmount is the forced-draw obligation the card adds when played.
func (c Card) DrawAmount() int {
	switch c.Special {
	case DrawTwo:
		return 2
	case DrawFour:
		return 4
	default:
		return 0
	}
}

// Equal compares by (color, special, value). A wild card with a chosen color
// is not equal to the bare wild in a player's hand.
func (c Card) Equal(o Card) bool {
	return c.Color == o.Color && c.Special == o.Special && c.Value == o.Value
}

// Same ignores the stamped color on wilds, so a bare wild in hand matches the
// wild referenced by an action offer.
func (c Card) Same(o Card) bool {
	if c.IsWild() && o.IsWild() {
		return c.Special == o.Special
	}
	return c.Equal(o)
}

// String renders the canonical card id: "r_5", "g_skip", "colorchooser",
// "draw_four". Wilds keep their bare name regardless of a chosen color so the
// id round-trips through ParseCard.
func (c Card) String() string {
	if c.IsWild() {
		return string(c.Special)
	}
	if c.Special != "" {
		return fmt.Sprintf("%s_%s", c.Color, c.Special)
	}
	return fmt.Sprintf("%s_%d", c.Color, c.Value)
}

// sortRank orders specials after numbers within a color.
func (c Card) sortRank() int {
	switch c.Special {
	case "":
		return c.Value
	case DrawTwo:
		return 10
	case Reverse:
		return 11
	case Skip:
		return 12
	case Choose:
		return 13
	case DrawFour:
		return 14
	}
	return 15
}

// Less orders cards for stable display: grouped by color, numbers before
// actions, wilds last.
func (c Card) Less(o Card) bool {
	if c.IsWild() != o.IsWild() {
		return !c.IsWild()
	}
	if c.Color != o.Color {
		return c.Color < o.Color
	}
	return c.sortRank() < o.sortRank()
}

// ParseCard is the inverse of String. It accepts the canonical ids produced
// by action offers.
func ParseCard(s string) (Card, error) {
	switch Special(s) {
	case Choose, DrawFour:
		return Card{Special: Special(s)}, nil
	}
	parts := strings.SplitN(s, "_", 2)
	if len(parts) != 2 {
		return Card{}, fmt.Errorf("malformed card id %q", s)
	}
	color := Color(parts[0])
	switch color {
	case Red, Green, Blue, Yellow:
	default:
		return Card{}, fmt.Errorf("unknown color in card id %q", s)
	}
	switch Special(parts[1]) {
	case Skip, Reverse, DrawTwo:
		return Card{Color: color, Special: Special(parts[1])}, nil
	}
	if len(parts[1]) == 1 && parts[1][0] >= '0' && parts[1][0] <= '9' {
		return Card{Color: color, Value: int(parts[1][0] - '0')}, nil
	}
	return Card{}, fmt.Errorf("unknown card id %q", s)
}
