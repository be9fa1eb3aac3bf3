// internal/models/card_test.go
package models

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardStringRoundTrip(t *testing.T) {
	cards := []Card{
		NewNumberCard(Red, 0),
		NewNumberCard(Yellow, 9),
		NewSpecialCard(Green, Skip),
		NewSpecialCard(Blue, Reverse),
		NewSpecialCard(Red, DrawTwo),
		{Special: Choose},
		{Special: DrawFour},
	}
	for _, c := range cards {
		parsed, err := ParseCard(c.String())
		require.NoError(t, err, "parsing %q", c.String())
		assert.True(t, parsed.Equal(c), "round trip of %q", c.String())
	}
}

func TestParseCardRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "purple_5", "r_99", "r_", "draw_five", "r"} {
		_, err := ParseCard(s)
		assert.Error(t, err, "expected error for %q", s)
	}
}

func TestWildKeepsIDAfterColorChoice(t *testing.T) {
	wild := Card{Special: DrawFour}
	stamped := wild
	stamped.Color = Blue

	assert.Equal(t, "draw_four", stamped.String())
	assert.True(t, stamped.Same(wild))
	assert.False(t, stamped.Equal(wild))
}

func TestCardOrdering(t *testing.T) {
	cards := []Card{
		{Special: DrawFour},
		NewSpecialCard(Red, Skip),
		NewNumberCard(Blue, 7),
		NewNumberCard(Blue, 2),
		{Special: Choose},
		NewSpecialCard(Blue, DrawTwo),
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Less(cards[j]) })

	want := []string{"b_2", "b_7", "b_draw", "r_skip", "colorchooser", "draw_four"}
	got := make([]string, len(cards))
	for i, c := range cards {
		got[i] = c.String()
	}
	assert.Equal(t, want, got)
}

func TestDrawAmount(t *testing.T) {
	assert.Equal(t, 2, NewSpecialCard(Red, DrawTwo).DrawAmount())
	assert.Equal(t, 4, Card{Special: DrawFour}.DrawAmount())
	assert.Equal(t, 0, NewNumberCard(Red, 5).DrawAmount())
	assert.Equal(t, 0, Card{Special: Choose}.DrawAmount())
}
