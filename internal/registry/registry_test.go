// internal/registry/registry_test.go
package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unobot/unobot/internal/game"
	"github.com/unobot/unobot/internal/models"
)

func newRegistry() *Registry {
	return New(game.Options{WaitingTime: 90, Open: true})
}

func user(id int64) models.User {
	return models.User{ID: id, Name: "u"}
}

func TestJoinRequiresGame(t *testing.T) {
	r := newRegistry()
	_, err := r.Join(1, user(1))
	assert.ErrorIs(t, err, ErrNoActiveGame)
}

func TestNewGameBecomesActive(t *testing.T) {
	r := newRegistry()
	g1 := r.NewGame(1, user(1))

	got, err := r.ActiveGame(1)
	require.NoError(t, err)
	assert.Same(t, g1, got)

	// A newer game shadows the old one on the stack.
	g2 := r.NewGame(1, user(2))
	got, err = r.ActiveGame(1)
	require.NoError(t, err)
	assert.Same(t, g2, got)

	byID, ok := r.GameByID(g1.ID)
	assert.True(t, ok)
	assert.Same(t, g1, byID)
}

func TestJoinTracksMembershipAndSelection(t *testing.T) {
	r := newRegistry()
	r.NewGame(1, user(1))
	r.NewGame(2, user(9))

	p1, err := r.Join(1, user(5))
	require.NoError(t, err)
	p2, err := r.Join(2, user(5))
	require.NoError(t, err)

	// Latest join is the selected seat.
	cur, err := r.CurrentPlayer(5)
	require.NoError(t, err)
	assert.Same(t, p2, cur)

	require.NoError(t, r.SelectGame(5, 1))
	cur, err = r.CurrentPlayer(5)
	require.NoError(t, err)
	assert.Same(t, p1, cur)

	assert.Len(t, r.Memberships(5), 2)

	_, err = r.Join(1, user(5))
	assert.ErrorIs(t, err, game.ErrAlreadyJoined)
}

func TestPlayerForUserInChat(t *testing.T) {
	r := newRegistry()
	r.NewGame(1, user(1))
	p, err := r.Join(1, user(5))
	require.NoError(t, err)

	got, err := r.PlayerForUserInChat(5, 1)
	require.NoError(t, err)
	assert.Same(t, p, got)

	_, err = r.PlayerForUserInChat(6, 1)
	assert.ErrorIs(t, err, ErrNoActiveGame)
	_, err = r.PlayerForUserInChat(5, 2)
	assert.ErrorIs(t, err, ErrNoActiveGame)
}

func TestLeaveCleansUp(t *testing.T) {
	r := newRegistry()
	r.NewGame(1, user(1))
	p, err := r.Join(1, user(5))
	require.NoError(t, err)

	require.NoError(t, r.Leave(p))
	assert.Empty(t, r.Memberships(5))
	_, err = r.CurrentPlayer(5)
	assert.ErrorIs(t, err, ErrNoActiveGame)
}

func TestLeaveRunningTwoPlayerGamePropagates(t *testing.T) {
	r := newRegistry()
	g := r.NewGame(1, user(1))
	p1, err := r.Join(1, user(1))
	require.NoError(t, err)
	_, err = r.Join(1, user(2))
	require.NoError(t, err)
	require.NoError(t, g.Start(2))

	err = r.Leave(p1)
	assert.ErrorIs(t, err, game.ErrNotEnoughPlayers)
	// The membership survives; the caller ends the game instead.
	assert.Len(t, r.Memberships(1), 1)
}

func TestEndGameDeregistersEverything(t *testing.T) {
	r := newRegistry()
	g := r.NewGame(1, user(1))
	_, err := r.Join(1, user(1))
	require.NoError(t, err)
	_, err = r.Join(1, user(2))
	require.NoError(t, err)

	r.EndGame(g)

	assert.False(t, r.IsActive(g))
	assert.False(t, g.Running())
	_, err = r.ActiveGame(1)
	assert.ErrorIs(t, err, ErrNoActiveGame)
	_, ok := r.GameByID(g.ID)
	assert.False(t, ok)
	assert.Empty(t, r.Memberships(1))
	assert.Empty(t, r.Memberships(2))

	// Ending twice is harmless.
	r.EndGame(g)
}

func TestCurrentPlayerForEndedGame(t *testing.T) {
	r := newRegistry()
	g := r.NewGame(1, user(1))
	_, err := r.Join(1, user(5))
	require.NoError(t, err)

	r.EndGame(g)
	_, err = r.CurrentPlayer(5)
	assert.ErrorIs(t, err, ErrNoActiveGame)
}
