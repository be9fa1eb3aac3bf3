// internal/game/errors.go
package game

import (
	"errors"
	"fmt"
)

// Recoverable game errors. All of these are handled at the gateway boundary;
// none should take down the process.
var (
	// ErrDeckEmpty means the draw pile and the graveyard are both spent.
	// Callers swallow it and skip the draw.
	ErrDeckEmpty = errors.New("deck empty")

	// ErrNotEnoughPlayers means the ring would drop below the minimum; the
	// caller must finalize the game.
	ErrNotEnoughPlayers = errors.New("not enough players")

	ErrLobbyClosed    = errors.New("lobby closed")
	ErrAlreadyJoined  = errors.New("player already joined")
	ErrAlreadyStarted = errors.New("game already started")
	ErrNotStarted     = errors.New("game not started")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrIllegalCard    = errors.New("card not playable")
	ErrStaleAction    = errors.New("stale action token")
	ErrChoosingColor  = errors.New("color choice pending")
	ErrNoPendingColor = errors.New("no color choice pending")
	ErrNoPendingBluff = errors.New("no bluff to call")
	ErrMustDrawFirst  = errors.New("must draw before passing")
	ErrAlreadyDrew    = errors.New("already drew this turn")
	ErrUnknownMode    = errors.New("unknown game mode")
)

// SkipTooEarlyError rejects a skip while the current player still has
// waiting time left.
type SkipTooEarlyError struct {
	Remaining int // seconds until the skip becomes allowed
}

func (e *SkipTooEarlyError) Error() string {
	return fmt.Sprintf("skip not allowed for another %ds", e.Remaining)
}
