// internal/registry/registry.go
package registry

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/unobot/unobot/internal/game"
	"github.com/unobot/unobot/internal/models"
)

// ErrNoActiveGame means an action targeted a session that is not (or no
// longer) in the registry.
var ErrNoActiveGame = errors.New("no active game")

// Registry is the process-wide session index: chat -> stack of games (only
// the top is active), user -> seat per joined game, and user -> currently
// selected seat for ambiguous commands. It is owned by the top-level service
// and passed by handle; all mutations funnel through its methods.
type Registry struct {
	mu sync.Mutex

	chatGames   map[int64][]*game.Game
	gamesByID   map[uuid.UUID]*game.Game
	userPlayers map[int64][]*game.Player
	userCurrent map[int64]*game.Player

	opts game.Options
}

// New builds an empty registry. opts is the template applied to every game
// it creates.
func New(opts game.Options) *Registry {
	return &Registry{
		chatGames:   make(map[int64][]*game.Game),
		gamesByID:   make(map[uuid.UUID]*game.Game),
		userPlayers: make(map[int64][]*game.Player),
		userCurrent: make(map[int64]*game.Player),
		opts:        opts,
	}
}

// NewGame creates a lobby game for a chat and pushes it onto the chat's
// stack, making it the chat's active game.
func (r *Registry) NewGame(chatID int64, starter models.User) *game.Game {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := game.NewGame(chatID, starter, r.opts)
	r.chatGames[chatID] = append(r.chatGames[chatID], g)
	r.gamesByID[g.ID] = g
	return g
}

// ActiveGame returns the chat's current (top of stack) game.
func (r *Registry) ActiveGame(chatID int64) (*game.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	games := r.chatGames[chatID]
	if len(games) == 0 {
		return nil, ErrNoActiveGame
	}
	return games[len(games)-1], nil
}

// GameByID resolves a game instance, used by timer callbacks to re-validate
// liveness before acting.
func (r *Registry) GameByID(id uuid.UUID) (*game.Game, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.gamesByID[id]
	return g, ok
}

// IsActive reports whether g is still registered. A countdown that fires for
// a deregistered game must no-op.
func (r *Registry) IsActive(g *game.Game) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gamesByID[g.ID] == g
}

// Join seats a user in the chat's active game, records the membership, and
// makes it the user's selected game.
func (r *Registry) Join(chatID int64, user models.User) (*game.Player, error) {
	r.mu.Lock()
	games := r.chatGames[chatID]
	r.mu.Unlock()
	if len(games) == 0 {
		return nil, ErrNoActiveGame
	}
	g := games[len(games)-1]

	p, err := g.AddPlayer(user)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.userPlayers[user.ID] = append(r.userPlayers[user.ID], p)
	r.userCurrent[user.ID] = p
	r.mu.Unlock()
	return p, nil
}

// Leave removes a seat and its membership. game.ErrNotEnoughPlayers
// propagates untouched: the seat stays in place and the caller must finalize
// the game instead.
func (r *Registry) Leave(p *game.Player) error {
	if err := p.Game().Leave(p); err != nil {
		return err
	}
	r.mu.Lock()
	r.dropMembership(p)
	r.mu.Unlock()
	return nil
}

// dropMembership unindexes a seat. Lock held.
func (r *Registry) dropMembership(p *game.Player) {
	userID := p.User.ID
	seats := r.userPlayers[userID]
	for i, seat := range seats {
		if seat == p {
			seats = append(seats[:i], seats[i+1:]...)
			break
		}
	}
	if len(seats) == 0 {
		delete(r.userPlayers, userID)
	} else {
		r.userPlayers[userID] = seats
	}
	if r.userCurrent[userID] == p {
		if len(seats) > 0 {
			r.userCurrent[userID] = seats[len(seats)-1]
		} else {
			delete(r.userCurrent, userID)
		}
	}
}

// EndGame finalizes a game: marks it over, pops it from the chat stack, and
// clears every membership that referenced it.
func (r *Registry) EndGame(g *game.Game) {
	g.End()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gamesByID[g.ID] != g {
		return // already ended
	}
	delete(r.gamesByID, g.ID)

	games := r.chatGames[g.ChatID]
	for i, other := range games {
		if other == g {
			games = append(games[:i], games[i+1:]...)
			break
		}
	}
	if len(games) == 0 {
		delete(r.chatGames, g.ChatID)
	} else {
		r.chatGames[g.ChatID] = games
	}

	for _, p := range g.ActivePlayers() {
		r.dropMembership(p)
	}
}

// PlayerForUserInChat resolves the user's seat in the chat's active game.
func (r *Registry) PlayerForUserInChat(userID, chatID int64) (*game.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	games := r.chatGames[chatID]
	if len(games) == 0 {
		return nil, ErrNoActiveGame
	}
	g := games[len(games)-1]
	for _, p := range r.userPlayers[userID] {
		if p.Game() == g {
			return p, nil
		}
	}
	return nil, ErrNoActiveGame
}

// CurrentPlayer returns the seat the user has selected among their joined
// games. Commands without a chat context route here.
func (r *Registry) CurrentPlayer(userID int64) (*game.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.userCurrent[userID]
	if !ok {
		return nil, ErrNoActiveGame
	}
	if r.gamesByID[p.Game().ID] != p.Game() {
		return nil, ErrNoActiveGame
	}
	return p, nil
}

// SelectGame switches which of the user's joined games receives ambiguous
// commands.
func (r *Registry) SelectGame(userID, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.userPlayers[userID] {
		if p.Game().ChatID == chatID {
			r.userCurrent[userID] = p
			return nil
		}
	}
	return ErrNoActiveGame
}

// Memberships returns the user's seats across all joined games.
func (r *Registry) Memberships(userID int64) []*game.Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*game.Player, len(r.userPlayers[userID]))
	copy(out, r.userPlayers[userID])
	return out
}
