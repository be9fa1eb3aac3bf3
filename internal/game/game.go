// internal/game/game.go
package game

import (
	"sync"

	"github.com/google/uuid"

	"github.com/unobot/unobot/internal/clock"
	"github.com/unobot/unobot/internal/models"
)

// Mode selects the rule table and scheduling behavior for a game.
type Mode string

const (
	ModeClassic Mode = "classic"
	ModeFast    Mode = "fast"
	ModeWild    Mode = "wild"
	ModeText    Mode = "text"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeClassic, ModeFast, ModeWild, ModeText:
		return Mode(s), nil
	}
	return "", ErrUnknownMode
}

// Options configures a new game. Zero values fall back to defaults.
type Options struct {
	Mode        Mode
	WaitingTime int // baseline seconds before a player may be skipped
	HandSize    int
	Open        bool // whether joins are accepted after start
	Clock       clock.Clock
}

// Game is one session's full state machine. All exported methods serialize
// through the game mutex; a game instance is the unit of concurrency, so
// different games proceed fully in parallel.
type Game struct {
	ID     uuid.UUID
	ChatID int64

	mu sync.Mutex

	// players is a fixed arena: seats are appended on join and never moved.
	// Ring order lives in each seat's next/prev indices; inactive seats stay
	// in the slice but are unlinked.
	players []*Player
	head    int // ring anchor, first seat to act
	current int // arena index of the current player, -1 before start
	reversed bool

	deck     *Deck
	lastCard models.Card

	mode          Mode
	started       bool
	over          bool
	open          bool
	choosingColor bool
	drawCounter   int
	playersWon    int
	translate     bool

	starter models.User
	owners  map[int64]bool

	waitingTime int
	handSize    int
	clk         clock.Clock
}

// NewGame builds a game in the lobby state. The starter becomes an owner but
// must still join to get a seat.
func NewGame(chatID int64, starter models.User, opts Options) *Game {
	if opts.Mode == "" {
		opts.Mode = ModeClassic
	}
	if opts.WaitingTime <= 0 {
		opts.WaitingTime = 90
	}
	if opts.HandSize <= 0 {
		opts.HandSize = 7
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	id, _ := uuid.NewRandom()
	return &Game{
		ID:          id,
		ChatID:      chatID,
		current:     -1,
		head:        -1,
		mode:        opts.Mode,
		open:        opts.Open,
		starter:     starter,
		owners:      map[int64]bool{starter.ID: true},
		waitingTime: opts.WaitingTime,
		handSize:    opts.HandSize,
		clk:         opts.Clock,
	}
}

// Outcome reports what an accepted action did, so the gateway can notify the
// transport without re-reading game state.
type Outcome struct {
	Prev    *Player
	Current *Player

	Advanced      bool
	ChoosingColor bool

	// HandEmpty means the acting player finished; Placement is their 1-based
	// finishing rank.
	HandEmpty bool
	Placement int

	// LastCardWarning fires when the acting player is down to one card.
	LastCardWarning bool

	CardsDrawn    int
	DeckExhausted bool

	BluffSucceeded bool
	Accused        *Player
}

// SkipOutcome reports the result of skip semantics, shared between a manual
// skip and a fired countdown.
type SkipOutcome struct {
	Skipped *Player
	Current *Player

	// Eliminate means the skipped player had already decayed to the floor and
	// must be removed from the game instead of skipped again.
	Eliminate bool

	WaitingTime   int
	DeckExhausted bool
}

// --- ring arena ---

func (g *Game) nextOf(i int) int {
	if g.reversed {
		return g.players[i].prev
	}
	return g.players[i].next
}

func (g *Game) prevOf(i int) int {
	if g.reversed {
		return g.players[i].next
	}
	return g.players[i].prev
}

// link inserts a seat at the end of the ring (just before the anchor).
func (g *Game) link(p *Player) {
	if g.head < 0 {
		g.head = p.idx
		p.next, p.prev = p.idx, p.idx
		p.active = true
		return
	}
	anchor := g.players[g.head]
	tail := g.players[anchor.prev]
	p.prev = tail.idx
	p.next = anchor.idx
	tail.next = p.idx
	anchor.prev = p.idx
	p.active = true
}

// unlink removes a seat from the ring in O(1).
func (g *Game) unlink(p *Player) {
	if !p.active {
		return
	}
	if p.next == p.idx {
		g.head = -1
	} else {
		g.players[p.prev].next = p.next
		g.players[p.next].prev = p.prev
		if g.head == p.idx {
			g.head = p.next
		}
	}
	p.active = false
}

func (g *Game) activeCount() int {
	n := 0
	for _, p := range g.players {
		if p.active {
			n++
		}
	}
	return n
}

// turn advances to the next player and stamps their turn start. Lock held.
func (g *Game) turn() (prev, cur *Player) {
	prev = g.players[g.current]
	g.current = g.nextOf(g.current)
	cur = g.players[g.current]
	cur.Drew = false
	cur.TurnStarted = g.clk.Now()
	return prev, cur
}

// consumeToken is the anti-replay guard. The counter advances even when the
// compare fails, so a rejected stale offer also invalidates any older menus.
// Lock held.
func (g *Game) consumeToken(p *Player, token int) error {
	last := p.AntiCheat
	p.AntiCheat++
	if token != last {
		return ErrStaleAction
	}
	return nil
}

func (g *Game) resetWaitingTime(p *Player) {
	if p.WaitingTime < g.waitingTime {
		p.WaitingTime = g.waitingTime
	}
}

// requireTurn checks the acting player is current in a started game. Lock held.
func (g *Game) requireTurn(p *Player) error {
	if !g.started || g.over {
		return ErrNotStarted
	}
	if g.current < 0 || g.players[g.current] != p {
		return ErrNotYourTurn
	}
	return nil
}

// --- lifecycle ---

// AddPlayer seats a user. Joins are accepted in the lobby, and after start
// only while the game is open; a post-start join deals an opening hand and
// fails with ErrDeckEmpty if the deck cannot supply it.
func (g *Game) AddPlayer(user models.User) (*Player, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.over {
		return nil, ErrLobbyClosed
	}
	for _, seat := range g.players {
		if seat.active && seat.User.ID == user.ID {
			return nil, ErrAlreadyJoined
		}
	}
	if g.started && !g.open {
		return nil, ErrLobbyClosed
	}
	p := &Player{
		User:        user,
		WaitingTime: g.waitingTime,
		game:        g,
		idx:         len(g.players),
	}
	if g.started {
		cards, err := g.deck.DrawN(g.handSize)
		if err != nil {
			for _, c := range cards {
				g.deck.Dismiss(c)
			}
			return nil, err
		}
		p.Hand = cards
	}
	g.players = append(g.players, p)
	g.link(p)
	return p, nil
}

// Start transitions lobby -> active: builds the mode's deck, deals opening
// hands, flips the first discard (redrawing past action cards), and hands the
// turn to the first seat.
func (g *Game) Start(minPlayers int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return ErrAlreadyStarted
	}
	if g.activeCount() < minPlayers {
		return ErrNotEnoughPlayers
	}
	g.deck = NewDeck(g.mode)
	for _, p := range g.players {
		if !p.active {
			continue
		}
		if err := p.drawFirstHand(g.handSize); err != nil {
			return err
		}
	}
	for {
		c, err := g.deck.Draw()
		if err != nil {
			return err
		}
		if c.Special == "" {
			g.lastCard = c
			break
		}
		g.deck.Dismiss(c)
	}
	g.started = true
	g.current = g.head
	first := g.players[g.current]
	first.Drew = false
	first.TurnStarted = g.clk.Now()
	return nil
}

// SetMode changes the rule table. Only valid before start.
func (g *Game) SetMode(mode Mode) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return ErrAlreadyStarted
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}
	g.mode = mode
	return nil
}

// SetOpen toggles whether the game accepts joins after start.
func (g *Game) SetOpen(open bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open = open
}

// SetTranslate toggles the multi-translation flag carried for the transport.
func (g *Game) SetTranslate(translate bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.translate = translate
}

// AddOwner grants privileged commands to a user.
func (g *Game) AddOwner(userID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.owners[userID] = true
}

// IsOwner reports whether the user may run privileged commands.
func (g *Game) IsOwner(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.owners[userID]
}

// End marks the game finished. Idempotent; a countdown firing afterwards
// observes Running() == false and no-ops.
func (g *Game) End() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.over = true
}

// Running reports whether the game is active (started and not finished).
func (g *Game) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.started && !g.over
}

// Started reports whether the game has left the lobby.
func (g *Game) Started() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.started
}

// Mode returns the game mode.
func (g *Game) Mode() Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode
}

// Translate reports the translation flag.
func (g *Game) Translate() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.translate
}

// CurrentPlayer returns the player whose turn it is, or nil before start.
func (g *Game) CurrentPlayer() *Player {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current < 0 {
		return nil
	}
	return g.players[g.current]
}

// ActivePlayers returns the seated players in ring order from the anchor.
func (g *Game) ActivePlayers() []*Player {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.activePlayersLocked()
}

func (g *Game) activePlayersLocked() []*Player {
	if g.head < 0 {
		return nil
	}
	out := []*Player{g.players[g.head]}
	for i := g.players[g.head].next; i != g.head; i = g.players[i].next {
		out = append(out, g.players[i])
	}
	return out
}

// ActiveCount returns the number of seated players.
func (g *Game) ActiveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.activeCount()
}

// OtherActive returns the seated player other than except, if exactly one
// such player remains. Used to declare a winner-by-default.
func (g *Game) OtherActive(except *Player) *Player {
	g.mu.Lock()
	defer g.mu.Unlock()
	var other *Player
	for _, p := range g.players {
		if p.active && p != except {
			if other != nil {
				return nil
			}
			other = p
		}
	}
	return other
}

// Leave unlinks a seat. For a running game the ring may not drop below two
// players; the caller gets ErrNotEnoughPlayers, leaves the seat in place, and
// finalizes the game instead. If the leaver is current the turn advances
// first so exactly one current player survives the removal.
func (g *Game) Leave(p *Player) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !p.active {
		return nil
	}
	if g.started && !g.over && g.activeCount() <= 2 {
		return ErrNotEnoughPlayers
	}
	if g.started && g.current == p.idx {
		g.turn()
	}
	g.unlink(p)
	return nil
}

// --- actions ---

// PlayCard plays a card from the acting player's hand. Special effects are
// applied before control returns; the turn advances unless the card leaves
// the game waiting on a color choice.
func (g *Game) PlayCard(p *Player, card models.Card, token int) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.consumeToken(p, token); err != nil {
		return Outcome{}, err
	}
	if err := g.requireTurn(p); err != nil {
		return Outcome{}, err
	}
	if g.choosingColor {
		return Outcome{}, ErrChoosingColor
	}
	if !p.holds(card) || !playable(card, g.lastCard, g.drawCounter) {
		return Outcome{}, ErrIllegalCard
	}

	// The bluff flag is fixed at play time, against the hand as it is now.
	if card.Special == models.DrawFour {
		p.Bluffing = p.hasNonWildPlay(g.lastCard, card)
	}

	p.removeFromHand(card)
	g.deck.Dismiss(g.lastCard)
	g.lastCard = card
	g.resetWaitingTime(p)

	out := Outcome{Prev: p}
	switch card.Special {
	case models.Skip:
		g.turn() // skip the next player outright
	case models.Reverse:
		// With two players a reverse acts as a skip.
		if g.activeCount() == 2 {
			g.turn()
		} else {
			g.reversed = !g.reversed
		}
	case models.DrawTwo:
		g.drawCounter += 2
	case models.DrawFour:
		g.drawCounter += 4
		g.choosingColor = true
	case models.Choose:
		g.choosingColor = true
	}

	switch len(p.Hand) {
	case 1:
		out.LastCardWarning = true
	case 0:
		g.playersWon++
		out.HandEmpty = true
		out.Placement = g.playersWon
	}

	if g.choosingColor {
		out.ChoosingColor = true
		out.Current = p
	} else {
		_, cur := g.turn()
		out.Advanced = true
		out.Current = cur
	}
	return out, nil
}

// DrawCards resolves the draw action. With a forced-draw obligation pending
// the player draws the whole counter and the turn advances; otherwise a
// single card is drawn and the player keeps the turn to play or pass.
func (g *Game) DrawCards(p *Player, token int) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.consumeToken(p, token); err != nil {
		return Outcome{}, err
	}
	if err := g.requireTurn(p); err != nil {
		return Outcome{}, err
	}
	if g.choosingColor {
		return Outcome{}, ErrChoosingColor
	}
	forced := g.drawCounter > 0
	if !forced && p.Drew {
		return Outcome{}, ErrAlreadyDrew
	}

	n := 1
	if forced {
		n = g.drawCounter
	}
	cards, err := g.deck.DrawN(n)
	p.Hand = append(p.Hand, cards...)
	g.drawCounter = 0
	p.Drew = true
	g.resetWaitingTime(p)

	out := Outcome{
		Prev:          p,
		Current:       p,
		CardsDrawn:    len(cards),
		DeckExhausted: err != nil,
	}
	if forced && g.lastCard.DrawAmount() > 0 {
		_, cur := g.turn()
		out.Advanced = true
		out.Current = cur
	}
	return out, nil
}

// Pass ends the turn after the mandatory draw.
func (g *Game) Pass(p *Player, token int) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.consumeToken(p, token); err != nil {
		return Outcome{}, err
	}
	if err := g.requireTurn(p); err != nil {
		return Outcome{}, err
	}
	if g.choosingColor {
		return Outcome{}, ErrChoosingColor
	}
	if !p.Drew {
		return Outcome{}, ErrMustDrawFirst
	}
	_, cur := g.turn()
	return Outcome{Prev: p, Current: cur, Advanced: true}, nil
}

// ChooseColor stamps the chosen color on the wild last card and advances.
func (g *Game) ChooseColor(p *Player, color models.Color, token int) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.consumeToken(p, token); err != nil {
		return Outcome{}, err
	}
	if err := g.requireTurn(p); err != nil {
		return Outcome{}, err
	}
	if !g.choosingColor {
		return Outcome{}, ErrNoPendingColor
	}
	valid := false
	for _, c := range models.Colors {
		if c == color {
			valid = true
			break
		}
	}
	if !valid {
		return Outcome{}, ErrIllegalCard
	}
	g.lastCard.Color = color
	g.choosingColor = false
	_, cur := g.turn()
	return Outcome{Prev: p, Current: cur, Advanced: true}, nil
}

// CallBluff resolves a pending wild-draw-four accusation. A truthful accused
// costs the caller the original four plus a two card penalty; a caught bluff
// redirects the four onto the accused. Either way the obligation clears and
// the turn advances.
func (g *Game) CallBluff(p *Player, token int) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.consumeToken(p, token); err != nil {
		return Outcome{}, err
	}
	if err := g.requireTurn(p); err != nil {
		return Outcome{}, err
	}
	if g.lastCard.Special != models.DrawFour || g.drawCounter == 0 {
		return Outcome{}, ErrNoPendingBluff
	}

	accused := g.players[g.prevOf(g.current)]
	out := Outcome{Prev: p, Accused: accused}
	n := g.drawCounter
	var drawn []models.Card
	var err error
	if accused.Bluffing {
		out.BluffSucceeded = true
		drawn, err = g.deck.DrawN(n)
		accused.Hand = append(accused.Hand, drawn...)
	} else {
		drawn, err = g.deck.DrawN(n + 2)
		p.Hand = append(p.Hand, drawn...)
	}
	out.CardsDrawn = len(drawn)
	out.DeckExhausted = err != nil
	g.drawCounter = 0
	g.resetWaitingTime(p)
	_, cur := g.turn()
	out.Advanced = true
	out.Current = cur
	return out, nil
}

// SkipGate checks whether the invoker may skip the current player right now.
// The current player may always skip themself; anyone else must wait out the
// current player's remaining waiting time.
func (g *Game) SkipGate(invoker *Player) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.started || g.over {
		return ErrNotStarted
	}
	cur := g.players[g.current]
	if invoker == cur {
		return nil
	}
	elapsed := int(g.clk.Now().Sub(cur.TurnStarted).Seconds())
	if elapsed < cur.WaitingTime {
		return &SkipTooEarlyError{Remaining: cur.WaitingTime - elapsed}
	}
	return nil
}

// SkipCurrent applies skip semantics to the current player: decay the waiting
// time, force a single draw (a spent deck is tolerated), and advance. A
// player already at the floor is flagged for elimination instead; the caller
// removes them through the registry so memberships stay consistent.
func (g *Game) SkipCurrent(decrement int) (SkipOutcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.started || g.over {
		return SkipOutcome{}, ErrNotStarted
	}
	sk := g.players[g.current]
	if sk.WaitingTime == 0 {
		return SkipOutcome{Skipped: sk, Eliminate: true}, nil
	}
	sk.AntiCheat++
	sk.WaitingTime -= decrement
	if sk.WaitingTime < 0 {
		sk.WaitingTime = 0
	}
	out := SkipOutcome{Skipped: sk, WaitingTime: sk.WaitingTime}
	if c, err := g.deck.Draw(); err == nil {
		sk.Hand = append(sk.Hand, c)
	} else {
		out.DeckExhausted = true
	}
	_, cur := g.turn()
	out.Current = cur
	return out, nil
}
