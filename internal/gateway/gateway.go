// internal/gateway/gateway.go
package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/unobot/unobot/internal/game"
	"github.com/unobot/unobot/internal/history"
	"github.com/unobot/unobot/internal/models"
	"github.com/unobot/unobot/internal/registry"
	"github.com/unobot/unobot/internal/scheduler"
	"github.com/unobot/unobot/internal/stats"
)

// Kind names an action a player can exercise.
type Kind string

const (
	KindPlay  Kind = "play"
	KindDraw  Kind = "draw"
	KindPass  Kind = "pass"
	KindColor Kind = "color"
	KindBluff Kind = "bluff"
	KindSkip  Kind = "skip"
)

// Action is one parsed player action as delivered by the transport. ChatID 0
// routes through the user's currently selected game instead.
type Action struct {
	UserID int64
	ChatID int64
	Kind   Kind
	Card   string
	Color  string

	// Token is the anti-cheat counter value embedded in the offer the player
	// exercised. Skip is a chat command, not an offer, and carries none.
	Token int
}

// EliminationReason explains a PlayerEliminated notification.
type EliminationReason string

const (
	ReasonInactivity EliminationReason = "inactivity"
	ReasonLeft       EliminationReason = "left"
	ReasonKicked     EliminationReason = "kicked"
)

// Notifier is the transport collaborator's inbound face. Implementations
// must not block: rendering failure never rolls back game state.
type Notifier interface {
	TurnAdvanced(g *game.Game, prev, current *game.Player)
	PlayerEliminated(g *game.Game, p *game.Player, reason EliminationReason)
	PlayerFinished(g *game.Game, p *game.Player, place int)
	GameEnded(g *game.Game, winner *game.Player)
	ActionRejected(g *game.Game, userID int64, reason error)
	ColorChoiceRequired(g *game.Game, p *game.Player)
	LastCardAnnounced(g *game.Game, p *game.Player)
}

// Publisher is the action-history queue; nil disables it.
type Publisher interface {
	Publish(ctx context.Context, rec history.Record) error
}

// Config carries the engine knobs the gateway needs.
type Config struct {
	MinPlayers           int
	TimeRemovalAfterSkip int
	MinFastTurnTime      int
}

// Gateway validates incoming actions against game state and the anti-replay
// token, dispatches them, and reports outcomes outward. It serializes all
// work for one game — delivered actions and fired countdowns alike — behind
// a per-game mutex, so a timer and a concurrent manual action always observe
// each other's post-state.
type Gateway struct {
	reg      *registry.Registry
	timers   scheduler.TimerService
	notifier Notifier
	stats    stats.Recorder
	history  Publisher
	cfg      Config
	log      *logrus.Logger

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// New wires a gateway with its own countdown scheduler.
func New(reg *registry.Registry, notifier Notifier, cfg Config, log *logrus.Logger) *Gateway {
	gw := &Gateway{
		reg:      reg,
		notifier: notifier,
		stats:    stats.Noop{},
		cfg:      cfg,
		log:      log,
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
	gw.timers = scheduler.New(gw.OnTimerFired, log)
	return gw
}

// UseTimers swaps the countdown scheduler. Tests inject a recording fake.
func (gw *Gateway) UseTimers(ts scheduler.TimerService) {
	gw.timers = ts
}

// UseStats attaches the statistics collaborator.
func (gw *Gateway) UseStats(rec stats.Recorder) {
	gw.stats = rec
}

// UseHistory attaches the action-history queue.
func (gw *Gateway) UseHistory(pub Publisher) {
	gw.history = pub
}

// lockGame serializes all work on one game.
func (gw *Gateway) lockGame(gameID uuid.UUID) func() {
	gw.mu.Lock()
	l, ok := gw.locks[gameID]
	if !ok {
		l = &sync.Mutex{}
		gw.locks[gameID] = l
	}
	gw.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (gw *Gateway) forgetLock(gameID uuid.UUID) {
	gw.mu.Lock()
	delete(gw.locks, gameID)
	gw.mu.Unlock()
}

// --- session orchestration ---

// NewGame opens a lobby in the chat.
func (gw *Gateway) NewGame(chatID int64, starter models.User) *game.Game {
	g := gw.reg.NewGame(chatID, starter)
	gw.log.WithFields(logrus.Fields{"chat": chatID, "game": g.ID, "user": starter.ID}).Info("new game created")
	return g
}

// Join seats the user in the chat's active game.
func (gw *Gateway) Join(chatID int64, user models.User) (*game.Player, error) {
	p, err := gw.reg.Join(chatID, user)
	if err != nil {
		gw.log.WithFields(logrus.Fields{"chat": chatID, "user": user.ID}).WithError(err).Info("join rejected")
		return nil, err
	}
	gw.log.WithFields(logrus.Fields{"chat": chatID, "user": user.ID}).Info("player joined")
	return p, nil
}

// Start launches the chat's active game and arms the first countdown.
func (gw *Gateway) Start(chatID, userID int64) error {
	g, err := gw.reg.ActiveGame(chatID)
	if err != nil {
		return err
	}
	unlock := gw.lockGame(g.ID)
	defer unlock()
	if _, err := gw.reg.PlayerForUserInChat(userID, chatID); err != nil {
		return err
	}
	if err := g.Start(gw.cfg.MinPlayers); err != nil {
		return err
	}
	first := g.CurrentPlayer()
	gw.log.WithFields(logrus.Fields{"chat": chatID, "game": g.ID, "mode": g.Mode()}).Info("game started")
	gw.notifier.TurnAdvanced(g, nil, first)
	gw.armCountdown(g)
	return nil
}

// Leave removes the user's seat from the chat's game; if that leaves too few
// players the game ends with the survivor as winner-by-default.
func (gw *Gateway) Leave(chatID, userID int64) error {
	p, err := gw.reg.PlayerForUserInChat(userID, chatID)
	if err != nil {
		return err
	}
	g := p.Game()
	unlock := gw.lockGame(g.ID)
	defer unlock()
	return gw.removePlayer(g, p, ReasonLeft)
}

// Kick is Leave exercised by an owner against another player.
func (gw *Gateway) Kick(chatID, ownerID, targetID int64) error {
	g, err := gw.reg.ActiveGame(chatID)
	if err != nil {
		return err
	}
	if !g.IsOwner(ownerID) {
		return ErrNotOwner
	}
	p, err := gw.reg.PlayerForUserInChat(targetID, chatID)
	if err != nil {
		return err
	}
	unlock := gw.lockGame(g.ID)
	defer unlock()
	return gw.removePlayer(g, p, ReasonKicked)
}

// Kill force-ends the chat's active game. Owner-only.
func (gw *Gateway) Kill(chatID, ownerID int64) error {
	g, err := gw.reg.ActiveGame(chatID)
	if err != nil {
		return err
	}
	if !g.IsOwner(ownerID) {
		return ErrNotOwner
	}
	unlock := gw.lockGame(g.ID)
	defer unlock()
	gw.finalize(g, nil)
	return nil
}

// SetOpen toggles mid-game joins. Owner-only.
func (gw *Gateway) SetOpen(chatID, ownerID int64, open bool) error {
	g, err := gw.reg.ActiveGame(chatID)
	if err != nil {
		return err
	}
	if !g.IsOwner(ownerID) {
		return ErrNotOwner
	}
	g.SetOpen(open)
	return nil
}

// SetMode switches the rule table pre-start. Owner-only.
func (gw *Gateway) SetMode(chatID, ownerID int64, mode string) error {
	g, err := gw.reg.ActiveGame(chatID)
	if err != nil {
		return err
	}
	if !g.IsOwner(ownerID) {
		return ErrNotOwner
	}
	m, err := game.ParseMode(mode)
	if err != nil {
		return err
	}
	return g.SetMode(m)
}

// SetTranslate toggles the game's translation flag. Owner-only.
func (gw *Gateway) SetTranslate(chatID, ownerID int64, translate bool) error {
	g, err := gw.reg.ActiveGame(chatID)
	if err != nil {
		return err
	}
	if !g.IsOwner(ownerID) {
		return ErrNotOwner
	}
	g.SetTranslate(translate)
	return nil
}

// SelectGame switches which joined game receives the user's ambiguous
// commands.
func (gw *Gateway) SelectGame(userID, chatID int64) error {
	return gw.reg.SelectGame(userID, chatID)
}

// removePlayer unseats p, finalizing the game when the ring gets too small.
// Caller holds the game lock.
func (gw *Gateway) removePlayer(g *game.Game, p *game.Player, reason EliminationReason) error {
	err := gw.reg.Leave(p)
	if errors.Is(err, game.ErrNotEnoughPlayers) {
		winner := g.OtherActive(p)
		gw.notifier.PlayerEliminated(g, p, reason)
		gw.finalize(g, winner)
		return nil
	}
	if err != nil {
		return err
	}
	gw.notifier.PlayerEliminated(g, p, reason)
	if g.Running() {
		gw.notifier.TurnAdvanced(g, p, g.CurrentPlayer())
		gw.armCountdown(g)
	}
	return nil
}

// finalize ends a game: cancel its countdown, deregister it, and report the
// winner (nil for a killed game). Caller holds the game lock.
func (gw *Gateway) finalize(g *game.Game, winner *game.Player) {
	gw.timers.Cancel(g.ID)
	gw.reg.EndGame(g)
	gw.forgetLock(g.ID)
	fields := logrus.Fields{"chat": g.ChatID, "game": g.ID}
	if winner != nil {
		fields["winner"] = winner.User.ID
	}
	gw.log.WithFields(fields).Info("game ended")
	gw.notifier.GameEnded(g, winner)
}

// --- action dispatch ---

// Deliver validates and applies one player action. Typed failures are
// reported through the notifier and returned.
func (gw *Gateway) Deliver(ctx context.Context, act Action) error {
	p, err := gw.resolve(act)
	if err != nil {
		gw.notifier.ActionRejected(nil, act.UserID, err)
		return err
	}
	g := p.Game()
	unlock := gw.lockGame(g.ID)
	defer unlock()
	if !gw.reg.IsActive(g) {
		err := registry.ErrNoActiveGame
		gw.notifier.ActionRejected(nil, act.UserID, err)
		return err
	}

	if act.Kind == KindSkip {
		return gw.manualSkip(g, p)
	}

	var out game.Outcome
	switch act.Kind {
	case KindPlay:
		var card models.Card
		card, err = models.ParseCard(act.Card)
		if err == nil {
			out, err = g.PlayCard(p, card, act.Token)
		}
	case KindDraw:
		out, err = g.DrawCards(p, act.Token)
	case KindPass:
		out, err = g.Pass(p, act.Token)
	case KindColor:
		out, err = g.ChooseColor(p, models.Color(act.Color), act.Token)
	case KindBluff:
		out, err = g.CallBluff(p, act.Token)
	default:
		err = ErrUnknownAction
	}
	if err != nil {
		gw.log.WithFields(logrus.Fields{
			"game": g.ID, "user": act.UserID, "kind": act.Kind,
		}).WithError(err).Info("action rejected")
		gw.notifier.ActionRejected(g, act.UserID, err)
		return err
	}

	gw.afterAction(ctx, g, p, act, out)
	return nil
}

// resolve maps the action to the acting seat: explicit chat first, the
// user's selected game otherwise.
func (gw *Gateway) resolve(act Action) (*game.Player, error) {
	if act.ChatID != 0 {
		return gw.reg.PlayerForUserInChat(act.UserID, act.ChatID)
	}
	return gw.reg.CurrentPlayer(act.UserID)
}

// afterAction publishes the accepted action and fans out its consequences.
// Caller holds the game lock.
func (gw *Gateway) afterAction(ctx context.Context, g *game.Game, p *game.Player, act Action, out game.Outcome) {
	gw.publish(ctx, g, act)

	if out.DeckExhausted {
		gw.log.WithFields(logrus.Fields{"game": g.ID}).Info("deck exhausted, draw truncated")
	}
	if act.Kind == KindPlay {
		go gw.stats.CardPlayed(context.WithoutCancel(ctx), p.User.ID)
	}
	if out.ChoosingColor {
		gw.notifier.ColorChoiceRequired(g, p)
	}
	if out.LastCardWarning {
		gw.notifier.LastCardAnnounced(g, p)
	}

	if out.HandEmpty {
		place := out.Placement
		gw.notifier.PlayerFinished(g, p, place)
		go gw.stats.GameFinished(context.WithoutCancel(ctx), p.User.ID, place == 1)
		if err := gw.reg.Leave(p); errors.Is(err, game.ErrNotEnoughPlayers) {
			gw.finalize(g, g.OtherActive(p))
			return
		}
	}

	if out.Advanced {
		gw.notifier.TurnAdvanced(g, out.Prev, out.Current)
	}
	gw.armCountdown(g)
}

// manualSkip applies skip semantics on behalf of an invoking player, gated
// on the current player's remaining waiting time. Caller holds the game lock.
func (gw *Gateway) manualSkip(g *game.Game, invoker *game.Player) error {
	if err := g.SkipGate(invoker); err != nil {
		gw.notifier.ActionRejected(g, invoker.User.ID, err)
		return err
	}
	return gw.doSkip(g)
}

// doSkip runs the shared skip semantics: decay-and-draw, or eliminate at the
// floor. Caller holds the game lock.
func (gw *Gateway) doSkip(g *game.Game) error {
	out, err := g.SkipCurrent(gw.cfg.TimeRemovalAfterSkip)
	if err != nil {
		return err
	}
	if out.Eliminate {
		gw.log.WithFields(logrus.Fields{
			"game": g.ID, "user": out.Skipped.User.ID,
		}).Info("player eliminated by inactivity")
		return gw.removePlayer(g, out.Skipped, ReasonInactivity)
	}
	gw.log.WithFields(logrus.Fields{
		"game": g.ID, "user": out.Skipped.User.ID, "waiting": out.WaitingTime,
	}).Info("player skipped")
	gw.notifier.TurnAdvanced(g, out.Skipped, out.Current)
	gw.armCountdown(g)
	return nil
}

// OnTimerFired is the scheduler's single callback entry point. The game may
// have ended (or been replaced) since the countdown was armed, so liveness
// is re-validated under the game lock; a stale fire is a silent no-op.
func (gw *Gateway) OnTimerFired(gameID uuid.UUID) {
	g, ok := gw.reg.GameByID(gameID)
	if !ok {
		gw.log.WithField("game", gameID).Debug("countdown fired for unknown game")
		return
	}
	unlock := gw.lockGame(gameID)
	defer unlock()
	if !gw.reg.IsActive(g) || !g.Running() {
		gw.log.WithField("game", gameID).Debug("countdown fired for ended game")
		return
	}
	if err := gw.doSkip(g); err != nil {
		gw.log.WithField("game", gameID).WithError(err).Warn("auto-skip failed")
	}
}

// armCountdown re-arms (or cancels) the game's auto-skip job for the new
// current player. Only fast mode runs a countdown.
func (gw *Gateway) armCountdown(g *game.Game) {
	if g.Mode() != game.ModeFast || !g.Running() {
		gw.timers.Cancel(g.ID)
		return
	}
	seconds, ok := g.CountdownSeconds(gw.cfg.MinFastTurnTime)
	if !ok {
		gw.timers.Cancel(g.ID)
		return
	}
	gw.timers.Schedule(g.ID, time.Duration(seconds)*time.Second)
}

// publish queues the accepted action for the historian, if configured.
func (gw *Gateway) publish(ctx context.Context, g *game.Game, act Action) {
	if gw.history == nil {
		return
	}
	rec := history.Record{
		GameID:    g.ID,
		ChatID:    g.ChatID,
		UserID:    act.UserID,
		Action:    string(act.Kind),
		Card:      act.Card,
		Timestamp: time.Now().Unix(),
	}
	go func() {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		defer cancel()
		if err := gw.history.Publish(pubCtx, rec); err != nil {
			gw.log.WithError(err).Warn("failed to publish action record")
		}
	}()
}
