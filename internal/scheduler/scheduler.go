// internal/scheduler/scheduler.go
package scheduler

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FireFunc is the single callback entry point for a fired countdown. It
// receives the game id as a plain message; the receiver must re-validate the
// game's liveness before acting, because the timer may race the game's end.
type FireFunc func(gameID uuid.UUID)

// TimerService schedules at most one deferred auto-skip job per game.
type TimerService interface {
	// Schedule arms a countdown for the game, cancelling any outstanding one
	// for the same game first.
	Schedule(gameID uuid.UUID, delay time.Duration)
	// Cancel stops the game's countdown, if any.
	Cancel(gameID uuid.UUID)
}

type entry struct {
	timer *time.Timer
	seq   uint64
}

// Service is the production TimerService backed by time.AfterFunc.
type Service struct {
	mu     sync.Mutex
	timers map[uuid.UUID]entry
	seq    uint64
	fire   FireFunc
	log    *logrus.Logger
}

// New builds a Service that calls fire when a countdown expires.
func New(fire FireFunc, log *logrus.Logger) *Service {
	return &Service{
		timers: make(map[uuid.UUID]entry),
		fire:   fire,
		log:    log,
	}
}

// Schedule arms the game's countdown. Any prior timer for the same game is
// stopped before the new one exists, so there is never more than one live
// timer per game. A sequence number guards against a stopped timer whose
// callback was already in flight.
func (s *Service) Schedule(gameID uuid.UUID, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.timers[gameID]; ok {
		e.timer.Stop()
	}
	s.seq++
	seq := s.seq
	s.timers[gameID] = entry{
		timer: time.AfterFunc(delay, func() { s.expire(gameID, seq) }),
		seq:   seq,
	}
	s.log.WithFields(logrus.Fields{
		"game":  gameID,
		"delay": delay,
	}).Debug("countdown armed")
}

// Cancel stops and forgets the game's countdown.
func (s *Service) Cancel(gameID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.timers[gameID]; ok {
		e.timer.Stop()
		delete(s.timers, gameID)
	}
}

// expire delivers the fire message unless this timer was replaced or
// cancelled while the callback was in flight.
func (s *Service) expire(gameID uuid.UUID, seq uint64) {
	s.mu.Lock()
	e, ok := s.timers[gameID]
	live := ok && e.seq == seq
	if live {
		delete(s.timers, gameID)
	}
	s.mu.Unlock()
	if live {
		s.fire(gameID)
	}
}
