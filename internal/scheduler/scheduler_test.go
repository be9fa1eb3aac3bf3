// internal/scheduler/scheduler_test.go
package scheduler

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fireRecorder struct {
	mu    sync.Mutex
	fired []uuid.UUID
}

func (f *fireRecorder) fire(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fired = append(f.fired, id)
}

func (f *fireRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fired)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestScheduleFires(t *testing.T) {
	rec := &fireRecorder{}
	s := New(rec.fire, quietLogger())
	id := uuid.New()

	s.Schedule(id, 20*time.Millisecond)

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	rec.mu.Lock()
	assert.Equal(t, id, rec.fired[0])
	rec.mu.Unlock()
}

func TestCancelPreventsFire(t *testing.T) {
	rec := &fireRecorder{}
	s := New(rec.fire, quietLogger())
	id := uuid.New()

	s.Schedule(id, 30*time.Millisecond)
	s.Cancel(id)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
}

func TestRearmCancelsPriorTimer(t *testing.T) {
	rec := &fireRecorder{}
	s := New(rec.fire, quietLogger())
	id := uuid.New()

	// Rapid re-arms must collapse to a single live timer.
	s.Schedule(id, 30*time.Millisecond)
	s.Schedule(id, 30*time.Millisecond)
	s.Schedule(id, 30*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, rec.count(), "only the last armed timer may fire")
}

func TestGamesFireIndependently(t *testing.T) {
	rec := &fireRecorder{}
	s := New(rec.fire, quietLogger())
	a, b := uuid.New(), uuid.New()

	s.Schedule(a, 20*time.Millisecond)
	s.Schedule(b, 20*time.Millisecond)
	s.Cancel(a)

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	rec.mu.Lock()
	assert.Equal(t, b, rec.fired[0])
	rec.mu.Unlock()
}

func TestCancelUnknownGameIsNoop(t *testing.T) {
	s := New(func(uuid.UUID) {}, quietLogger())
	s.Cancel(uuid.New())
}
