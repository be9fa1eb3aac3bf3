// internal/historian/historian_test.go
package historian

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unobot/unobot/internal/history"
)

func quietService(batchSize int) (*Service, *[][]history.Record, *sync.Mutex) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	// The client never reaches a live Redis in these tests; reads just fail
	// until the service is stopped.
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:1"})
	s := New(rdb, nil, "test_actions", batchSize, time.Second, log)

	var mu sync.Mutex
	var flushes [][]history.Record
	s.flushFn = func(batch []history.Record) {
		mu.Lock()
		defer mu.Unlock()
		flushes = append(flushes, batch)
	}
	return s, &flushes, &mu
}

func record(action string) history.Record {
	return history.Record{
		GameID:    uuid.New(),
		ChatID:    -100500,
		UserID:    1,
		Action:    action,
		Timestamp: time.Now().Unix(),
	}
}

func TestBatchFlushesAtThreshold(t *testing.T) {
	s, flushes, mu := quietService(3)

	s.append(record("play"))
	s.append(record("draw"))
	mu.Lock()
	assert.Empty(t, *flushes, "no flush below the threshold")
	mu.Unlock()

	s.append(record("pass"))
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *flushes, 1)
	assert.Len(t, (*flushes)[0], 3)
}

func TestFlushResetsBatch(t *testing.T) {
	s, flushes, mu := quietService(10)

	s.append(record("play"))
	s.flush()
	s.flush() // second flush has nothing to do

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *flushes, 1)
	assert.Len(t, (*flushes)[0], 1)
	assert.Equal(t, "play", (*flushes)[0][0].Action)
}

func TestStopFlushesPending(t *testing.T) {
	s, flushes, mu := quietService(100)
	s.append(record("bluff"))

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()
	s.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not exit after Stop")
	}
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *flushes, 1)
	assert.Equal(t, "bluff", (*flushes)[0][0].Action)
}
